package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalize_LegacyKeys(t *testing.T) {
	raw := []byte(`{
		"goal": "learn piano",
		"frontier_nodes": [{"id": "t1"}],
		"learning_style": "hands-on",
		"last_updated": "2026-03-01T12:00:00Z"
	}`)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(Canonicalize(raw), &doc); err != nil {
		t.Fatal(err)
	}
	for _, legacy := range []string{"frontier_nodes", "learning_style", "last_updated"} {
		if _, ok := doc[legacy]; ok {
			t.Errorf("legacy key %q survived", legacy)
		}
	}
	for _, canonical := range []string{"frontierNodes", "learningStyle", "lastUpdated", "goal"} {
		if _, ok := doc[canonical]; !ok {
			t.Errorf("canonical key %q missing", canonical)
		}
	}
}

func TestCanonicalize_CanonicalWinsOnConflict(t *testing.T) {
	raw := []byte(`{"learning_style": "legacy", "learningStyle": "canonical"}`)

	var doc map[string]string
	if err := json.Unmarshal(Canonicalize(raw), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["learningStyle"] != "canonical" {
		t.Errorf("learningStyle = %q, want canonical", doc["learningStyle"])
	}
	if _, ok := doc["learning_style"]; ok {
		t.Error("legacy key survived the conflict")
	}
}

func TestCanonicalize_PassThrough(t *testing.T) {
	cases := [][]byte{
		[]byte(`[1, 2, 3]`),
		[]byte(`"just a string"`),
		[]byte(`{broken`),
		[]byte(``),
		[]byte(`{"goal": "untouched"}`),
	}
	for _, raw := range cases {
		got := Canonicalize(raw)
		if string(got) != string(raw) {
			t.Errorf("Canonicalize(%q) = %q, want unchanged", raw, got)
		}
	}
}

func TestLoadMigratesLegacyDocument(t *testing.T) {
	p := NewDataPersistence(t.TempDir())

	legacy := `{
		"goal": "learn piano",
		"frontier_nodes": [{"id": "t1", "title": "First task"}],
		"strategic_branches": [{"id": "foundation", "title": "Foundation", "order": 1}],
		"target_depth": 3
	}`
	path := p.ProjectFilePath("proj", "hta.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	type node struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	var tree struct {
		Goal              string `json:"goal"`
		TargetDepth       int    `json:"targetDepth"`
		FrontierNodes     []node `json:"frontierNodes"`
		StrategicBranches []node `json:"strategicBranches"`
	}
	found, err := p.LoadProjectData("proj", "hta.json", &tree)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if tree.TargetDepth != 3 {
		t.Errorf("targetDepth = %d, want 3", tree.TargetDepth)
	}
	if len(tree.FrontierNodes) != 1 || tree.FrontierNodes[0].ID != "t1" {
		t.Errorf("frontierNodes = %+v", tree.FrontierNodes)
	}
	if len(tree.StrategicBranches) != 1 {
		t.Errorf("strategicBranches = %+v", tree.StrategicBranches)
	}
}
