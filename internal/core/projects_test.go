package core

import (
	"strings"
	"testing"

	"github.com/rowanvale/forest/internal/storage"
	"github.com/rowanvale/forest/pkg/models"
)

func newProjectManagerForTest(t *testing.T) (*ProjectManager, *storage.DataPersistence) {
	t.Helper()
	persistence := storage.NewDataPersistence(t.TempDir())
	return NewProjectManager(persistence, nil), persistence
}

func TestCreateProject(t *testing.T) {
	pm, persistence := newProjectManagerForTest(t)

	cfg, err := pm.CreateProject("piano", "learn piano", "hands-on", []string{"technique"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if cfg.ID != "piano" || cfg.ActivePath != models.GeneralPath {
		t.Errorf("config = %+v", cfg)
	}

	// Creation seeds an empty tree and sets the active pointer.
	var tree models.HTATree
	found, err := persistence.LoadPathData("piano", models.GeneralPath, "hta.json", &tree)
	if err != nil || !found {
		t.Fatalf("loading seeded tree: found=%v err=%v", found, err)
	}
	if tree.Goal != "learn piano" || len(tree.FrontierNodes) != 0 {
		t.Errorf("seeded tree = %+v", tree)
	}

	active, err := pm.ActiveProject()
	if err != nil {
		t.Fatalf("ActiveProject: %v", err)
	}
	if active.ID != "piano" {
		t.Errorf("active project = %s, want piano", active.ID)
	}
}

func TestCreateProject_Validation(t *testing.T) {
	pm, _ := newProjectManagerForTest(t)

	if _, err := pm.CreateProject("", "goal", "", nil); err == nil {
		t.Error("empty id accepted")
	}
	if _, err := pm.CreateProject("p", "", "", nil); err == nil {
		t.Error("empty goal accepted")
	}
}

func TestCreateProject_RefusesDuplicate(t *testing.T) {
	pm, _ := newProjectManagerForTest(t)

	if _, err := pm.CreateProject("piano", "learn piano", "", nil); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	_, err := pm.CreateProject("piano", "different goal", "", nil)
	if err == nil {
		t.Fatal("duplicate project accepted")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %v", err)
	}

	// The original config must be untouched.
	cfg, err := pm.GetProject("piano")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if cfg.Goal != "learn piano" {
		t.Errorf("goal = %q, want original preserved", cfg.Goal)
	}
}

func TestSetActiveProject(t *testing.T) {
	pm, _ := newProjectManagerForTest(t)

	if _, err := pm.CreateProject("piano", "learn piano", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := pm.CreateProject("golang", "learn go", "", nil); err != nil {
		t.Fatal(err)
	}

	// The most recently created project is active; switch back.
	if err := pm.SetActiveProject("piano"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}
	active, err := pm.ActiveProject()
	if err != nil {
		t.Fatal(err)
	}
	if active.ID != "piano" {
		t.Errorf("active = %s, want piano", active.ID)
	}

	if err := pm.SetActiveProject("nonexistent"); err == nil {
		t.Error("nonexistent project accepted as active")
	}
}

func TestActiveProject_NoneSet(t *testing.T) {
	pm, _ := newProjectManagerForTest(t)
	_, err := pm.ActiveProject()
	if err == nil {
		t.Fatal("expected error with no active project")
	}
	if !strings.Contains(err.Error(), "no active project") {
		t.Errorf("error = %v", err)
	}
}

func TestListProjects(t *testing.T) {
	pm, _ := newProjectManagerForTest(t)

	if _, err := pm.CreateProject("piano", "learn piano", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := pm.CreateProject("golang", "learn go", "", nil); err != nil {
		t.Fatal(err)
	}

	configs, err := pm.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("got %d projects, want 2", len(configs))
	}
	ids := map[string]bool{}
	for _, cfg := range configs {
		ids[cfg.ID] = true
	}
	if !ids["piano"] || !ids["golang"] {
		t.Errorf("projects = %v", ids)
	}
}
