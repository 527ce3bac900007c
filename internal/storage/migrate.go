package storage

import "encoding/json"

// legacyKeys maps snake_case field variants found in older documents to
// their canonical camelCase names. Migration happens on every load; saves
// always serialize the canonical shape, so the legacy names are never
// written back.
var legacyKeys = map[string]string{
	"frontier_nodes":     "frontierNodes",
	"completed_nodes":    "completedNodes",
	"hierarchy_metadata": "hierarchyMetadata",
	"learning_style":     "learningStyle",
	"focus_areas":        "focusAreas",
	"strategic_branches": "strategicBranches",
	"last_updated":       "lastUpdated",
	"target_depth":       "targetDepth",
}

// Canonicalize rewrites any legacy snake_case top-level keys in a JSON
// document to their camelCase equivalents. When both variants are present
// the canonical one wins. Non-object documents pass through unchanged, as
// does anything that fails to parse; the subsequent typed unmarshal will
// report the real error.
func Canonicalize(raw []byte) []byte {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}

	changed := false
	for legacy, canonical := range legacyKeys {
		value, ok := doc[legacy]
		if !ok {
			continue
		}
		if _, exists := doc[canonical]; !exists {
			doc[canonical] = value
		}
		delete(doc, legacy)
		changed = true
	}
	if !changed {
		return raw
	}

	migrated, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return migrated
}
