package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Duration is a free-form task duration as it appears on the wire. Documents
// may carry it as a string ("30 minutes", "1 hour") or as a bare number of
// minutes; both unmarshal into the same string form.
type Duration string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (d *Duration) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*d = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Duration(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = Duration(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

// Task is a frontier node in a project's HTA tree: a single actionable unit
// of work, or a grouping node when Subtasks is non-empty. Grouping nodes are
// never selectable; selection operates on the flattened leaves.
type Task struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Difficulty    int      `json:"difficulty,omitempty"` // 1-5
	Duration      Duration `json:"duration,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	Depth         int      `json:"depth,omitempty"` // 1 = foundational .. 4+ = mastery; 0 = infer from branch
	Priority      int      `json:"priority,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"` // task ids or titles

	Completed        bool   `json:"completed"`
	CompletedAt      string `json:"completedAt,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
	Learned          string `json:"learned,omitempty"`
	DifficultyRating int    `json:"difficultyRating,omitempty"`
	Breakthrough     bool   `json:"breakthrough,omitempty"`

	MomentumBuilding     bool   `json:"momentumBuilding,omitempty"`
	SerendipityCreatedAt string `json:"serendipityCreatedAt,omitempty"`
	SerendipitySource    string `json:"serendipitySource,omitempty"`

	Subtasks []*Task `json:"subtasks,omitempty"`
}

// IsLeaf reports whether the task is directly actionable (has no subtasks).
func (t *Task) IsLeaf() bool {
	return len(t.Subtasks) == 0
}

// StrategicBranch describes one named grouping of tasks within a project tree.
type StrategicBranch struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order,omitempty"`
}

// HTATree is the hierarchical task breakdown document for one project path.
// Field names are the canonical camelCase wire shape; legacy snake_case
// variants are migrated by the storage layer on load and never written back.
type HTATree struct {
	Goal              string            `json:"goal,omitempty"`
	LearningStyle     string            `json:"learningStyle,omitempty"`
	Complexity        int               `json:"complexity,omitempty"`
	TargetDepth       int               `json:"targetDepth,omitempty"`
	FocusAreas        []string          `json:"focusAreas,omitempty"`
	StrategicBranches []StrategicBranch `json:"strategicBranches,omitempty"`
	FrontierNodes     []*Task           `json:"frontierNodes"`
	LastUpdated       string            `json:"lastUpdated,omitempty"`
}

// FindTask returns the task with the given id anywhere in the tree, or nil.
func (h *HTATree) FindTask(id string) *Task {
	if h == nil || id == "" {
		return nil
	}
	return findTaskIn(h.FrontierNodes, id)
}

func findTaskIn(nodes []*Task, id string) *Task {
	for _, t := range nodes {
		if t == nil {
			continue
		}
		if t.ID == id {
			return t
		}
		if found := findTaskIn(t.Subtasks, id); found != nil {
			return found
		}
	}
	return nil
}
