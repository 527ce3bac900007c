package core

import (
	"fmt"
	"time"

	"github.com/rowanvale/forest/internal/storage"
	"github.com/rowanvale/forest/pkg/models"
)

// TaskIntelligence answers "what should I work on next" for the active
// project: it loads the task store for the active path and delegates to the
// selector.
type TaskIntelligence struct {
	persistence *storage.DataPersistence
	projects    *ProjectManager
	selector    *Selector
	events      EventLogger
	settings    *models.Settings
	clock       func() time.Time
}

// NewTaskIntelligence creates a TaskIntelligence. events may be nil.
func NewTaskIntelligence(persistence *storage.DataPersistence, projects *ProjectManager, selector *Selector, events EventLogger, settings *models.Settings) *TaskIntelligence {
	if settings == nil {
		settings = models.DefaultSettings()
	}
	return &TaskIntelligence{
		persistence: persistence,
		projects:    projects,
		selector:    selector,
		events:      events,
		settings:    settings,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock, for tests.
func (ti *TaskIntelligence) SetClock(clock func() time.Time) {
	ti.clock = clock
}

// GetNextTask returns the best currently-actionable task for the active
// project, or (nil, nil) when nothing is actionable; an empty frontier is
// a normal state, not an error.
func (ti *TaskIntelligence) GetNextTask(energyLevel int, timeAvailable string) (*models.Task, error) {
	project, err := ti.projects.ActiveProject()
	if err != nil {
		return nil, fmt.Errorf("getting next task: %w", err)
	}
	pathName := project.ActivePath
	if pathName == "" {
		pathName = models.GeneralPath
	}

	var tree models.HTATree
	found, err := ti.persistence.LoadPathData(project.ID, pathName, "hta.json", &tree)
	if err != nil {
		return nil, fmt.Errorf("getting next task: loading task tree: %w", err)
	}
	if !found {
		return nil, nil
	}

	sctx := NewScoringContext(&tree, ti.clock(), ti.settings)
	task := ti.selector.SelectOptimalTask(&tree, energyLevel, timeAvailable, sctx)

	if task != nil && ti.events != nil {
		_ = ti.events.LogEvent("task.selected", map[string]any{
			"project": project.ID,
			"task":    task.ID,
			"branch":  task.Branch,
		})
	}
	return task, nil
}
