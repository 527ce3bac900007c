package core

import (
	"fmt"
	"time"

	"github.com/rowanvale/forest/internal/storage"
	"github.com/rowanvale/forest/pkg/models"
)

// ProjectManager owns the project lifecycle: creation, listing, and the
// active-project pointer. Project deletion is intentionally not offered.
type ProjectManager struct {
	persistence *storage.DataPersistence
	events      EventLogger
	clock       func() time.Time
}

// NewProjectManager creates a ProjectManager. events may be nil.
func NewProjectManager(persistence *storage.DataPersistence, events EventLogger) *ProjectManager {
	return &ProjectManager{
		persistence: persistence,
		events:      events,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateProject writes the project's config.json, seeds an empty HTA tree,
// and makes the new project active.
func (pm *ProjectManager) CreateProject(id, goal, learningStyle string, focusAreas []string) (*models.ProjectConfig, error) {
	if id == "" {
		return nil, fmt.Errorf("creating project: id must not be empty")
	}
	if goal == "" {
		return nil, fmt.Errorf("creating project %s: goal must not be empty", id)
	}

	var existing models.ProjectConfig
	found, err := pm.persistence.LoadProjectData(id, "config.json", &existing)
	if err != nil {
		return nil, fmt.Errorf("creating project %s: %w", id, err)
	}
	if found {
		return nil, fmt.Errorf("creating project %s: project already exists", id)
	}

	now := pm.clock()
	cfg := &models.ProjectConfig{
		ID:            id,
		Goal:          goal,
		LearningStyle: learningStyle,
		FocusAreas:    focusAreas,
		ActivePath:    models.GeneralPath,
		CreatedAt:     now.Format(time.RFC3339),
	}
	tree := &models.HTATree{
		Goal:          goal,
		LearningStyle: learningStyle,
		FocusAreas:    focusAreas,
		FrontierNodes: []*models.Task{},
		LastUpdated:   now.Format(time.RFC3339),
	}

	tx := pm.persistence.BeginTransaction()
	if err := pm.persistence.SaveProjectData(id, "config.json", cfg, tx); err != nil {
		_ = pm.persistence.RollbackTransaction(tx)
		return nil, fmt.Errorf("creating project %s: %w", id, err)
	}
	if err := pm.persistence.SavePathData(id, models.GeneralPath, "hta.json", tree, tx); err != nil {
		_ = pm.persistence.RollbackTransaction(tx)
		return nil, fmt.Errorf("creating project %s: seeding tree: %w", id, err)
	}
	if err := pm.persistence.SaveState(&models.ActiveState{ActiveProject: id}, tx); err != nil {
		_ = pm.persistence.RollbackTransaction(tx)
		return nil, fmt.Errorf("creating project %s: setting active: %w", id, err)
	}
	if err := pm.persistence.CommitTransaction(tx); err != nil {
		return nil, fmt.Errorf("creating project %s: %w", id, err)
	}

	if pm.events != nil {
		_ = pm.events.LogEvent("project.created", map[string]any{"project": id, "goal": goal})
	}
	return cfg, nil
}

// ListProjects returns the configs of all projects under the data
// directory. Projects whose config is missing or unreadable are skipped.
func (pm *ProjectManager) ListProjects() ([]models.ProjectConfig, error) {
	ids, err := pm.persistence.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	var configs []models.ProjectConfig
	for _, id := range ids {
		var cfg models.ProjectConfig
		found, err := pm.persistence.LoadProjectData(id, "config.json", &cfg)
		if err != nil || !found {
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// GetProject loads one project's config.
func (pm *ProjectManager) GetProject(id string) (*models.ProjectConfig, error) {
	var cfg models.ProjectConfig
	found, err := pm.persistence.LoadProjectData(id, "config.json", &cfg)
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("getting project %s: project configuration not found", id)
	}
	return &cfg, nil
}

// SetActiveProject updates the data-directory active-project pointer.
func (pm *ProjectManager) SetActiveProject(id string) error {
	if _, err := pm.GetProject(id); err != nil {
		return fmt.Errorf("setting active project: %w", err)
	}
	if err := pm.persistence.SaveState(&models.ActiveState{ActiveProject: id}, nil); err != nil {
		return fmt.Errorf("setting active project: %w", err)
	}
	return nil
}

// ActiveProject resolves the active project and its config. A missing
// active project is a hard precondition failure for every operation that
// needs one.
func (pm *ProjectManager) ActiveProject() (*models.ProjectConfig, error) {
	var state models.ActiveState
	found, err := pm.persistence.LoadState(&state)
	if err != nil {
		return nil, fmt.Errorf("resolving active project: %w", err)
	}
	if !found || state.ActiveProject == "" {
		return nil, fmt.Errorf("no active project: create one or select an existing project first")
	}
	cfg, err := pm.GetProject(state.ActiveProject)
	if err != nil {
		return nil, fmt.Errorf("resolving active project: %w", err)
	}
	return cfg, nil
}
