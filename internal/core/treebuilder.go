package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rowanvale/forest/pkg/models"
)

// defaultBranches are the strategic branches seeded into a new tree.
var defaultBranches = []models.StrategicBranch{
	{ID: "foundation", Title: "Foundation", Description: "Fundamentals and setup", Order: 1},
	{ID: "development", Title: "Development", Description: "Core skill building", Order: 2},
	{ID: "application", Title: "Application", Description: "Applying skills to real work", Order: 3},
	{ID: "mastery", Title: "Mastery", Description: "Advanced practice and teaching others", Order: 4},
}

// BuildTree seeds a project path's HTA tree: strategic branches plus an
// initial frontier produced by the generation pipeline (provider when
// available, embedded templates otherwise). Rebuilding over a non-empty
// frontier is refused so existing work is never clobbered.
func (e *StrategyEvolver) BuildTree(ctx context.Context, project *models.ProjectConfig, pathName string) (*models.HTATree, error) {
	if project == nil {
		return nil, fmt.Errorf("building tree: project configuration is nil")
	}
	if pathName == "" {
		pathName = models.GeneralPath
	}

	var existing models.HTATree
	found, err := e.persistence.LoadPathData(project.ID, pathName, "hta.json", &existing)
	if err != nil {
		return nil, fmt.Errorf("building tree for %s: %w", project.ID, err)
	}
	if found && len(existing.FrontierNodes) > 0 {
		return nil, fmt.Errorf("building tree for %s: path %q already has %d frontier tasks", project.ID, pathName, len(existing.FrontierNodes))
	}

	now := e.clock()
	tree := &models.HTATree{
		Goal:              project.Goal,
		LearningStyle:     project.LearningStyle,
		FocusAreas:        project.FocusAreas,
		StrategicBranches: defaultBranches,
		LastUpdated:       now.Format(time.RFC3339),
	}

	tasks := e.generateTasks(ctx, tree, nil, StrategyExpandFrontier, FeedbackClassification{Sentiment: "neutral"})
	tasks = e.finalizeTasks(tasks, "tree_bootstrap", now)
	// Bootstrap tasks are planned, not reactive; no freshness boost.
	for _, task := range tasks {
		task.SerendipityCreatedAt = ""
		task.SerendipitySource = ""
	}
	tree.FrontierNodes = tasks

	tx := e.persistence.BeginTransaction()
	if err := e.persistence.SavePathData(project.ID, pathName, "hta.json", tree, tx); err != nil {
		_ = e.persistence.RollbackTransaction(tx)
		return nil, fmt.Errorf("building tree for %s: %w", project.ID, err)
	}
	if err := e.persistence.CommitTransaction(tx); err != nil {
		return nil, fmt.Errorf("building tree for %s: %w", project.ID, err)
	}

	e.logEvent("tree.built", map[string]any{
		"project": project.ID,
		"path":    pathName,
		"tasks":   len(tasks),
	})
	return tree, nil
}
