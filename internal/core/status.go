package core

import (
	"fmt"

	"github.com/rowanvale/forest/pkg/models"
)

// StatusReport is a point-in-time summary of the active project.
type StatusReport struct {
	ProjectID      string
	Goal           string
	ActivePath     string
	FrontierTasks  int
	AvailableTasks int
	CompletedTasks int
	TodayBlocks    int
	TodayCompleted int
	LastUpdated    string
}

// CurrentStatus summarises the active project: frontier and completion
// counts from the task store, plus today's schedule progress.
func (ti *TaskIntelligence) CurrentStatus() (*StatusReport, error) {
	project, err := ti.projects.ActiveProject()
	if err != nil {
		return nil, fmt.Errorf("reporting status: %w", err)
	}
	pathName := project.ActivePath
	if pathName == "" {
		pathName = models.GeneralPath
	}

	report := &StatusReport{
		ProjectID:  project.ID,
		Goal:       project.Goal,
		ActivePath: pathName,
	}

	var tree models.HTATree
	found, err := ti.persistence.LoadPathData(project.ID, pathName, "hta.json", &tree)
	if err != nil {
		return nil, fmt.Errorf("reporting status: loading task tree: %w", err)
	}
	if found {
		leaves := FlattenTasks(tree.FrontierNodes)
		report.FrontierTasks = len(leaves)
		for _, task := range leaves {
			if task.Completed {
				report.CompletedTasks++
			}
		}
		report.AvailableTasks = CountAvailableTasks(&tree)
		report.LastUpdated = tree.LastUpdated
	}

	now := ti.clock()
	var schedule models.DaySchedule
	scheduleFile := "day_" + now.Format("2006-01-02") + ".json"
	if _, err := ti.persistence.LoadProjectData(project.ID, scheduleFile, &schedule); err != nil {
		return nil, fmt.Errorf("reporting status: loading schedule: %w", err)
	}
	report.TodayBlocks = len(schedule.Blocks)
	for _, block := range schedule.Blocks {
		if block != nil && block.Completed {
			report.TodayCompleted++
		}
	}

	return report, nil
}
