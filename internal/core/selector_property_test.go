package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/rowanvale/forest/pkg/models"
	"pgregory.net/rapid"
)

// =============================================================================
// Property: Selected Task Is Actionable
// =============================================================================

// Feature: selection, Property: Selected Task Is Actionable
// *For any* randomly generated tree, a selected task SHALL never be
// completed and SHALL have every prerequisite satisfied.
func TestProperty_SelectedTaskIsActionable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		n := rapid.IntRange(1, 12).Draw(rt, "n")

		var tasks []*models.Task
		completedIDs := map[string]bool{}
		for i := 0; i < n; i++ {
			task := leafTask(fmt.Sprintf("task_%d", i), rapid.SampledFrom([]string{"Foundation", "Development", "Application"}).Draw(rt, fmt.Sprintf("branch_%d", i)))
			task.Completed = rapid.Bool().Draw(rt, fmt.Sprintf("completed_%d", i))
			if task.Completed {
				completedIDs[task.ID] = true
			}
			if i > 0 && rapid.Bool().Draw(rt, fmt.Sprintf("hasPrereq_%d", i)) {
				task.Prerequisites = []string{fmt.Sprintf("task_%d", rapid.IntRange(0, i-1).Draw(rt, fmt.Sprintf("prereq_%d", i)))}
			}
			tasks = append(tasks, task)
		}

		tree := &models.HTATree{FrontierNodes: tasks}
		sctx := NewScoringContext(tree, now, models.DefaultSettings())
		got := testSelector().SelectOptimalTask(tree, 3, "1 hour", sctx)
		if got == nil {
			return
		}
		if got.Completed {
			rt.Fatalf("selected completed task %s", got.ID)
		}
		for _, prereq := range got.Prerequisites {
			if !completedIDs[prereq] {
				rt.Fatalf("selected %s with unmet prerequisite %s", got.ID, prereq)
			}
		}
	})
}
