package core

import (
	"math/rand"
	"time"

	"github.com/rowanvale/forest/pkg/models"
)

// Selector picks the best currently-actionable task from an HTA tree. It is
// deterministic up to the final tie-break, where uniform randomness is
// deliberate variety injection.
type Selector struct {
	rng    *rand.Rand
	events EventLogger
}

// NewSelector creates a Selector. events may be nil; rng seeding uses the
// wall clock unless a source is provided via NewSelectorWithRand.
func NewSelector(events EventLogger) *Selector {
	return NewSelectorWithRand(events, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSelectorWithRand creates a Selector with an injected random source, so
// tests can pin the final tie-break.
func NewSelectorWithRand(events EventLogger, rng *rand.Rand) *Selector {
	return &Selector{rng: rng, events: events}
}

// FlattenTasks reduces an arbitrarily nested task list to its actionable
// leaves. A task with subtasks is a grouping node and is not itself
// selectable. Nil entries are skipped.
func FlattenTasks(nodes []*models.Task) []*models.Task {
	var leaves []*models.Task
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if node.IsLeaf() {
			leaves = append(leaves, node)
			continue
		}
		leaves = append(leaves, FlattenTasks(node.Subtasks)...)
	}
	return leaves
}

// SelectOptimalTask filters the tree down to actionable candidates, scores
// them, and returns the winner, or nil when nothing is actionable. It never
// panics on malformed input: a nil or empty tree, nil tasks, and unparseable
// fields all degrade to skipping or returning nil. Two tasks that mutually
// list each other as prerequisites can never both satisfy the filter, so a
// tree containing only such a cycle correctly yields nil.
func (s *Selector) SelectOptimalTask(tree *models.HTATree, energyLevel int, timeAvailable string, sctx ScoringContext) *models.Task {
	if tree == nil {
		return nil
	}

	leaves := FlattenTasks(tree.FrontierNodes)
	if len(leaves) == 0 {
		return nil
	}

	byID := make(map[string]*models.Task, len(leaves))
	byTitle := make(map[string]*models.Task, len(leaves))
	for _, task := range leaves {
		if task.ID != "" {
			byID[task.ID] = task
		}
		if task.Title != "" {
			byTitle[task.Title] = task
		}
	}

	tolerance := sctx.TimeTolerance
	if tolerance <= 0 {
		tolerance = models.DefaultSettings().TimeTolerance
	}
	available := ParseTimeToMinutes(timeAvailable)

	var candidates []*models.Task
	for _, task := range leaves {
		if task.Completed {
			continue
		}
		if !s.prerequisitesMet(task, byID, byTitle) {
			continue
		}
		// The tolerance is deliberate slack: a task slightly over the
		// available time should not starve the user of good work.
		if float64(ParseTimeToMinutes(string(task.Duration))) > float64(available)*tolerance {
			continue
		}
		candidates = append(candidates, task)
	}
	if len(candidates) == 0 {
		return nil
	}

	best := Score(candidates[0], energyLevel, timeAvailable, sctx)
	tied := []*models.Task{candidates[0]}
	for _, task := range candidates[1:] {
		score := Score(task, energyLevel, timeAvailable, sctx)
		switch {
		case score > best:
			best = score
			tied = tied[:0]
			tied = append(tied, task)
		case score == best:
			tied = append(tied, task)
		}
	}

	if len(tied) == 1 {
		return tied[0]
	}
	return s.breakTie(tied)
}

// prerequisitesMet reports whether every prerequisite resolves against a
// completed task by id or title. When an id match and a title match exist
// but disagree on completion, a warning event is emitted and the
// prerequisite counts as met if either resolution says so (both lookup
// paths are kept, matching long-standing behaviour).
func (s *Selector) prerequisitesMet(task *models.Task, byID, byTitle map[string]*models.Task) bool {
	for _, prereq := range task.Prerequisites {
		idMatch, idOK := byID[prereq]
		titleMatch, titleOK := byTitle[prereq]

		if idOK && titleOK && idMatch != titleMatch && idMatch.Completed != titleMatch.Completed {
			s.logEvent("selector.prerequisite_ambiguous", map[string]any{
				"task":         task.ID,
				"prerequisite": prereq,
			})
		}

		met := (idOK && idMatch.Completed) || (titleOK && titleMatch.Completed)
		if !met {
			return false
		}
	}
	return true
}

// breakTie prefers the task whose branch appears least among the tied set
// (spreading work across branches), then a momentum-building task, then an
// arbitrary uniform pick.
func (s *Selector) breakTie(tied []*models.Task) *models.Task {
	branchCounts := make(map[string]int)
	for _, task := range tied {
		branchCounts[task.Branch]++
	}

	minCount := -1
	for _, count := range branchCounts {
		if minCount < 0 || count < minCount {
			minCount = count
		}
	}

	var diverse []*models.Task
	for _, task := range tied {
		if branchCounts[task.Branch] == minCount {
			diverse = append(diverse, task)
		}
	}
	if len(diverse) == 1 {
		return diverse[0]
	}

	var momentum []*models.Task
	for _, task := range diverse {
		if task.MomentumBuilding {
			momentum = append(momentum, task)
		}
	}
	if len(momentum) == 1 {
		return momentum[0]
	}
	if len(momentum) > 1 {
		diverse = momentum
	}

	return diverse[s.rng.Intn(len(diverse))]
}

func (s *Selector) logEvent(eventType string, data map[string]any) {
	if s.events != nil {
		_ = s.events.LogEvent(eventType, data)
	}
}
