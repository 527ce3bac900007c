package core

import (
	"math"
	"strings"
	"time"

	"github.com/rowanvale/forest/pkg/models"
)

// Scoring constants. Depth bonuses bias selection toward foundational work;
// the prerequisite swing keeps fully blocked tasks well below ready ones.
const (
	depthBonusFoundational = 1000
	depthBonusCore         = 500
	depthBonusIntermediate = 200
	depthBonusMastery      = 50
	depthBonusUnknown      = 300

	prereqBonusReady   = 800
	prereqBonusPartial = 200
	prereqPenaltyStuck = -500

	energyMatchWeight = 50

	timeFitBonus    = 100
	timeNearBonus   = 50
	timeOverPenalty = -100

	defaultDifficulty = 3
)

// ScoringContext carries everything the scorer needs beyond the task
// itself: the completion lookups, the clock, and the tunables. Keeping the
// clock here makes Score a pure function of its arguments.
type ScoringContext struct {
	CompletedIDs    map[string]bool
	CompletedTitles map[string]bool
	Now             time.Time

	SerendipityWindow time.Duration
	SerendipityBoost  int
	TimeTolerance     float64
	DefaultPriority   int
}

// NewScoringContext builds a ScoringContext from the tree's completed tasks
// and the engine settings.
func NewScoringContext(tree *models.HTATree, now time.Time, cfg *models.Settings) ScoringContext {
	if cfg == nil {
		cfg = models.DefaultSettings()
	}
	sctx := ScoringContext{
		CompletedIDs:      make(map[string]bool),
		CompletedTitles:   make(map[string]bool),
		Now:               now,
		SerendipityWindow: time.Duration(cfg.SerendipityWindowHours) * time.Hour,
		SerendipityBoost:  cfg.SerendipityBoost,
		TimeTolerance:     cfg.TimeTolerance,
		DefaultPriority:   cfg.DefaultTaskPriority,
	}
	if tree == nil {
		return sctx
	}
	for _, task := range FlattenTasks(tree.FrontierNodes) {
		if task.Completed {
			sctx.CompletedIDs[task.ID] = true
			if task.Title != "" {
				sctx.CompletedTitles[task.Title] = true
			}
		}
	}
	return sctx
}

// Score computes the desirability of a single task for the given energy
// level and available time. The total is the sum of six independent
// contributions: base priority, depth, prerequisite state, energy match,
// time fit, and serendipity freshness. No randomness enters the score;
// variety belongs to the selector's tie-breaking.
func Score(task *models.Task, energyLevel int, timeAvailable string, sctx ScoringContext) int {
	if task == nil {
		return 0
	}

	score := basePriority(task, sctx)
	score += depthBonus(resolveDepth(task))
	score += prerequisiteContribution(task, sctx)
	score += energyMatchContribution(task, energyLevel)
	score += timeFitContribution(task, timeAvailable)
	score += serendipityContribution(task, sctx)
	return score
}

func basePriority(task *models.Task, sctx ScoringContext) int {
	if task.Priority > 0 {
		return task.Priority
	}
	if sctx.DefaultPriority > 0 {
		return sctx.DefaultPriority
	}
	return 200
}

// resolveDepth returns the task's explicit depth, or infers one from
// branch-name keywords when absent.
func resolveDepth(task *models.Task) int {
	if task.Depth != 0 {
		return task.Depth
	}
	branch := strings.ToLower(task.Branch)
	switch {
	case containsAny(branch, "foundation", "basic", "intro", "fundamentals"):
		return 1
	case containsAny(branch, "advanced", "mastery", "expert"):
		return 4
	case containsAny(branch, "development", "implementation", "core"):
		return 2
	default:
		return 2
	}
}

func depthBonus(depth int) int {
	switch {
	case depth == 1:
		return depthBonusFoundational
	case depth == 2:
		return depthBonusCore
	case depth == 3:
		return depthBonusIntermediate
	case depth >= 4:
		return depthBonusMastery
	default:
		return depthBonusUnknown
	}
}

// prerequisiteContribution rewards tasks whose prerequisites are all
// satisfied, nudges partially blocked tasks, and penalizes fully blocked
// ones. Prerequisites may reference either task ids or titles.
func prerequisiteContribution(task *models.Task, sctx ScoringContext) int {
	total := len(task.Prerequisites)
	if total == 0 {
		return prereqBonusReady
	}
	met := 0
	for _, prereq := range task.Prerequisites {
		if sctx.CompletedIDs[prereq] || sctx.CompletedTitles[prereq] {
			met++
		}
	}
	switch {
	case met == total:
		return prereqBonusReady
	case met > 0:
		return prereqBonusPartial
	default:
		return prereqPenaltyStuck
	}
}

func energyMatchContribution(task *models.Task, energyLevel int) int {
	difficulty := task.Difficulty
	if difficulty == 0 {
		difficulty = defaultDifficulty
	}
	diff := energyLevel - difficulty
	if diff < 0 {
		diff = -diff
	}
	match := 5 - diff
	if match < 0 {
		match = 0
	}
	return match * energyMatchWeight
}

func timeFitContribution(task *models.Task, timeAvailable string) int {
	available := ParseTimeToMinutes(timeAvailable)
	needed := ParseTimeToMinutes(string(task.Duration))
	switch {
	case available >= needed:
		return timeFitBonus
	case float64(available) >= 0.7*float64(needed):
		return timeNearBonus
	default:
		return timeOverPenalty
	}
}

// serendipityContribution grants a linearly decaying boost to tasks that
// were reactively generated within the decay window. Unparseable or future
// timestamps contribute nothing.
func serendipityContribution(task *models.Task, sctx ScoringContext) int {
	if task.SerendipityCreatedAt == "" || sctx.SerendipityWindow <= 0 {
		return 0
	}
	createdAt, err := time.Parse(time.RFC3339, task.SerendipityCreatedAt)
	if err != nil {
		return 0
	}
	age := sctx.Now.Sub(createdAt)
	if age < 0 || age >= sctx.SerendipityWindow {
		return 0
	}
	fraction := 1 - float64(age)/float64(sctx.SerendipityWindow)
	boost := int(math.Round(float64(sctx.SerendipityBoost) * fraction))
	if boost < 0 {
		return 0
	}
	return boost
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
