package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rowanvale/forest/internal/intelligence"
	"github.com/rowanvale/forest/internal/storage"
	"github.com/rowanvale/forest/pkg/models"
)

// Strategy names returned by SelectStrategy.
const (
	StrategyEscalateAfterBreakthrough = "escalate_after_breakthrough"
	StrategyGenerateNewTasks          = "generate_new_tasks"
	StrategyIncreaseVariety           = "increase_variety_and_interest"
	StrategyAddressConcerns           = "address_user_concerns"
	StrategyExpandFrontier            = "expand_task_frontier"
	StrategyOptimizeSequence          = "optimize_existing_sequence"
)

// Life-event classifications, checked in this fixed order.
const (
	LifeEventFinancialCrisis = "financial_crisis"
	LifeEventCaregivingMode  = "caregiving_mode"
	LifeEventLocationChange  = "location_change"
	LifeEventTimeConstraints = "time_constraints"
	LifeEventHealthCrisis    = "health_crisis"
)

// lifeEventOrder fixes the priority when multiple families match.
var lifeEventOrder = []string{
	LifeEventFinancialCrisis,
	LifeEventCaregivingMode,
	LifeEventLocationChange,
	LifeEventTimeConstraints,
	LifeEventHealthCrisis,
}

// lifeEventStrategies maps a detected life event to its adaptation
// strategy.
var lifeEventStrategies = map[string]string{
	LifeEventFinancialCrisis: "adapt_to_zero_budget",
	LifeEventCaregivingMode:  "adapt_to_caregiving_mode",
	LifeEventLocationChange:  "adapt_to_new_location",
	LifeEventTimeConstraints: "adapt_to_time_constraints",
	LifeEventHealthCrisis:    "adapt_to_health_priority",
}

var lifeEventKeywords = map[string][]string{
	LifeEventFinancialCrisis: {"lost my job", "laid off", "no money", "can't afford", "broke", "unemployed", "financial crisis"},
	LifeEventCaregivingMode:  {"caregiver", "caregiving", "caring for", "sick parent", "new baby", "taking care of"},
	LifeEventLocationChange:  {"moving", "relocat", "new city", "new country", "moved away"},
	LifeEventTimeConstraints: {"no time", "too busy", "barely have time", "schedule is packed", "overloaded"},
	LifeEventHealthCrisis:    {"diagnosed", "hospital", "surgery", "health crisis", "injury", "chronic pain"},
}

var breakthroughKeywords = []string{"breakthrough", "aha", "finally understand", "clicked", "figured out", "eureka", "major insight"}

var positiveKeywords = []string{"great", "good", "love", "excited", "enjoying", "progress", "momentum"}

var negativeKeywords = []string{"frustrated", "stuck", "boring", "hate", "difficult", "confused", "tired", "overwhelmed"}

// Stuck indicators detected from the task store and learning history.
const (
	StuckNoAvailableTasks = "no_available_tasks"
	StuckNoRecentProgress = "no_recent_progress"
	StuckLowEngagement    = "low_engagement"
)

// progressWindow is the trailing window inspected for recent completions.
const progressWindow = 7 * 24 * time.Hour

// FeedbackClassification is the outcome of scanning free-text feedback. It
// is recomputed on every call; nothing about it is persisted.
type FeedbackClassification struct {
	Breakthrough bool
	LifeEvent    string // empty when no life event matched
	Severity     string // "high" or "moderate" when a life event matched
	Sentiment    string // "positive", "negative", or "neutral"
}

// ClassifyFeedback scans feedback text case-insensitively. Breakthrough
// keywords short-circuit everything else; life-event families are then
// checked in fixed order with first match winning; failing both, sentiment
// falls back to a keyword-count comparison.
func ClassifyFeedback(feedback string) FeedbackClassification {
	text := strings.ToLower(feedback)

	for _, kw := range breakthroughKeywords {
		if strings.Contains(text, kw) {
			return FeedbackClassification{Breakthrough: true, Sentiment: "positive"}
		}
	}

	for _, event := range lifeEventOrder {
		matches := 0
		for _, kw := range lifeEventKeywords[event] {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		severity := "moderate"
		if matches >= 2 {
			severity = "high"
		}
		return FeedbackClassification{
			LifeEvent: event,
			Severity:  severity,
			Sentiment: "negative",
		}
	}

	positive, negative := 0, 0
	for _, kw := range positiveKeywords {
		if strings.Contains(text, kw) {
			positive++
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(text, kw) {
			negative++
		}
	}
	switch {
	case positive > negative:
		return FeedbackClassification{Sentiment: "positive"}
	case negative > positive:
		return FeedbackClassification{Sentiment: "negative"}
	default:
		return FeedbackClassification{Sentiment: "neutral"}
	}
}

// CountAvailableTasks returns how many leaf tasks are currently actionable:
// not completed, with every prerequisite resolving against a completed id
// or title.
func CountAvailableTasks(tree *models.HTATree) int {
	if tree == nil {
		return 0
	}
	leaves := FlattenTasks(tree.FrontierNodes)

	completed := make(map[string]bool)
	for _, task := range leaves {
		if task.Completed {
			completed[task.ID] = true
			if task.Title != "" {
				completed[task.Title] = true
			}
		}
	}

	count := 0
	for _, task := range leaves {
		if task.Completed {
			continue
		}
		met := true
		for _, prereq := range task.Prerequisites {
			if !completed[prereq] {
				met = false
				break
			}
		}
		if met {
			count++
		}
	}
	return count
}

// DetectStuckIndicators inspects the task store and learning history for
// signs the user is stuck: no actionable tasks, no completions in the
// trailing week, or a mean post-task energy below the engagement threshold.
func DetectStuckIndicators(tree *models.HTATree, history *models.LearningHistory, now time.Time, engagementThreshold float64) []string {
	var indicators []string

	if CountAvailableTasks(tree) == 0 {
		indicators = append(indicators, StuckNoAvailableTasks)
	}

	recent := recentCompletions(history, now)
	if len(recent) == 0 {
		indicators = append(indicators, StuckNoRecentProgress)
	} else {
		sum := 0
		rated := 0
		for _, rec := range recent {
			if rec.EnergyAfter > 0 {
				sum += rec.EnergyAfter
				rated++
			}
		}
		if rated > 0 && float64(sum)/float64(rated) < engagementThreshold {
			indicators = append(indicators, StuckLowEngagement)
		}
	}

	return indicators
}

func recentCompletions(history *models.LearningHistory, now time.Time) []models.CompletionRecord {
	if history == nil {
		return nil
	}
	var recent []models.CompletionRecord
	for _, rec := range history.CompletedTopics {
		completedAt, err := time.Parse(time.RFC3339, rec.CompletedAt)
		if err != nil {
			continue
		}
		if now.Sub(completedAt) <= progressWindow {
			recent = append(recent, rec)
		}
	}
	return recent
}

// SelectStrategy walks the priority-ordered decision list; the first match
// wins.
func SelectStrategy(classification FeedbackClassification, indicators []string, availableCount int) string {
	if classification.Breakthrough {
		return StrategyEscalateAfterBreakthrough
	}
	if classification.LifeEvent != "" {
		return lifeEventStrategies[classification.LifeEvent]
	}
	if containsString(indicators, StuckNoAvailableTasks) {
		return StrategyGenerateNewTasks
	}
	if containsString(indicators, StuckLowEngagement) {
		return StrategyIncreaseVariety
	}
	if classification.Sentiment == "negative" {
		return StrategyAddressConcerns
	}
	if availableCount < 3 {
		return StrategyExpandFrontier
	}
	return StrategyOptimizeSequence
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// EvolutionResult summarises one strategy-evolution cycle.
type EvolutionResult struct {
	Strategy        string
	Classification  FeedbackClassification
	StuckIndicators []string
	AddedTasks      []*models.Task
}

// StrategyEvolver classifies feedback, decides an evolution strategy, and
// grows the task frontier accordingly. All store mutations happen inside a
// persistence transaction.
type StrategyEvolver struct {
	persistence *storage.DataPersistence
	provider    intelligence.Provider
	events      EventLogger
	settings    *models.Settings
	clock       func() time.Time
}

// NewStrategyEvolver creates a StrategyEvolver. provider and events may be
// nil; a nil provider routes every generation through the template
// fallback.
func NewStrategyEvolver(persistence *storage.DataPersistence, provider intelligence.Provider, events EventLogger, settings *models.Settings) *StrategyEvolver {
	if settings == nil {
		settings = models.DefaultSettings()
	}
	return &StrategyEvolver{
		persistence: persistence,
		provider:    provider,
		events:      events,
		settings:    settings,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the evolver's clock, for tests.
func (e *StrategyEvolver) SetClock(clock func() time.Time) {
	e.clock = clock
}

// EvolveStrategy runs one full evolution cycle for a project path: load the
// store, classify the feedback, pick a strategy, generate new tasks, and
// append them to the frontier under a transaction.
func (e *StrategyEvolver) EvolveStrategy(ctx context.Context, projectID, pathName, feedback string) (*EvolutionResult, error) {
	var tree models.HTATree
	found, err := e.persistence.LoadPathData(projectID, pathName, "hta.json", &tree)
	if err != nil {
		return nil, fmt.Errorf("evolving strategy for %s: %w", projectID, err)
	}
	if !found {
		return nil, fmt.Errorf("evolving strategy for %s: no task tree exists for path %q", projectID, pathName)
	}

	history := &models.LearningHistory{}
	if _, err := e.persistence.LoadPathData(projectID, pathName, "learning_history.json", history); err != nil {
		return nil, fmt.Errorf("evolving strategy for %s: loading history: %w", projectID, err)
	}

	now := e.clock()
	classification := ClassifyFeedback(feedback)
	indicators := DetectStuckIndicators(&tree, history, now, e.settings.LowEngagementThreshold)
	available := CountAvailableTasks(&tree)
	strategy := SelectStrategy(classification, indicators, available)

	newTasks := e.generateTasks(ctx, &tree, history, strategy, classification)
	newTasks = e.finalizeTasks(newTasks, strategy, now)

	if len(newTasks) > 0 {
		tree.FrontierNodes = append(tree.FrontierNodes, newTasks...)
		tree.LastUpdated = now.Format(time.RFC3339)

		tx := e.persistence.BeginTransaction()
		if err := e.persistence.SavePathData(projectID, pathName, "hta.json", &tree, tx); err != nil {
			_ = e.persistence.RollbackTransaction(tx)
			return nil, fmt.Errorf("evolving strategy for %s: saving tree: %w", projectID, err)
		}
		if err := e.persistence.CommitTransaction(tx); err != nil {
			return nil, fmt.Errorf("evolving strategy for %s: %w", projectID, err)
		}
	}

	e.logEvent("strategy.evolved", map[string]any{
		"project":     projectID,
		"path":        pathName,
		"strategy":    strategy,
		"life_event":  classification.LifeEvent,
		"added_tasks": len(newTasks),
	})

	return &EvolutionResult{
		Strategy:        strategy,
		Classification:  classification,
		StuckIndicators: indicators,
		AddedTasks:      newTasks,
	}, nil
}

// generateTasks produces candidate tasks for the chosen strategy.
// Escalation after a breakthrough takes precedence over everything and
// skips delegation; otherwise generation is delegated to the intelligence
// provider, degrading to the embedded templates when the provider fails or
// returns nothing usable.
func (e *StrategyEvolver) generateTasks(ctx context.Context, tree *models.HTATree, history *models.LearningHistory, strategy string, classification FeedbackClassification) []*models.Task {
	if strategy == StrategyEscalateAfterBreakthrough || recentBreakthrough(history) {
		tasks := instantiateTemplates(builtinTemplates.Escalation, tree.Goal)
		for _, task := range tasks {
			task.MomentumBuilding = true
			task.Priority = e.settings.DefaultTaskPriority + 100
		}
		return tasks
	}

	if e.provider != nil {
		prompt := buildGenerationPrompt(tree, strategy, classification)
		resp, err := e.provider.RequestIntelligence(ctx, "task_generation", intelligence.RequestPayload{
			Prompt:      prompt,
			MaxTokens:   1200,
			Temperature: 0.7,
		})
		if err == nil {
			if generated := intelligence.ExtractTaskArray(resp); len(generated) > 0 {
				if tasks := e.convertGenerated(generated, tree); len(tasks) > 0 {
					return tasks
				}
			}
		}
	}

	return instantiateTemplates(builtinTemplates.Generic, tree.Goal)
}

// recentBreakthrough reports whether either of the last two completions was
// flagged as a breakthrough.
func recentBreakthrough(history *models.LearningHistory) bool {
	if history == nil {
		return false
	}
	records := history.CompletedTopics
	start := len(records) - 2
	if start < 0 {
		start = 0
	}
	for _, rec := range records[start:] {
		if rec.Breakthrough {
			return true
		}
	}
	return false
}

func buildGenerationPrompt(tree *models.HTATree, strategy string, classification FeedbackClassification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate follow-up tasks for the goal: %s\n", tree.Goal)
	fmt.Fprintf(&b, "Evolution strategy: %s\n", strategy)
	if tree.LearningStyle != "" {
		fmt.Fprintf(&b, "Learning style: %s\n", tree.LearningStyle)
	}
	if classification.LifeEvent != "" {
		fmt.Fprintf(&b, "The user reported a life event: %s (severity %s). Adapt accordingly.\n", classification.LifeEvent, classification.Severity)
	}
	fmt.Fprintf(&b, "Current frontier size: %d tasks.\n", len(FlattenTasks(tree.FrontierNodes)))
	b.WriteString("Respond with a JSON array of objects with fields: title, description, branch, duration, difficulty.")
	return b.String()
}

// convertGenerated validates provider output: tasks need a non-empty title
// that is not already on the frontier.
func (e *StrategyEvolver) convertGenerated(generated []intelligence.GeneratedTask, tree *models.HTATree) []*models.Task {
	existing := make(map[string]bool)
	for _, task := range FlattenTasks(tree.FrontierNodes) {
		existing[strings.ToLower(task.Title)] = true
	}

	var tasks []*models.Task
	for _, g := range generated {
		title := strings.TrimSpace(g.Title)
		if title == "" || existing[strings.ToLower(title)] {
			continue
		}
		existing[strings.ToLower(title)] = true
		tasks = append(tasks, &models.Task{
			Title:       title,
			Description: g.Description,
			Branch:      g.Branch,
			Duration:    models.Duration(g.Duration),
			Difficulty:  g.Difficulty,
			Priority:    g.Priority,
		})
	}
	return tasks
}

// finalizeTasks assigns synthetic ids, default priority and branch, and
// serendipity stamps (these tasks are reactively generated, so they earn
// the freshness boost), then applies the evolution cap.
func (e *StrategyEvolver) finalizeTasks(tasks []*models.Task, strategy string, now time.Time) []*models.Task {
	limit := e.settings.EvolutionTaskCap
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	for _, task := range tasks {
		if task.ID == "" {
			task.ID = "task_" + uuid.NewString()
		}
		if task.Priority == 0 {
			task.Priority = e.settings.DefaultTaskPriority
		}
		if task.Branch == "" {
			task.Branch = "Foundation"
		}
		task.SerendipityCreatedAt = now.Format(time.RFC3339)
		task.SerendipitySource = strategy
	}
	return tasks
}

func (e *StrategyEvolver) logEvent(eventType string, data map[string]any) {
	if e.events != nil {
		_ = e.events.LogEvent(eventType, data)
	}
}
