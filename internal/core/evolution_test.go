package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rowanvale/forest/internal/intelligence"
	"github.com/rowanvale/forest/internal/storage"
	"github.com/rowanvale/forest/pkg/models"
)

func TestClassifyFeedback_LifeEvent(t *testing.T) {
	got := ClassifyFeedback("I lost my job and have no money")
	if got.LifeEvent != LifeEventFinancialCrisis {
		t.Errorf("LifeEvent = %q, want %q", got.LifeEvent, LifeEventFinancialCrisis)
	}
	if got.Severity != "high" {
		t.Errorf("Severity = %q, want high (two keyword matches)", got.Severity)
	}
	if got.Sentiment != "negative" {
		t.Errorf("Sentiment = %q, want negative", got.Sentiment)
	}
	if got.Breakthrough {
		t.Error("Breakthrough = true, want false")
	}
}

func TestClassifyFeedback_BreakthroughShortCircuits(t *testing.T) {
	// Breakthrough keywords win even when life-event keywords are present.
	got := ClassifyFeedback("I finally understand recursion, even though I lost my job")
	if !got.Breakthrough {
		t.Fatal("Breakthrough = false, want true")
	}
	if got.LifeEvent != "" {
		t.Errorf("LifeEvent = %q, want empty", got.LifeEvent)
	}
	if got.Sentiment != "positive" {
		t.Errorf("Sentiment = %q, want positive", got.Sentiment)
	}
}

func TestClassifyFeedback_LifeEventOrder(t *testing.T) {
	// Financial crisis outranks health crisis when both match.
	got := ClassifyFeedback("I'm broke and just got out of surgery")
	if got.LifeEvent != LifeEventFinancialCrisis {
		t.Errorf("LifeEvent = %q, want %q", got.LifeEvent, LifeEventFinancialCrisis)
	}
}

func TestClassifyFeedback_Sentiment(t *testing.T) {
	cases := []struct {
		feedback string
		want     string
	}{
		{"making great progress, really enjoying this", "positive"},
		{"so frustrated and confused", "negative"},
		{"it is what it is", "neutral"},
		{"", "neutral"},
		{"good but difficult", "neutral"},
	}
	for _, tc := range cases {
		if got := ClassifyFeedback(tc.feedback); got.Sentiment != tc.want {
			t.Errorf("ClassifyFeedback(%q).Sentiment = %q, want %q", tc.feedback, got.Sentiment, tc.want)
		}
	}
}

func TestCountAvailableTasks(t *testing.T) {
	tree := &models.HTATree{FrontierNodes: []*models.Task{
		{ID: "done", Title: "Done", Completed: true},
		{ID: "ready", Title: "Ready", Prerequisites: []string{"done"}},
		{ID: "readyByTitle", Title: "Ready by title", Prerequisites: []string{"Done"}},
		{ID: "blocked", Title: "Blocked", Prerequisites: []string{"ready"}},
		{ID: "free", Title: "Free"},
	}}
	if got := CountAvailableTasks(tree); got != 3 {
		t.Errorf("CountAvailableTasks = %d, want 3", got)
	}
	if got := CountAvailableTasks(nil); got != 0 {
		t.Errorf("CountAvailableTasks(nil) = %d, want 0", got)
	}
}

func TestDetectStuckIndicators(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	empty := &models.HTATree{}
	indicators := DetectStuckIndicators(empty, &models.LearningHistory{}, now, 2.5)
	if !containsString(indicators, StuckNoAvailableTasks) {
		t.Error("missing no_available_tasks for empty tree")
	}
	if !containsString(indicators, StuckNoRecentProgress) {
		t.Error("missing no_recent_progress for empty history")
	}

	// Recent completions with low reported energy trip the engagement
	// indicator instead of the progress one.
	lively := &models.HTATree{FrontierNodes: []*models.Task{{ID: "t", Title: "T"}}}
	history := &models.LearningHistory{CompletedTopics: []models.CompletionRecord{
		{Topic: "a", CompletedAt: now.Add(-24 * time.Hour).Format(time.RFC3339), EnergyAfter: 2},
		{Topic: "b", CompletedAt: now.Add(-48 * time.Hour).Format(time.RFC3339), EnergyAfter: 2},
	}}
	indicators = DetectStuckIndicators(lively, history, now, 2.5)
	if containsString(indicators, StuckNoRecentProgress) {
		t.Error("no_recent_progress reported despite recent completions")
	}
	if !containsString(indicators, StuckLowEngagement) {
		t.Error("missing low_engagement for mean energy 2.0")
	}

	// Completions older than the window do not count as progress.
	stale := &models.LearningHistory{CompletedTopics: []models.CompletionRecord{
		{Topic: "a", CompletedAt: now.Add(-10 * 24 * time.Hour).Format(time.RFC3339), EnergyAfter: 5},
	}}
	indicators = DetectStuckIndicators(lively, stale, now, 2.5)
	if !containsString(indicators, StuckNoRecentProgress) {
		t.Error("missing no_recent_progress for stale history")
	}
}

func TestSelectStrategy_DecisionOrder(t *testing.T) {
	cases := []struct {
		name           string
		classification FeedbackClassification
		indicators     []string
		available      int
		want           string
	}{
		{"breakthrough wins", FeedbackClassification{Breakthrough: true}, []string{StuckNoAvailableTasks}, 0, StrategyEscalateAfterBreakthrough},
		{"life event", FeedbackClassification{LifeEvent: LifeEventFinancialCrisis}, nil, 5, "adapt_to_zero_budget"},
		{"no available tasks", FeedbackClassification{Sentiment: "neutral"}, []string{StuckNoAvailableTasks}, 0, StrategyGenerateNewTasks},
		{"low engagement", FeedbackClassification{Sentiment: "neutral"}, []string{StuckLowEngagement}, 5, StrategyIncreaseVariety},
		{"negative sentiment", FeedbackClassification{Sentiment: "negative"}, nil, 5, StrategyAddressConcerns},
		{"thin frontier", FeedbackClassification{Sentiment: "neutral"}, nil, 2, StrategyExpandFrontier},
		{"healthy", FeedbackClassification{Sentiment: "positive"}, nil, 5, StrategyOptimizeSequence},
	}
	for _, tc := range cases {
		if got := SelectStrategy(tc.classification, tc.indicators, tc.available); got != tc.want {
			t.Errorf("%s: SelectStrategy = %q, want %q", tc.name, got, tc.want)
		}
	}
}

// arrayProvider returns a fixed JSON payload for every request.
type arrayProvider struct {
	payload string
}

func (p arrayProvider) RequestIntelligence(_ context.Context, _ string, _ intelligence.RequestPayload) (*intelligence.Response, error) {
	return &intelligence.Response{Completion: p.payload}, nil
}

func newEvolverForTest(t *testing.T, provider intelligence.Provider) (*StrategyEvolver, *storage.DataPersistence, time.Time) {
	t.Helper()
	persistence := storage.NewDataPersistence(t.TempDir())
	evolver := NewStrategyEvolver(persistence, provider, nil, models.DefaultSettings())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evolver.SetClock(func() time.Time { return now })
	return evolver, persistence, now
}

func seedTree(t *testing.T, persistence *storage.DataPersistence, tree *models.HTATree) {
	t.Helper()
	if err := persistence.SavePathData("proj", models.GeneralPath, "hta.json", tree, nil); err != nil {
		t.Fatalf("seeding tree: %v", err)
	}
}

func TestEvolveStrategy_MissingTree(t *testing.T) {
	evolver, _, _ := newEvolverForTest(t, intelligence.NewStubProvider())
	if _, err := evolver.EvolveStrategy(context.Background(), "proj", models.GeneralPath, ""); err == nil {
		t.Fatal("expected error for missing tree")
	}
}

func TestEvolveStrategy_TemplateFallback(t *testing.T) {
	evolver, persistence, now := newEvolverForTest(t, intelligence.NewStubProvider())
	seedTree(t, persistence, &models.HTATree{Goal: "learn piano"})

	result, err := evolver.EvolveStrategy(context.Background(), "proj", models.GeneralPath, "")
	if err != nil {
		t.Fatalf("EvolveStrategy: %v", err)
	}

	// Empty frontier means the generate_new_tasks strategy and, with a stub
	// provider, the generic templates.
	if result.Strategy != StrategyGenerateNewTasks {
		t.Errorf("Strategy = %q, want %q", result.Strategy, StrategyGenerateNewTasks)
	}
	if len(result.AddedTasks) == 0 {
		t.Fatal("no tasks added")
	}
	for _, task := range result.AddedTasks {
		if !strings.HasPrefix(task.ID, "task_") {
			t.Errorf("task id %q missing task_ prefix", task.ID)
		}
		if task.SerendipityCreatedAt != now.Format(time.RFC3339) {
			t.Errorf("task %s serendipity stamp = %q, want %q", task.ID, task.SerendipityCreatedAt, now.Format(time.RFC3339))
		}
		if task.SerendipitySource != StrategyGenerateNewTasks {
			t.Errorf("task %s serendipity source = %q", task.ID, task.SerendipitySource)
		}
		if !strings.Contains(task.Title+task.Description, "learn piano") {
			t.Errorf("task %s not instantiated with the goal: %q", task.ID, task.Title)
		}
	}

	// The new frontier must be persisted.
	var saved models.HTATree
	found, err := persistence.LoadPathData("proj", models.GeneralPath, "hta.json", &saved)
	if err != nil || !found {
		t.Fatalf("loading saved tree: found=%v err=%v", found, err)
	}
	if len(saved.FrontierNodes) != len(result.AddedTasks) {
		t.Errorf("persisted frontier has %d tasks, want %d", len(saved.FrontierNodes), len(result.AddedTasks))
	}
}

func TestEvolveStrategy_LifeEventAdaptation(t *testing.T) {
	evolver, persistence, _ := newEvolverForTest(t, intelligence.NewStubProvider())
	seedTree(t, persistence, &models.HTATree{Goal: "learn piano", FrontierNodes: []*models.Task{
		{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"},
	}})

	result, err := evolver.EvolveStrategy(context.Background(), "proj", models.GeneralPath, "I lost my job and have no money")
	if err != nil {
		t.Fatalf("EvolveStrategy: %v", err)
	}
	if result.Strategy != "adapt_to_zero_budget" {
		t.Errorf("Strategy = %q, want adapt_to_zero_budget", result.Strategy)
	}
	if result.Classification.Severity != "high" {
		t.Errorf("Severity = %q, want high", result.Classification.Severity)
	}
}

func TestEvolveStrategy_BreakthroughEscalation(t *testing.T) {
	evolver, persistence, _ := newEvolverForTest(t, intelligence.NewStubProvider())
	seedTree(t, persistence, &models.HTATree{Goal: "learn piano", FrontierNodes: []*models.Task{
		{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"},
	}})

	result, err := evolver.EvolveStrategy(context.Background(), "proj", models.GeneralPath, "huge breakthrough today")
	if err != nil {
		t.Fatalf("EvolveStrategy: %v", err)
	}
	if result.Strategy != StrategyEscalateAfterBreakthrough {
		t.Errorf("Strategy = %q, want %q", result.Strategy, StrategyEscalateAfterBreakthrough)
	}
	if len(result.AddedTasks) == 0 {
		t.Fatal("no escalation tasks added")
	}
	for _, task := range result.AddedTasks {
		if !task.MomentumBuilding {
			t.Errorf("escalation task %s not momentum-building", task.ID)
		}
		if task.Priority != models.DefaultSettings().DefaultTaskPriority+100 {
			t.Errorf("escalation task %s priority = %d", task.ID, task.Priority)
		}
	}
}

func TestEvolveStrategy_ProviderTasksCapped(t *testing.T) {
	var entries []string
	for i := 0; i < 8; i++ {
		entries = append(entries, fmt.Sprintf(`{"title":"Generated %d","branch":"Development","duration":"25 minutes","difficulty":3}`, i))
	}
	provider := arrayProvider{payload: "[" + strings.Join(entries, ",") + "]"}

	evolver, persistence, _ := newEvolverForTest(t, provider)
	seedTree(t, persistence, &models.HTATree{Goal: "learn piano"})

	result, err := evolver.EvolveStrategy(context.Background(), "proj", models.GeneralPath, "")
	if err != nil {
		t.Fatalf("EvolveStrategy: %v", err)
	}
	if cap := models.DefaultSettings().EvolutionTaskCap; len(result.AddedTasks) != cap {
		t.Errorf("added %d tasks, want cap %d", len(result.AddedTasks), cap)
	}
}

func TestEvolveStrategy_DuplicateTitlesFiltered(t *testing.T) {
	provider := arrayProvider{payload: `[{"title":"Existing Task"},{"title":"  "},{"title":"Fresh Task"}]`}

	evolver, persistence, _ := newEvolverForTest(t, provider)
	seedTree(t, persistence, &models.HTATree{Goal: "learn piano", FrontierNodes: []*models.Task{
		{ID: "e", Title: "existing task"},
	}})

	result, err := evolver.EvolveStrategy(context.Background(), "proj", models.GeneralPath, "")
	if err != nil {
		t.Fatalf("EvolveStrategy: %v", err)
	}
	for _, task := range result.AddedTasks {
		if strings.EqualFold(task.Title, "Existing Task") {
			t.Errorf("duplicate title %q passed validation", task.Title)
		}
	}
	found := false
	for _, task := range result.AddedTasks {
		if task.Title == "Fresh Task" {
			found = true
		}
	}
	if !found {
		t.Error("valid generated task missing from results")
	}
}

func TestRecentBreakthroughLooksAtLastTwo(t *testing.T) {
	history := &models.LearningHistory{CompletedTopics: []models.CompletionRecord{
		{Topic: "old", Breakthrough: true},
		{Topic: "mid"},
		{Topic: "new"},
	}}
	if recentBreakthrough(history) {
		t.Error("breakthrough three completions back still counted as recent")
	}
	history.CompletedTopics[2].Breakthrough = true
	if !recentBreakthrough(history) {
		t.Error("breakthrough in last completion not detected")
	}
	if recentBreakthrough(nil) {
		t.Error("nil history reported a breakthrough")
	}
}
