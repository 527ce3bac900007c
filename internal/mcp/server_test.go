package mcp

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rowanvale/forest/internal/core"
	"github.com/rowanvale/forest/internal/intelligence"
	"github.com/rowanvale/forest/internal/observability"
	"github.com/rowanvale/forest/internal/storage"
	"github.com/rowanvale/forest/pkg/models"
)

// --- Fake implementations ---

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

// newForestServer wires a server against real services on a temp directory.
func newForestServer(t *testing.T, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine) *Server {
	t.Helper()

	persistence := storage.NewDataPersistence(t.TempDir())
	settings := models.DefaultSettings()
	projects := core.NewProjectManager(persistence, nil)
	selector := core.NewSelectorWithRand(nil, rand.New(rand.NewSource(1)))
	intel := core.NewTaskIntelligence(persistence, projects, selector, nil, settings)
	completions := core.NewCompletionHandler(persistence, projects, nil, nil)
	evolver := core.NewStrategyEvolver(persistence, intelligence.NewStubProvider(), nil, settings)

	return NewServer(projects, intel, completions, evolver, metricsCalc, alertEngine, "test")
}

// callTool is a helper that connects a client to the server and calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}

	return result
}

// decodeResult unmarshals a tool result into out, preferring structured
// content over the text rendering.
func decodeResult(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			t.Fatalf("re-marshalling structured content: %v", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("unmarshalling structured content: %v", err)
		}
		return
	}
	text := extractText(result)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		t.Fatalf("unmarshalling tool output: %v (text was: %s)", err, text)
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Tests ---

func TestCreateAndListProjects(t *testing.T) {
	srv := newForestServer(t, nil, nil)

	result := callTool(t, srv, "create_project", map[string]any{
		"project_id": "piano",
		"goal":       "learn piano",
	})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var created projectOutput
	decodeResult(t, result, &created)
	if created.ProjectID != "piano" || created.ActivePath != "general" {
		t.Errorf("created = %+v", created)
	}

	result = callTool(t, srv, "list_projects", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var listed listProjectsOutput
	decodeResult(t, result, &listed)
	if listed.Count != 1 || listed.Projects[0].Goal != "learn piano" {
		t.Errorf("listed = %+v", listed)
	}
}

func TestCreateProjectDuplicate(t *testing.T) {
	srv := newForestServer(t, nil, nil)

	callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "learn piano"})
	result := callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "again"})
	if !result.IsError {
		t.Fatal("expected error for duplicate project")
	}
}

func TestSetActiveProjectUnknown(t *testing.T) {
	srv := newForestServer(t, nil, nil)

	result := callTool(t, srv, "set_active_project", map[string]any{"project_id": "ghost"})
	if !result.IsError {
		t.Fatal("expected error for unknown project")
	}
}

func TestBuildTreeAndGetNextTask(t *testing.T) {
	srv := newForestServer(t, nil, nil)
	callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "learn piano"})

	result := callTool(t, srv, "build_hta_tree", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var built buildTreeOutput
	decodeResult(t, result, &built)
	if len(built.Branches) != 4 || len(built.Tasks) == 0 {
		t.Errorf("built = %+v", built)
	}

	result = callTool(t, srv, "get_next_task", map[string]any{
		"energy_level":   3,
		"time_available": "1 hour",
	})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var next getNextTaskOutput
	decodeResult(t, result, &next)
	if next.Task == nil || next.Task.Title == "" {
		t.Errorf("next = %+v", next)
	}
}

func TestGetNextTaskValidatesEnergy(t *testing.T) {
	srv := newForestServer(t, nil, nil)
	callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "learn piano"})

	result := callTool(t, srv, "get_next_task", map[string]any{"energy_level": 0})
	if !result.IsError {
		t.Fatal("expected error for energy_level 0")
	}
	result = callTool(t, srv, "get_next_task", map[string]any{"energy_level": 6})
	if !result.IsError {
		t.Fatal("expected error for energy_level 6")
	}
}

func TestGetNextTaskEmptyFrontier(t *testing.T) {
	srv := newForestServer(t, nil, nil)
	callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "learn piano"})

	result := callTool(t, srv, "get_next_task", map[string]any{"energy_level": 3})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var next getNextTaskOutput
	decodeResult(t, result, &next)
	if next.Task != nil {
		t.Errorf("task = %+v, want nil", next.Task)
	}
	if next.Message == "" {
		t.Error("expected a guidance message when no task is available")
	}
}

func TestCompleteBlockAdHoc(t *testing.T) {
	srv := newForestServer(t, nil, nil)
	callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "learn piano"})

	result := callTool(t, srv, "complete_block", map[string]any{
		"block_id":         "impromptu",
		"outcome":          "jammed for an hour",
		"energy_level":     4,
		"engagement_level": 9,
	})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out completeBlockOutput
	decodeResult(t, result, &out)
	if !out.Synthesized {
		t.Error("Synthesized = false for an unknown block id")
	}
	found := false
	for _, opp := range out.Opportunities {
		if opp == "high_engagement" {
			found = true
		}
	}
	if !found {
		t.Errorf("opportunities = %v, want high_engagement", out.Opportunities)
	}
}

func TestEvolveStrategy(t *testing.T) {
	srv := newForestServer(t, nil, nil)
	callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "learn piano"})

	result := callTool(t, srv, "evolve_strategy", map[string]any{
		"feedback": "I lost my job and have no money",
	})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out evolveStrategyOutput
	decodeResult(t, result, &out)
	if out.Strategy != "adapt_to_zero_budget" {
		t.Errorf("strategy = %q, want adapt_to_zero_budget", out.Strategy)
	}
	if out.LifeEvent != "financial_crisis" {
		t.Errorf("life_event = %q", out.LifeEvent)
	}
}

func TestCurrentStatus(t *testing.T) {
	srv := newForestServer(t, nil, nil)
	callTool(t, srv, "create_project", map[string]any{"project_id": "piano", "goal": "learn piano"})
	callTool(t, srv, "build_hta_tree", map[string]any{})

	result := callTool(t, srv, "current_status", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out currentStatusOutput
	decodeResult(t, result, &out)
	if out.ProjectID != "piano" || out.FrontierTasks == 0 {
		t.Errorf("status = %+v", out)
	}
}

func TestGetMetrics(t *testing.T) {
	now := time.Now().UTC()
	mc := &fakeMetricsCalculator{
		metrics: &observability.Metrics{
			ProjectsCreated: 2,
			TasksSelected:   7,
			BlocksCompleted: 4,
			Breakthroughs:   1,
			EventCount:      20,
			OldestEvent:     &now,
			NewestEvent:     &now,
		},
	}
	srv := newForestServer(t, mc, nil)

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var m metricsOutput
	decodeResult(t, result, &m)
	if m.ProjectsCreated != 2 || m.TasksSelected != 7 || m.EventCount != 20 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	srv := newForestServer(t, nil, nil)

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when metrics calculator is nil")
	}
}

func TestGetAlerts(t *testing.T) {
	now := time.Now().UTC()
	ae := &fakeAlertEngine{
		alerts: []observability.Alert{
			{
				ID:          "idle-piano",
				Condition:   "progress_stalled",
				Severity:    observability.SeverityHigh,
				Message:     "project piano has had no completed work for more than 7 days",
				TriggeredAt: now,
			},
		},
	}
	srv := newForestServer(t, nil, ae)

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out getAlertsOutput
	decodeResult(t, result, &out)
	if out.Count != 1 || out.Alerts[0].Severity != "high" {
		t.Errorf("alerts = %+v", out)
	}
}

func TestGetAlertsDisabled(t *testing.T) {
	srv := newForestServer(t, nil, nil)

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error when alert engine is nil")
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"7d", false},
		{"30d", false},
		{"24h", false},
		{"1h", false},
		{"", true},
		{"x", true},
		{"7x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseSince(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
