// Package mcp provides an MCP (Model Context Protocol) server that exposes
// Forest functionality as MCP tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rowanvale/forest/internal/core"
	"github.com/rowanvale/forest/internal/observability"
	"github.com/rowanvale/forest/pkg/models"
)

// Server wraps Forest services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	projects    *core.ProjectManager
	intel       *core.TaskIntelligence
	completions *core.CompletionHandler
	evolver     *core.StrategyEvolver
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server with the given Forest service
// dependencies. metricsCalc and alertEngine may be nil if observability is
// disabled.
func NewServer(projects *core.ProjectManager, intel *core.TaskIntelligence, completions *core.CompletionHandler, evolver *core.StrategyEvolver, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		projects:    projects,
		intel:       intel,
		completions: completions,
		evolver:     evolver,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "forest", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type createProjectInput struct {
	ProjectID     string   `json:"project_id" jsonschema:"required,a short identifier for the project (e.g. learn-piano)"`
	Goal          string   `json:"goal" jsonschema:"required,the ambition this project works toward"`
	LearningStyle string   `json:"learning_style,omitempty" jsonschema:"preferred learning style (e.g. hands-on, reading, mixed)"`
	FocusAreas    []string `json:"focus_areas,omitempty" jsonschema:"areas to emphasise when generating tasks"`
}

type projectOutput struct {
	ProjectID     string   `json:"project_id"`
	Goal          string   `json:"goal"`
	LearningStyle string   `json:"learning_style,omitempty"`
	FocusAreas    []string `json:"focus_areas,omitempty"`
	ActivePath    string   `json:"active_path"`
	Created       string   `json:"created"`
}

type listProjectsInput struct{}

type listProjectsOutput struct {
	Projects []projectOutput `json:"projects"`
	Count    int             `json:"count"`
}

type setActiveProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"required,the project to make active"`
}

type setActiveProjectOutput struct {
	Message string `json:"message"`
}

type buildTreeInput struct {
	PathName string `json:"path_name,omitempty" jsonschema:"the learning path to seed (defaults to general)"`
}

type buildTreeOutput struct {
	Goal     string   `json:"goal"`
	PathName string   `json:"path_name"`
	Branches []string `json:"branches"`
	Tasks    []string `json:"tasks"`
}

type getNextTaskInput struct {
	EnergyLevel   int    `json:"energy_level" jsonschema:"required,current energy on a 1-5 scale"`
	TimeAvailable string `json:"time_available,omitempty" jsonschema:"time available (e.g. 30 minutes, 2 hours). Defaults to 30 minutes."`
}

type taskOutput struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	Difficulty    int      `json:"difficulty,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	Priority      int      `json:"priority,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

type getNextTaskOutput struct {
	Task    *taskOutput `json:"task,omitempty"`
	Message string      `json:"message,omitempty"`
}

type completeBlockInput struct {
	BlockID            string   `json:"block_id" jsonschema:"required,the schedule block or task id being completed"`
	Outcome            string   `json:"outcome,omitempty" jsonschema:"what happened"`
	Learned            string   `json:"learned,omitempty" jsonschema:"what was learned"`
	NextQuestions      string   `json:"next_questions,omitempty" jsonschema:"open questions raised by the work"`
	EnergyLevel        int      `json:"energy_level,omitempty" jsonschema:"energy after finishing, 1-5"`
	DifficultyRating   int      `json:"difficulty_rating,omitempty" jsonschema:"perceived difficulty, 1-5"`
	Breakthrough       bool     `json:"breakthrough,omitempty" jsonschema:"whether this felt like a breakthrough"`
	EngagementLevel    int      `json:"engagement_level,omitempty" jsonschema:"engagement during the work, 1-10"`
	UnexpectedResults  []string `json:"unexpected_results,omitempty" jsonschema:"surprising outcomes worth following up"`
	ExternalFeedback   []string `json:"external_feedback,omitempty" jsonschema:"feedback received from other people"`
	ViralPotential     bool     `json:"viral_potential,omitempty" jsonschema:"whether the result could spread on its own"`
	SerendipitySignals []string `json:"serendipity_signals,omitempty" jsonschema:"signals of fortunate coincidence"`
}

type completeBlockOutput struct {
	BlockID       string   `json:"block_id"`
	TaskID        string   `json:"task_id,omitempty"`
	Synthesized   bool     `json:"synthesized"`
	Opportunities []string `json:"opportunities,omitempty"`
	Message       string   `json:"message"`
}

type evolveStrategyInput struct {
	Feedback string `json:"feedback,omitempty" jsonschema:"free-form feedback about how the work is going"`
	PathName string `json:"path_name,omitempty" jsonschema:"the learning path to evolve (defaults to the active path)"`
}

type evolveStrategyOutput struct {
	Strategy        string   `json:"strategy"`
	Sentiment       string   `json:"sentiment"`
	LifeEvent       string   `json:"life_event,omitempty"`
	Breakthrough    bool     `json:"breakthrough"`
	StuckIndicators []string `json:"stuck_indicators,omitempty"`
	AddedTasks      []string `json:"added_tasks"`
}

type currentStatusInput struct{}

type currentStatusOutput struct {
	ProjectID      string `json:"project_id"`
	Goal           string `json:"goal"`
	ActivePath     string `json:"active_path"`
	FrontierTasks  int    `json:"frontier_tasks"`
	AvailableTasks int    `json:"available_tasks"`
	CompletedTasks int    `json:"completed_tasks"`
	TodayBlocks    int    `json:"today_blocks"`
	TodayCompleted int    `json:"today_completed"`
	LastUpdated    string `json:"last_updated,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	ProjectsCreated  int            `json:"projects_created"`
	TreesBuilt       int            `json:"trees_built"`
	TasksSelected    int            `json:"tasks_selected"`
	BlocksCompleted  int            `json:"blocks_completed"`
	Breakthroughs    int            `json:"breakthroughs"`
	Evolutions       int            `json:"evolutions"`
	EvolutionsByType map[string]int `json:"evolutions_by_strategy"`
	TasksByBranch    map[string]int `json:"tasks_by_branch"`
	EventCount       int            `json:"event_count"`
	OldestEvent      string         `json:"oldest_event,omitempty"`
	NewestEvent      string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_project",
		Description: "Create a new project with a goal, seed its task store, and make it the active project.",
	}, s.handleCreateProject)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_projects",
		Description: "List all projects with their goals and active learning paths.",
	}, s.handleListProjects)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_active_project",
		Description: "Switch the active project. All other tools operate on the active project.",
	}, s.handleSetActiveProject)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "build_hta_tree",
		Description: "Seed the active project's task tree with strategic branches and an initial set of tasks. Refuses to overwrite an existing non-empty tree.",
	}, s.handleBuildTree)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_next_task",
		Description: "Get the single best task to work on right now, given current energy (1-5) and available time.",
	}, s.handleGetNextTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "complete_block",
		Description: "Mark a schedule block or task completed, recording outcome, learnings, and any opportunity signals. Unknown ids are completed ad hoc.",
	}, s.handleCompleteBlock)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "evolve_strategy",
		Description: "Evolve the task strategy from free-form feedback: classifies the feedback, detects stuck patterns, and appends newly generated tasks.",
	}, s.handleEvolveStrategy)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "current_status",
		Description: "Summarise the active project: frontier size, completion counts, and today's schedule progress.",
	}, s.handleCurrentStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated metrics from the event log, including selections, completions, breakthroughs, and evolutions.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (stalled progress, low energy trend, overdue evolution).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleCreateProject(_ context.Context, _ *gomcp.CallToolRequest, input createProjectInput) (*gomcp.CallToolResult, projectOutput, error) {
	if input.ProjectID == "" {
		return errorResult("project_id is required"), projectOutput{}, nil
	}
	if input.Goal == "" {
		return errorResult("goal is required"), projectOutput{}, nil
	}

	cfg, err := s.projects.CreateProject(input.ProjectID, input.Goal, input.LearningStyle, input.FocusAreas)
	if err != nil {
		return errorResult(fmt.Sprintf("creating project %s: %s", input.ProjectID, err)), projectOutput{}, nil
	}

	return nil, projectToOutput(cfg), nil
}

func (s *Server) handleListProjects(_ context.Context, _ *gomcp.CallToolRequest, _ listProjectsInput) (*gomcp.CallToolResult, listProjectsOutput, error) {
	configs, err := s.projects.ListProjects()
	if err != nil {
		return errorResult(fmt.Sprintf("listing projects: %s", err)), listProjectsOutput{}, nil
	}

	out := listProjectsOutput{
		Projects: make([]projectOutput, len(configs)),
		Count:    len(configs),
	}
	for i, cfg := range configs {
		out.Projects[i] = projectToOutput(&cfg)
	}
	return nil, out, nil
}

func (s *Server) handleSetActiveProject(_ context.Context, _ *gomcp.CallToolRequest, input setActiveProjectInput) (*gomcp.CallToolResult, setActiveProjectOutput, error) {
	if input.ProjectID == "" {
		return errorResult("project_id is required"), setActiveProjectOutput{}, nil
	}
	if err := s.projects.SetActiveProject(input.ProjectID); err != nil {
		return errorResult(fmt.Sprintf("setting active project: %s", err)), setActiveProjectOutput{}, nil
	}
	return nil, setActiveProjectOutput{
		Message: fmt.Sprintf("project %s is now active", input.ProjectID),
	}, nil
}

func (s *Server) handleBuildTree(ctx context.Context, _ *gomcp.CallToolRequest, input buildTreeInput) (*gomcp.CallToolResult, buildTreeOutput, error) {
	project, err := s.projects.ActiveProject()
	if err != nil {
		return errorResult(err.Error()), buildTreeOutput{}, nil
	}

	pathName := input.PathName
	if pathName == "" {
		pathName = project.ActivePath
	}

	tree, err := s.evolver.BuildTree(ctx, project, pathName)
	if err != nil {
		return errorResult(fmt.Sprintf("building tree: %s", err)), buildTreeOutput{}, nil
	}

	out := buildTreeOutput{
		Goal:     tree.Goal,
		PathName: pathName,
	}
	for _, branch := range tree.StrategicBranches {
		out.Branches = append(out.Branches, branch.Title)
	}
	for _, task := range tree.FrontierNodes {
		out.Tasks = append(out.Tasks, task.Title)
	}
	return nil, out, nil
}

func (s *Server) handleGetNextTask(_ context.Context, _ *gomcp.CallToolRequest, input getNextTaskInput) (*gomcp.CallToolResult, getNextTaskOutput, error) {
	if input.EnergyLevel < 1 || input.EnergyLevel > 5 {
		return errorResult(fmt.Sprintf("energy_level must be between 1 and 5, got %d", input.EnergyLevel)), getNextTaskOutput{}, nil
	}
	timeAvailable := input.TimeAvailable
	if timeAvailable == "" {
		timeAvailable = "30 minutes"
	}

	task, err := s.intel.GetNextTask(input.EnergyLevel, timeAvailable)
	if err != nil {
		return errorResult(fmt.Sprintf("getting next task: %s", err)), getNextTaskOutput{}, nil
	}
	if task == nil {
		return nil, getNextTaskOutput{
			Message: "no task fits the current energy and time; try evolve_strategy to generate new tasks",
		}, nil
	}

	return nil, getNextTaskOutput{Task: &taskOutput{
		ID:            task.ID,
		Title:         task.Title,
		Description:   task.Description,
		Branch:        task.Branch,
		Difficulty:    task.Difficulty,
		Duration:      string(task.Duration),
		Priority:      task.Priority,
		Prerequisites: task.Prerequisites,
	}}, nil
}

func (s *Server) handleCompleteBlock(_ context.Context, _ *gomcp.CallToolRequest, input completeBlockInput) (*gomcp.CallToolResult, completeBlockOutput, error) {
	if input.BlockID == "" {
		return errorResult("block_id is required"), completeBlockOutput{}, nil
	}

	req := core.CompletionRequest{
		BlockID:          input.BlockID,
		Outcome:          input.Outcome,
		Learned:          input.Learned,
		NextQuestions:    input.NextQuestions,
		EnergyLevel:      input.EnergyLevel,
		DifficultyRating: input.DifficultyRating,
		Breakthrough:     input.Breakthrough,
	}
	if input.EngagementLevel > 0 || len(input.UnexpectedResults) > 0 || len(input.ExternalFeedback) > 0 || input.ViralPotential || len(input.SerendipitySignals) > 0 {
		req.Opportunity = &models.OpportunityContext{
			EngagementLevel:    input.EngagementLevel,
			UnexpectedResults:  input.UnexpectedResults,
			ExternalFeedback:   input.ExternalFeedback,
			ViralPotential:     input.ViralPotential,
			SerendipitySignals: input.SerendipitySignals,
		}
	}

	result, err := s.completions.CompleteBlock(req)
	if err != nil {
		return errorResult(fmt.Sprintf("completing block %s: %s", input.BlockID, err)), completeBlockOutput{}, nil
	}

	msg := fmt.Sprintf("block %s completed", result.Block.ID)
	if result.Synthesized {
		msg = fmt.Sprintf("block %s completed (recorded ad hoc)", result.Block.ID)
	}
	return nil, completeBlockOutput{
		BlockID:       result.Block.ID,
		TaskID:        result.Block.TaskID,
		Synthesized:   result.Synthesized,
		Opportunities: result.Opportunities,
		Message:       msg,
	}, nil
}

func (s *Server) handleEvolveStrategy(ctx context.Context, _ *gomcp.CallToolRequest, input evolveStrategyInput) (*gomcp.CallToolResult, evolveStrategyOutput, error) {
	project, err := s.projects.ActiveProject()
	if err != nil {
		return errorResult(err.Error()), evolveStrategyOutput{}, nil
	}

	pathName := input.PathName
	if pathName == "" {
		pathName = project.ActivePath
	}

	result, err := s.evolver.EvolveStrategy(ctx, project.ID, pathName, input.Feedback)
	if err != nil {
		return errorResult(fmt.Sprintf("evolving strategy: %s", err)), evolveStrategyOutput{}, nil
	}

	out := evolveStrategyOutput{
		Strategy:        result.Strategy,
		Sentiment:       result.Classification.Sentiment,
		LifeEvent:       result.Classification.LifeEvent,
		Breakthrough:    result.Classification.Breakthrough,
		StuckIndicators: result.StuckIndicators,
		AddedTasks:      make([]string, len(result.AddedTasks)),
	}
	for i, task := range result.AddedTasks {
		out.AddedTasks[i] = task.Title
	}
	return nil, out, nil
}

func (s *Server) handleCurrentStatus(_ context.Context, _ *gomcp.CallToolRequest, _ currentStatusInput) (*gomcp.CallToolResult, currentStatusOutput, error) {
	report, err := s.intel.CurrentStatus()
	if err != nil {
		return errorResult(err.Error()), currentStatusOutput{}, nil
	}

	return nil, currentStatusOutput{
		ProjectID:      report.ProjectID,
		Goal:           report.Goal,
		ActivePath:     report.ActivePath,
		FrontierTasks:  report.FrontierTasks,
		AvailableTasks: report.AvailableTasks,
		CompletedTasks: report.CompletedTasks,
		TodayBlocks:    report.TodayBlocks,
		TodayCompleted: report.TodayCompleted,
		LastUpdated:    report.LastUpdated,
	}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		ProjectsCreated:  metrics.ProjectsCreated,
		TreesBuilt:       metrics.TreesBuilt,
		TasksSelected:    metrics.TasksSelected,
		BlocksCompleted:  metrics.BlocksCompleted,
		Breakthroughs:    metrics.Breakthroughs,
		Evolutions:       metrics.Evolutions,
		EvolutionsByType: metrics.EvolutionsByType,
		TasksByBranch:    metrics.TasksByBranch,
		EventCount:       metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func projectToOutput(cfg *models.ProjectConfig) projectOutput {
	return projectOutput{
		ProjectID:     cfg.ID,
		Goal:          cfg.Goal,
		LearningStyle: cfg.LearningStyle,
		FocusAreas:    cfg.FocusAreas,
		ActivePath:    cfg.ActivePath,
		Created:       cfg.CreatedAt,
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		EvolutionsByType: make(map[string]int),
		TasksByBranch:    make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
