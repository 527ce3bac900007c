package cli

import (
	"github.com/rowanvale/forest/internal/core"
	"github.com/rowanvale/forest/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string

	Projects    *core.ProjectManager
	Intel       *core.TaskIntelligence
	Completions *core.CompletionHandler
	Evolver     *core.StrategyEvolver

	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
