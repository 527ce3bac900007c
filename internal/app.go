// Package internal provides the App struct that wires all components of
// Forest together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/rowanvale/forest/internal/cli"
	"github.com/rowanvale/forest/internal/core"
	"github.com/rowanvale/forest/internal/intelligence"
	"github.com/rowanvale/forest/internal/observability"
	"github.com/rowanvale/forest/internal/storage"
)

// App holds all service dependencies for Forest.
type App struct {
	BasePath string

	// Configuration
	SettingsMgr core.SettingsManager

	// Storage layer
	Persistence *storage.DataPersistence

	// Core services
	Projects    *core.ProjectManager
	Selector    *core.Selector
	Intel       *core.TaskIntelligence
	Completions *core.CompletionHandler
	Evolver     *core.StrategyEvolver
	Bus         *core.CompletionBus

	// Intelligence provider
	Provider intelligence.Provider

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of Forest. basePath is the root
// directory where all data is stored (typically ~/.forest or the current
// directory containing .forestconfig).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.SettingsMgr = core.NewSettingsManager(basePath)
	settings, err := app.SettingsMgr.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	// --- Storage layer ---
	app.Persistence = storage.NewDataPersistence(filepath.Join(basePath, "data"))

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".forest_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.EventLog = nil
	}
	var recorder core.EventLogger
	if app.EventLog != nil {
		recorder = observability.NewRecorder(app.EventLog)
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, loadAlertThresholds(basePath))
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if url := notificationWebhook(basePath); url != "" {
		app.Notifier = observability.NewSlackNotifier(url)
	}

	// --- Intelligence provider ---
	app.Provider = intelligence.NewStubProvider()

	// --- Core services ---
	app.Projects = core.NewProjectManager(app.Persistence, recorder)
	app.Selector = core.NewSelector(recorder)
	app.Intel = core.NewTaskIntelligence(app.Persistence, app.Projects, app.Selector, recorder, settings)
	app.Bus = core.NewCompletionBus(16)
	app.Completions = core.NewCompletionHandler(app.Persistence, app.Projects, recorder, app.Bus)
	app.Evolver = core.NewStrategyEvolver(app.Persistence, app.Provider, recorder, settings)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Projects = app.Projects
	cli.Intel = app.Intel
	cli.Completions = app.Completions
	cli.Evolver = app.Evolver

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for the Forest data directory.
// It checks for FOREST_HOME env var, then walks up from the current
// directory looking for .forestconfig.
func ResolveBasePath() string {
	if home := os.Getenv("FOREST_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".forestconfig")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to cwd.
	cwd, _ := os.Getwd()
	return cwd
}

// loadAlertThresholds reads the alerting section of .forestconfig, falling
// back to defaults for anything unset or unreadable.
func loadAlertThresholds(basePath string) observability.AlertThresholds {
	thresholds := observability.DefaultAlertThresholds()

	v := viper.New()
	v.SetConfigName(".forestconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(basePath)
	if err := v.ReadInConfig(); err != nil {
		return thresholds
	}

	if d := v.GetInt("alerts.idle_threshold_days"); d > 0 {
		thresholds.IdleDays = d
	}
	if w := v.GetInt("alerts.low_energy_window"); w > 0 {
		thresholds.LowEnergyWindow = w
	}
	if m := v.GetFloat64("alerts.low_energy_mean"); m > 0 {
		thresholds.LowEnergyMean = m
	}
	if l := v.GetInt("alerts.evolution_lag_completions"); l > 0 {
		thresholds.EvolutionLag = l
	}
	return thresholds
}

// notificationWebhook reads the notification webhook from .forestconfig.
// An empty string disables notifications.
func notificationWebhook(basePath string) string {
	v := viper.New()
	v.SetConfigName(".forestconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(basePath)
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	if !v.GetBool("notifications.enabled") {
		return ""
	}
	return v.GetString("notifications.slack.webhook_url")
}
