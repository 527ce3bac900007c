package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rowanvale/forest/internal/observability"
)

func TestNewAppWiresEverything(t *testing.T) {
	base := t.TempDir()
	app, err := NewApp(base)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer func() { _ = app.Close() }()

	if app.Persistence == nil || app.Projects == nil || app.Intel == nil ||
		app.Completions == nil || app.Evolver == nil || app.Bus == nil {
		t.Fatalf("core services not wired: %+v", app)
	}
	if app.Persistence.DataDir() != filepath.Join(base, "data") {
		t.Errorf("data dir = %s", app.Persistence.DataDir())
	}
	if app.EventLog == nil || app.AlertEngine == nil || app.MetricsCalc == nil {
		t.Error("observability not wired despite writable base path")
	}
	if app.Notifier != nil {
		t.Error("notifier wired without a configured webhook")
	}

	// The wired services work end to end.
	if _, err := app.Projects.CreateProject("piano", "learn piano", "", nil); err != nil {
		t.Fatalf("creating project through app wiring: %v", err)
	}
	events, err := app.EventLog.Read(observability.EventFilter{Type: "project.created"})
	if err != nil {
		t.Fatalf("reading event log: %v", err)
	}
	if len(events) != 1 || events[0].Project != "piano" {
		t.Errorf("events = %+v, want one project.created for piano", events)
	}
}

func TestNewAppInvalidSettings(t *testing.T) {
	base := t.TempDir()
	cfg := "selection:\n  time_tolerance: 0.1\n"
	if err := os.WriteFile(filepath.Join(base, ".forestconfig"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewApp(base); err == nil {
		t.Fatal("NewApp accepted invalid settings")
	}
}

func TestResolveBasePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FOREST_HOME", home)
	if got := ResolveBasePath(); got != home {
		t.Errorf("ResolveBasePath = %s, want FOREST_HOME %s", got, home)
	}

	t.Setenv("FOREST_HOME", "")
	marked := t.TempDir()
	if err := os.WriteFile(filepath.Join(marked, ".forestconfig"), []byte(""), 0o600); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(marked, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)
	if got := ResolveBasePath(); got != marked {
		t.Errorf("ResolveBasePath = %s, want marker dir %s", got, marked)
	}
}

func TestLoadAlertThresholds(t *testing.T) {
	base := t.TempDir()

	got := loadAlertThresholds(base)
	if got.IdleDays != 7 || got.LowEnergyWindow != 5 {
		t.Errorf("missing config thresholds = %+v, want defaults", got)
	}

	cfg := "alerts:\n  idle_threshold_days: 3\n  low_energy_mean: 2.0\n"
	if err := os.WriteFile(filepath.Join(base, ".forestconfig"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	got = loadAlertThresholds(base)
	if got.IdleDays != 3 || got.LowEnergyMean != 2.0 {
		t.Errorf("thresholds = %+v", got)
	}
	if got.EvolutionLag != 10 {
		t.Errorf("unset threshold = %d, want default 10", got.EvolutionLag)
	}
}

func TestNotificationWebhook(t *testing.T) {
	base := t.TempDir()
	if url := notificationWebhook(base); url != "" {
		t.Errorf("webhook = %q without config, want empty", url)
	}

	cfg := "notifications:\n  enabled: false\n  slack:\n    webhook_url: https://hooks.slack.invalid/T000\n"
	if err := os.WriteFile(filepath.Join(base, ".forestconfig"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	if url := notificationWebhook(base); url != "" {
		t.Errorf("webhook = %q while disabled, want empty", url)
	}

	cfg = "notifications:\n  enabled: true\n  slack:\n    webhook_url: https://hooks.slack.invalid/T000\n"
	if err := os.WriteFile(filepath.Join(base, ".forestconfig"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	if url := notificationWebhook(base); url == "" {
		t.Error("webhook empty while enabled")
	}
}
