package core

import (
	"fmt"
	"strings"

	"github.com/rowanvale/forest/pkg/models"
	"github.com/spf13/viper"
)

// SettingsManager loads and validates the engine tunables from the
// .forestconfig file at the base path.
type SettingsManager interface {
	LoadSettings() (*models.Settings, error)
	ValidateSettings(settings *models.Settings) error
}

// viperSettingsManager implements SettingsManager using Viper for reading
// the YAML configuration file.
type viperSettingsManager struct {
	basePath string
}

// NewSettingsManager creates a SettingsManager that reads .forestconfig
// relative to basePath.
func NewSettingsManager(basePath string) SettingsManager {
	return &viperSettingsManager{basePath: basePath}
}

// LoadSettings reads .forestconfig via Viper. A missing file returns the
// shipped defaults.
func (sm *viperSettingsManager) LoadSettings() (*models.Settings, error) {
	cfg := models.DefaultSettings()

	v := viper.New()
	v.SetConfigName(".forestconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(sm.basePath)

	v.SetDefault("scoring.serendipity_window_hours", cfg.SerendipityWindowHours)
	v.SetDefault("scoring.serendipity_boost", cfg.SerendipityBoost)
	v.SetDefault("scoring.default_task_priority", cfg.DefaultTaskPriority)
	v.SetDefault("selection.time_tolerance", cfg.TimeTolerance)
	v.SetDefault("evolution.low_engagement_threshold", cfg.LowEngagementThreshold)
	v.SetDefault("evolution.task_cap", cfg.EvolutionTaskCap)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .forestconfig: %w", err)
	}

	cfg.SerendipityWindowHours = v.GetInt("scoring.serendipity_window_hours")
	cfg.SerendipityBoost = v.GetInt("scoring.serendipity_boost")
	cfg.DefaultTaskPriority = v.GetInt("scoring.default_task_priority")
	cfg.TimeTolerance = v.GetFloat64("selection.time_tolerance")
	cfg.LowEngagementThreshold = v.GetFloat64("evolution.low_engagement_threshold")
	cfg.EvolutionTaskCap = v.GetInt("evolution.task_cap")

	if err := sm.ValidateSettings(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateSettings checks the tunables for values that would break the
// scoring or evolution engines.
func (sm *viperSettingsManager) ValidateSettings(settings *models.Settings) error {
	if settings == nil {
		return fmt.Errorf("settings are nil")
	}

	var errs []string
	if settings.SerendipityWindowHours < 0 {
		errs = append(errs, fmt.Sprintf("scoring.serendipity_window_hours must be non-negative, got %d", settings.SerendipityWindowHours))
	}
	if settings.SerendipityBoost < 0 {
		errs = append(errs, fmt.Sprintf("scoring.serendipity_boost must be non-negative, got %d", settings.SerendipityBoost))
	}
	if settings.TimeTolerance < 1.0 {
		errs = append(errs, fmt.Sprintf("selection.time_tolerance must be at least 1.0, got %g", settings.TimeTolerance))
	}
	if settings.LowEngagementThreshold < 1 || settings.LowEngagementThreshold > 5 {
		errs = append(errs, fmt.Sprintf("evolution.low_engagement_threshold must be within the 1-5 energy scale, got %g", settings.LowEngagementThreshold))
	}
	if settings.EvolutionTaskCap < 1 {
		errs = append(errs, fmt.Sprintf("evolution.task_cap must be at least 1, got %d", settings.EvolutionTaskCap))
	}

	if len(errs) > 0 {
		return fmt.Errorf("settings validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
