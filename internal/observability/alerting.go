package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	IdleDays             int     `yaml:"idle_threshold_days" json:"idle_threshold_days"`
	LowEnergyWindow      int     `yaml:"low_energy_window" json:"low_energy_window"`
	LowEnergyMean        float64 `yaml:"low_energy_mean" json:"low_energy_mean"`
	EvolutionLag         int     `yaml:"evolution_lag_completions" json:"evolution_lag_completions"`
	MaxAmbiguousWarnings int     `yaml:"max_ambiguous_warnings" json:"max_ambiguous_warnings"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		IdleDays:             7,
		LowEnergyWindow:      5,
		LowEnergyMean:        2.5,
		EvolutionLag:         10,
		MaxAmbiguousWarnings: 3,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
	}
}

// Evaluate reads events and checks all alert conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := time.Now().UTC()
	var alerts []Alert

	idleAlerts, err := ae.checkIdleProgress(now)
	if err != nil {
		return nil, fmt.Errorf("checking idle progress: %w", err)
	}
	alerts = append(alerts, idleAlerts...)

	energyAlerts, err := ae.checkLowEnergy(now)
	if err != nil {
		return nil, fmt.Errorf("checking energy trend: %w", err)
	}
	alerts = append(alerts, energyAlerts...)

	lagAlerts, err := ae.checkEvolutionLag(now)
	if err != nil {
		return nil, fmt.Errorf("checking evolution lag: %w", err)
	}
	alerts = append(alerts, lagAlerts...)

	ambiguityAlerts, err := ae.checkAmbiguousPrerequisites(now)
	if err != nil {
		return nil, fmt.Errorf("checking prerequisite ambiguity: %w", err)
	}
	alerts = append(alerts, ambiguityAlerts...)

	return alerts, nil
}

// checkIdleProgress alerts when a project that has selected tasks has not
// completed a block within the idle threshold.
func (ae *alertEngine) checkIdleProgress(now time.Time) ([]Alert, error) {
	selections, err := ae.eventLog.Read(EventFilter{Type: "task.selected"})
	if err != nil {
		return nil, err
	}
	completions, err := ae.eventLog.Read(EventFilter{Type: "block.completed"})
	if err != nil {
		return nil, err
	}

	lastSelected := make(map[string]time.Time)
	for _, event := range selections {
		if event.Project == "" {
			continue
		}
		if event.Time.After(lastSelected[event.Project]) {
			lastSelected[event.Project] = event.Time
		}
	}
	lastCompleted := make(map[string]time.Time)
	for _, event := range completions {
		if event.Project == "" {
			continue
		}
		if event.Time.After(lastCompleted[event.Project]) {
			lastCompleted[event.Project] = event.Time
		}
	}

	threshold := time.Duration(ae.thresholds.IdleDays) * 24 * time.Hour
	var alerts []Alert
	for project := range lastSelected {
		last, ok := lastCompleted[project]
		if !ok {
			last = lastSelected[project]
		}
		if now.Sub(last) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("idle-%s", project),
				Condition:   "progress_stalled",
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("project %s has had no completed work for more than %d days", project, ae.thresholds.IdleDays),
				TriggeredAt: now,
			})
		}
	}

	return alerts, nil
}

// checkLowEnergy alerts when the mean reported energy over a project's most
// recent completions drops below the configured mean.
func (ae *alertEngine) checkLowEnergy(now time.Time) ([]Alert, error) {
	completions, err := ae.eventLog.Read(EventFilter{Type: "block.completed"})
	if err != nil {
		return nil, err
	}

	byProject := make(map[string][]float64)
	for _, event := range completions {
		if event.Project == "" {
			continue
		}
		energy, ok := event.Data["energy"].(float64)
		if !ok || energy <= 0 {
			continue
		}
		byProject[event.Project] = append(byProject[event.Project], energy)
	}

	window := ae.thresholds.LowEnergyWindow
	var alerts []Alert
	for project, energies := range byProject {
		if len(energies) < window {
			continue
		}
		recent := energies[len(energies)-window:]
		sum := 0.0
		for _, e := range recent {
			sum += e
		}
		mean := sum / float64(len(recent))
		if mean < ae.thresholds.LowEnergyMean {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("energy-%s", project),
				Condition:   "low_energy_trend",
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("project %s averaged %.1f energy over the last %d completions, below %.1f", project, mean, window, ae.thresholds.LowEnergyMean),
				TriggeredAt: now,
			})
		}
	}

	return alerts, nil
}

// checkEvolutionLag alerts when a project keeps completing blocks without
// the strategy ever evolving, which usually means feedback is not being fed
// back in.
func (ae *alertEngine) checkEvolutionLag(now time.Time) ([]Alert, error) {
	completions, err := ae.eventLog.Read(EventFilter{Type: "block.completed"})
	if err != nil {
		return nil, err
	}
	evolutions, err := ae.eventLog.Read(EventFilter{Type: "strategy.evolved"})
	if err != nil {
		return nil, err
	}

	lastEvolved := make(map[string]time.Time)
	for _, event := range evolutions {
		if event.Project == "" {
			continue
		}
		if event.Time.After(lastEvolved[event.Project]) {
			lastEvolved[event.Project] = event.Time
		}
	}

	sinceEvolution := make(map[string]int)
	for _, event := range completions {
		if event.Project == "" {
			continue
		}
		if event.Time.After(lastEvolved[event.Project]) {
			sinceEvolution[event.Project]++
		}
	}

	var alerts []Alert
	for project, count := range sinceEvolution {
		if count > ae.thresholds.EvolutionLag {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("evolution-%s", project),
				Condition:   "evolution_overdue",
				Severity:    SeverityLow,
				Message:     fmt.Sprintf("project %s has %d completions since the strategy last evolved, exceeding %d", project, count, ae.thresholds.EvolutionLag),
				TriggeredAt: now,
			})
		}
	}

	return alerts, nil
}

// checkAmbiguousPrerequisites alerts when the selector repeatedly warns that
// a prerequisite resolves differently by id and by title.
func (ae *alertEngine) checkAmbiguousPrerequisites(now time.Time) ([]Alert, error) {
	warnings, err := ae.eventLog.Read(EventFilter{Type: "selector.prerequisite_ambiguous"})
	if err != nil {
		return nil, err
	}

	// Selector warnings are emitted below the project layer, so they are
	// counted globally.
	if len(warnings) <= ae.thresholds.MaxAmbiguousWarnings {
		return nil, nil
	}
	return []Alert{{
		ID:          "ambiguous-prerequisites",
		Condition:   "prerequisites_ambiguous",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d ambiguous prerequisite warnings recorded; task ids and titles likely collide", len(warnings)),
		TriggeredAt: now,
	}}, nil
}
