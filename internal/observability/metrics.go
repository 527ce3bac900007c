package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	ProjectsCreated  int            `json:"projects_created"`
	TreesBuilt       int            `json:"trees_built"`
	TasksSelected    int            `json:"tasks_selected"`
	BlocksCompleted  int            `json:"blocks_completed"`
	Breakthroughs    int            `json:"breakthroughs"`
	Evolutions       int            `json:"evolutions"`
	EvolutionsByType map[string]int `json:"evolutions_by_strategy"`
	TasksByBranch    map[string]int `json:"tasks_by_branch"`
	EventCount       int            `json:"event_count"`
	OldestEvent      *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		EvolutionsByType: make(map[string]int),
		TasksByBranch:    make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "project.created":
			m.ProjectsCreated++
		case "tree.built":
			m.TreesBuilt++
		case "task.selected":
			m.TasksSelected++
			if branch, ok := event.Data["branch"].(string); ok && branch != "" {
				m.TasksByBranch[branch]++
			}
		case "block.completed":
			m.BlocksCompleted++
			if breakthrough, ok := event.Data["breakthrough"].(bool); ok && breakthrough {
				m.Breakthroughs++
			}
		case "strategy.evolved":
			m.Evolutions++
			if strategy, ok := event.Data["strategy"].(string); ok {
				m.EvolutionsByType[strategy]++
			}
		}
	}

	return m, nil
}
