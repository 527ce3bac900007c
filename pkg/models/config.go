package models

// Settings holds the tunable constants of the scoring and evolution engines.
// These are deliberate configuration knobs rather than hard-coded values;
// defaults match the shipped behaviour.
type Settings struct {
	// SerendipityWindowHours is the decay window for the freshness boost of
	// reactively generated tasks.
	SerendipityWindowHours int
	// SerendipityBoost is the maximum freshness bonus at age zero.
	SerendipityBoost int
	// LowEngagementThreshold is the mean post-task energy (1-5 scale) below
	// which the evolution engine flags low engagement.
	LowEngagementThreshold float64
	// TimeTolerance is the multiplier applied to available time when
	// filtering candidates, so a slightly-too-long task still qualifies.
	TimeTolerance float64
	// EvolutionTaskCap limits how many tasks one evolution cycle may add.
	EvolutionTaskCap int
	// DefaultTaskPriority is the base score for tasks without a priority.
	DefaultTaskPriority int
}

// DefaultSettings returns Settings populated with the shipped defaults.
func DefaultSettings() *Settings {
	return &Settings{
		SerendipityWindowHours: 24,
		SerendipityBoost:       500,
		LowEngagementThreshold: 2.5,
		TimeTolerance:          1.2,
		EvolutionTaskCap:       5,
		DefaultTaskPriority:    200,
	}
}
