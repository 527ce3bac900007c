package models

// OpportunityContext captures unplanned signals attached to a completion:
// unusually high engagement, unexpected results, or external feedback that
// the strategy evolution may want to react to.
type OpportunityContext struct {
	EngagementLevel    int      `json:"engagementLevel,omitempty"` // 1-10
	UnexpectedResults  []string `json:"unexpectedResults,omitempty"`
	ExternalFeedback   []string `json:"externalFeedback,omitempty"`
	ViralPotential     bool     `json:"viralPotential,omitempty"`
	SerendipitySignals []string `json:"serendipitySignals,omitempty"`
}

// ScheduleBlock is one entry in a day's schedule. A block may reference a
// task in the HTA tree via TaskID; completing such a block must mark the
// referenced task completed in the same transaction.
type ScheduleBlock struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	TaskID     string   `json:"taskId,omitempty"`
	Branch     string   `json:"branch,omitempty"`
	Duration   Duration `json:"duration,omitempty"`
	Difficulty int      `json:"difficulty,omitempty"`
	StartTime  string   `json:"startTime,omitempty"`

	Completed          bool                `json:"completed"`
	CompletedAt        string              `json:"completedAt,omitempty"`
	Outcome            string              `json:"outcome,omitempty"`
	Learned            string              `json:"learned,omitempty"`
	NextQuestions      string              `json:"nextQuestions,omitempty"`
	EnergyAfter        int                 `json:"energyAfter,omitempty"`
	DifficultyRating   int                 `json:"difficultyRating,omitempty"`
	Breakthrough       bool                `json:"breakthrough,omitempty"`
	OpportunityContext *OpportunityContext `json:"opportunityContext,omitempty"`
}

// DaySchedule is the per-day schedule document, one per (project, date),
// stored as day_<date>.json at the project scope.
type DaySchedule struct {
	Date   string           `json:"date"`
	Blocks []*ScheduleBlock `json:"blocks"`
}

// FindBlock returns the block with the given id, or nil.
func (d *DaySchedule) FindBlock(id string) *ScheduleBlock {
	if d == nil {
		return nil
	}
	for _, b := range d.Blocks {
		if b != nil && b.ID == id {
			return b
		}
	}
	return nil
}
