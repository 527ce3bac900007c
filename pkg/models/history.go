package models

// CompletionRecord is one append-only entry in a path's learning history.
type CompletionRecord struct {
	Topic        string `json:"topic"`
	TaskID       string `json:"taskId,omitempty"`
	Branch       string `json:"branch,omitempty"`
	CompletedAt  string `json:"completedAt"`
	Outcome      string `json:"outcome,omitempty"`
	Learned      string `json:"learned,omitempty"`
	EnergyAfter  int    `json:"energyAfter,omitempty"`
	Difficulty   int    `json:"difficulty,omitempty"`
	Breakthrough bool   `json:"breakthrough,omitempty"`
}

// Insight records a breakthrough moment for later review.
type Insight struct {
	Text       string `json:"text"`
	TaskID     string `json:"taskId,omitempty"`
	RecordedAt string `json:"recordedAt"`
}

// KnowledgeGap records an unanswered question surfaced during a completion.
type KnowledgeGap struct {
	Question   string `json:"question"`
	TaskID     string `json:"taskId,omitempty"`
	RecordedAt string `json:"recordedAt"`
}

// SkillLevel tracks additive progression within one branch.
type SkillLevel struct {
	Level           int `json:"level"`
	CompletedTasks  int `json:"completedTasks"`
	TotalEngagement int `json:"totalEngagement"`
}

// LearningHistory is the append-only learning record for one project path.
// All lists grow monotonically; skillProgression is updated additively.
type LearningHistory struct {
	CompletedTopics  []CompletionRecord     `json:"completedTopics"`
	Insights         []Insight              `json:"insights,omitempty"`
	KnowledgeGaps    []KnowledgeGap         `json:"knowledgeGaps,omitempty"`
	SkillProgression map[string]*SkillLevel `json:"skillProgression,omitempty"`
}
