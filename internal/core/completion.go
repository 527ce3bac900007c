package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rowanvale/forest/internal/storage"
	"github.com/rowanvale/forest/pkg/models"
)

// CompletionRequest carries everything a caller reports when finishing a
// schedule block (or completing a task ad hoc).
type CompletionRequest struct {
	BlockID          string
	Outcome          string
	Learned          string
	NextQuestions    string
	EnergyLevel      int // 1-5, energy after the task
	DifficultyRating int // 1-5, perceived difficulty
	Breakthrough     bool
	Opportunity      *models.OpportunityContext
}

// CompletionResult reports what the handler did.
type CompletionResult struct {
	ProjectID     string
	PathName      string
	Block         *models.ScheduleBlock
	Task          *models.Task
	Opportunities []string
	Synthesized   bool // the block did not exist and was created on the fly
}

// CompletionHandler marks schedule blocks and their task-store counterparts
// completed. The schedule save, task-store save, and learning-history
// update happen in one transaction: a caller never observes the block done
// but the task not, or vice versa.
type CompletionHandler struct {
	persistence *storage.DataPersistence
	projects    *ProjectManager
	events      EventLogger
	bus         *CompletionBus
	clock       func() time.Time
}

// NewCompletionHandler creates a CompletionHandler. events and bus may be
// nil.
func NewCompletionHandler(persistence *storage.DataPersistence, projects *ProjectManager, events EventLogger, bus *CompletionBus) *CompletionHandler {
	return &CompletionHandler{
		persistence: persistence,
		projects:    projects,
		events:      events,
		bus:         bus,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the handler's clock, for tests.
func (h *CompletionHandler) SetClock(clock func() time.Time) {
	h.clock = clock
}

// CompleteBlock completes a schedule block end to end. Missing active
// project or project configuration fails fast before any write. Any
// persistence failure during the combined save rolls back all three
// documents before the error propagates.
func (h *CompletionHandler) CompleteBlock(req CompletionRequest) (*CompletionResult, error) {
	if req.BlockID == "" {
		return nil, fmt.Errorf("completing block: block id must not be empty")
	}

	project, err := h.projects.ActiveProject()
	if err != nil {
		return nil, fmt.Errorf("completing block %s: %w", req.BlockID, err)
	}
	pathName := project.ActivePath
	if pathName == "" {
		pathName = models.GeneralPath
	}

	now := h.clock()
	scheduleFile := "day_" + now.Format("2006-01-02") + ".json"

	schedule := &models.DaySchedule{Date: now.Format("2006-01-02")}
	if _, err := h.persistence.LoadProjectData(project.ID, scheduleFile, schedule); err != nil {
		return nil, fmt.Errorf("completing block %s: loading schedule: %w", req.BlockID, err)
	}

	tree := &models.HTATree{}
	treeFound, err := h.persistence.LoadPathData(project.ID, pathName, "hta.json", tree)
	if err != nil {
		return nil, fmt.Errorf("completing block %s: loading task tree: %w", req.BlockID, err)
	}

	history := &models.LearningHistory{}
	if _, err := h.persistence.LoadPathData(project.ID, pathName, "learning_history.json", history); err != nil {
		return nil, fmt.Errorf("completing block %s: loading history: %w", req.BlockID, err)
	}

	block := schedule.FindBlock(req.BlockID)
	synthesized := false
	if block == nil {
		// Ad-hoc completions are always representable: synthesize a block
		// from the matching task, or a bare placeholder.
		block = h.synthesizeBlock(req.BlockID, tree)
		synthesized = true
		schedule.Blocks = append(schedule.Blocks, block)
	}

	completedAt := now.Format(time.RFC3339)
	block.Completed = true
	block.CompletedAt = completedAt
	block.Outcome = req.Outcome
	block.Learned = req.Learned
	block.NextQuestions = req.NextQuestions
	block.EnergyAfter = req.EnergyLevel
	block.DifficultyRating = req.DifficultyRating
	block.Breakthrough = req.Breakthrough
	if req.Opportunity != nil {
		block.OpportunityContext = req.Opportunity
	}

	// Mirror the completion onto the task store. The schedule and the task
	// store must never disagree about a task's completion state.
	var task *models.Task
	if treeFound {
		taskID := block.TaskID
		if taskID == "" {
			taskID = req.BlockID
		}
		task = tree.FindTask(taskID)
		if task != nil {
			task.Completed = true
			task.CompletedAt = completedAt
			task.Outcome = req.Outcome
			task.Learned = req.Learned
			task.DifficultyRating = req.DifficultyRating
			task.Breakthrough = req.Breakthrough
			tree.LastUpdated = completedAt
		}
	}

	h.appendHistory(history, block, task, completedAt)

	tx := h.persistence.BeginTransaction()
	if err := h.saveAll(tx, project.ID, pathName, scheduleFile, schedule, tree, treeFound, history); err != nil {
		_ = h.persistence.RollbackTransaction(tx)
		return nil, fmt.Errorf("completing block %s: %w", req.BlockID, err)
	}
	if err := h.persistence.CommitTransaction(tx); err != nil {
		return nil, fmt.Errorf("completing block %s: %w", req.BlockID, err)
	}

	opportunities := DetectOpportunities(req.Opportunity)

	if h.events != nil {
		_ = h.events.LogEvent("block.completed", map[string]any{
			"project":      project.ID,
			"block":        block.ID,
			"task":         block.TaskID,
			"breakthrough": req.Breakthrough,
			"synthesized":  synthesized,
			"energy":       req.EnergyLevel,
		})
	}

	// Only completions that carry learning content are worth evolving on.
	if h.bus != nil && (req.Learned != "" || req.NextQuestions != "" || req.Breakthrough) {
		h.bus.Publish(CompletionEvent{
			ProjectID:     project.ID,
			PathName:      pathName,
			Block:         block,
			Task:          task,
			Opportunities: opportunities,
			At:            now,
		})
	}

	return &CompletionResult{
		ProjectID:     project.ID,
		PathName:      pathName,
		Block:         block,
		Task:          task,
		Opportunities: opportunities,
		Synthesized:   synthesized,
	}, nil
}

// synthesizeBlock builds a schedule block for an id that was never
// scheduled, carrying the matching task's metadata when one exists.
func (h *CompletionHandler) synthesizeBlock(blockID string, tree *models.HTATree) *models.ScheduleBlock {
	if task := tree.FindTask(blockID); task != nil {
		return &models.ScheduleBlock{
			ID:         blockID,
			Title:      task.Title,
			TaskID:     task.ID,
			Branch:     task.Branch,
			Duration:   task.Duration,
			Difficulty: task.Difficulty,
		}
	}
	return &models.ScheduleBlock{
		ID:    blockID,
		Title: "Ad-hoc completion " + uuid.NewString()[:8],
	}
}

// appendHistory records the completion in the learning history: the topic
// always, an insight on breakthrough, a knowledge gap when questions remain,
// and additive skill progression for the branch.
func (h *CompletionHandler) appendHistory(history *models.LearningHistory, block *models.ScheduleBlock, task *models.Task, completedAt string) {
	record := models.CompletionRecord{
		Topic:        block.Title,
		TaskID:       block.TaskID,
		Branch:       block.Branch,
		CompletedAt:  completedAt,
		Outcome:      block.Outcome,
		Learned:      block.Learned,
		EnergyAfter:  block.EnergyAfter,
		Difficulty:   block.DifficultyRating,
		Breakthrough: block.Breakthrough,
	}
	if task != nil && record.Branch == "" {
		record.Branch = task.Branch
	}
	history.CompletedTopics = append(history.CompletedTopics, record)

	if block.Breakthrough && block.Learned != "" {
		history.Insights = append(history.Insights, models.Insight{
			Text:       block.Learned,
			TaskID:     block.TaskID,
			RecordedAt: completedAt,
		})
	}
	if block.NextQuestions != "" {
		history.KnowledgeGaps = append(history.KnowledgeGaps, models.KnowledgeGap{
			Question:   block.NextQuestions,
			TaskID:     block.TaskID,
			RecordedAt: completedAt,
		})
	}

	branch := record.Branch
	if branch == "" {
		branch = "general"
	}
	if history.SkillProgression == nil {
		history.SkillProgression = make(map[string]*models.SkillLevel)
	}
	skill, ok := history.SkillProgression[branch]
	if !ok {
		skill = &models.SkillLevel{}
		history.SkillProgression[branch] = skill
	}
	skill.CompletedTasks++
	skill.TotalEngagement += block.EnergyAfter
	// One level per three completed tasks in a branch.
	skill.Level = skill.CompletedTasks / 3
}

// saveAll performs the three document saves that must commit or fail as a
// unit.
func (h *CompletionHandler) saveAll(tx *storage.Transaction, projectID, pathName, scheduleFile string, schedule *models.DaySchedule, tree *models.HTATree, treeFound bool, history *models.LearningHistory) error {
	if err := h.persistence.SaveProjectData(projectID, scheduleFile, schedule, tx); err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	if treeFound {
		if err := h.persistence.SavePathData(projectID, pathName, "hta.json", tree, tx); err != nil {
			return fmt.Errorf("saving task tree: %w", err)
		}
	}
	if err := h.persistence.SavePathData(projectID, pathName, "learning_history.json", history, tx); err != nil {
		return fmt.Errorf("saving learning history: %w", err)
	}
	return nil
}

// DetectOpportunities is a pure classification over the opportunity context
// attached to a completion. It has no side effects and tolerates nil.
func DetectOpportunities(oc *models.OpportunityContext) []string {
	if oc == nil {
		return nil
	}
	var detected []string
	if oc.EngagementLevel >= 8 {
		detected = append(detected, "high_engagement")
	}
	if len(oc.UnexpectedResults) > 0 {
		detected = append(detected, "unexpected_results")
	}
	if len(oc.ExternalFeedback) > 0 {
		detected = append(detected, "external_feedback_loop")
	}
	if oc.ViralPotential {
		detected = append(detected, "viral_potential")
	}
	if len(oc.SerendipitySignals) > 0 {
		detected = append(detected, "serendipitous_connection")
	}
	return detected
}
