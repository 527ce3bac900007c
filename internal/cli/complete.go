package cli

import (
	"fmt"
	"strings"

	"github.com/rowanvale/forest/internal/core"
	"github.com/rowanvale/forest/pkg/models"
	"github.com/spf13/cobra"
)

var (
	completeOutcome       string
	completeLearned       string
	completeQuestions     string
	completeEnergy        int
	completeDifficulty    int
	completeBreakthrough  bool
	completeEngagement    int
	completeUnexpected    []string
	completeFeedback      []string
	completeViral         bool
	completeSerendipitous []string
)

var completeCmd = &cobra.Command{
	Use:   "complete <block-or-task-id>",
	Short: "Record a completed block of work",
	Long: `Mark a schedule block or task completed, recording the outcome, what
you learned, and any opportunity signals. Ids that were never scheduled
are recorded as ad-hoc completions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Completions == nil {
			return fmt.Errorf("completion handler not initialized")
		}

		req := core.CompletionRequest{
			BlockID:          args[0],
			Outcome:          completeOutcome,
			Learned:          completeLearned,
			NextQuestions:    completeQuestions,
			EnergyLevel:      completeEnergy,
			DifficultyRating: completeDifficulty,
			Breakthrough:     completeBreakthrough,
		}
		if completeEngagement > 0 || len(completeUnexpected) > 0 || len(completeFeedback) > 0 || completeViral || len(completeSerendipitous) > 0 {
			req.Opportunity = &models.OpportunityContext{
				EngagementLevel:    completeEngagement,
				UnexpectedResults:  completeUnexpected,
				ExternalFeedback:   completeFeedback,
				ViralPotential:     completeViral,
				SerendipitySignals: completeSerendipitous,
			}
		}

		result, err := Completions.CompleteBlock(req)
		if err != nil {
			return fmt.Errorf("completing block: %w", err)
		}

		if result.Synthesized {
			fmt.Printf("Recorded ad-hoc completion of %s\n", result.Block.ID)
		} else {
			fmt.Printf("Completed %s\n", result.Block.ID)
		}
		if result.Task != nil {
			fmt.Printf("  Task: %s\n", result.Task.Title)
		}
		if len(result.Opportunities) > 0 {
			fmt.Printf("  Opportunities detected: %s\n", strings.Join(result.Opportunities, ", "))
		}
		if completeBreakthrough {
			fmt.Println("\nBreakthrough noted. Run \"forest evolve\" to build on it.")
		}
		return nil
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeOutcome, "outcome", "", "What happened")
	completeCmd.Flags().StringVar(&completeLearned, "learned", "", "What was learned")
	completeCmd.Flags().StringVar(&completeQuestions, "questions", "", "Open questions raised by the work")
	completeCmd.Flags().IntVar(&completeEnergy, "energy", 0, "Energy after finishing, 1-5")
	completeCmd.Flags().IntVar(&completeDifficulty, "difficulty", 0, "Perceived difficulty, 1-5")
	completeCmd.Flags().BoolVar(&completeBreakthrough, "breakthrough", false, "Mark this completion as a breakthrough")
	completeCmd.Flags().IntVar(&completeEngagement, "engagement", 0, "Engagement during the work, 1-10")
	completeCmd.Flags().StringSliceVar(&completeUnexpected, "unexpected", nil, "Surprising outcomes worth following up")
	completeCmd.Flags().StringSliceVar(&completeFeedback, "feedback", nil, "Feedback received from other people")
	completeCmd.Flags().BoolVar(&completeViral, "viral", false, "The result could spread on its own")
	completeCmd.Flags().StringSliceVar(&completeSerendipitous, "serendipity", nil, "Signals of fortunate coincidence")
	rootCmd.AddCommand(completeCmd)
}
