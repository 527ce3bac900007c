package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	evolveFeedback string
	evolvePath     string
)

var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Evolve the task strategy from feedback",
	Long: `Classify free-form feedback, detect stuck patterns, and append newly
generated tasks to the active project's tree.

Feedback can describe breakthroughs ("finally clicked"), life events
("lost my job"), or just how the work feels. Run without feedback to
evolve purely from progress signals.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Projects == nil || Evolver == nil {
			return fmt.Errorf("services not initialized")
		}

		project, err := Projects.ActiveProject()
		if err != nil {
			return err
		}

		pathName := evolvePath
		if pathName == "" {
			pathName = project.ActivePath
		}

		result, err := Evolver.EvolveStrategy(cmd.Context(), project.ID, pathName, evolveFeedback)
		if err != nil {
			return fmt.Errorf("evolving strategy: %w", err)
		}

		fmt.Printf("Strategy: %s\n", result.Strategy)
		if result.Classification.Breakthrough {
			fmt.Println("  Feedback read as a breakthrough.")
		}
		if result.Classification.LifeEvent != "" {
			fmt.Printf("  Life event detected: %s (%s severity)\n", result.Classification.LifeEvent, result.Classification.Severity)
		}
		if len(result.StuckIndicators) > 0 {
			fmt.Printf("  Stuck indicators: %s\n", strings.Join(result.StuckIndicators, ", "))
		}

		if len(result.AddedTasks) == 0 {
			fmt.Println("\nNo new tasks added.")
			return nil
		}
		fmt.Printf("\nAdded %d task(s):\n", len(result.AddedTasks))
		for _, task := range result.AddedTasks {
			fmt.Printf("  [%s] %s (%s)\n", task.ID, task.Title, task.Branch)
		}
		return nil
	},
}

func init() {
	evolveCmd.Flags().StringVar(&evolveFeedback, "feedback", "", "Free-form feedback about how the work is going")
	evolveCmd.Flags().StringVar(&evolvePath, "path", "", "Learning path to evolve (defaults to the active path)")
	rootCmd.AddCommand(evolveCmd)
}
