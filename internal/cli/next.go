package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	nextEnergy int
	nextTime   string
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Suggest the best task to work on right now",
	Long: `Pick the single best task from the active project's tree, given your
current energy (1-5) and the time you have available.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Intel == nil {
			return fmt.Errorf("task intelligence not initialized")
		}
		if nextEnergy < 1 || nextEnergy > 5 {
			return fmt.Errorf("--energy must be between 1 and 5, got %d", nextEnergy)
		}

		task, err := Intel.GetNextTask(nextEnergy, nextTime)
		if err != nil {
			return fmt.Errorf("getting next task: %w", err)
		}
		if task == nil {
			fmt.Println("Nothing fits your current energy and time.")
			fmt.Println("Try \"forest evolve\" to generate new tasks, or come back with more time.")
			return nil
		}

		fmt.Printf("Next up: %s\n", task.Title)
		if task.Description != "" {
			fmt.Printf("  %s\n", task.Description)
		}
		fmt.Printf("\n  ID:         %s\n", task.ID)
		if task.Branch != "" {
			fmt.Printf("  Branch:     %s\n", task.Branch)
		}
		if task.Duration != "" {
			fmt.Printf("  Duration:   %s\n", task.Duration)
		}
		if task.Difficulty > 0 {
			fmt.Printf("  Difficulty: %d/5\n", task.Difficulty)
		}
		fmt.Printf("\nWhen you finish, record it with \"forest complete %s\".\n", task.ID)
		return nil
	},
}

func init() {
	nextCmd.Flags().IntVar(&nextEnergy, "energy", 3, "Current energy level, 1-5")
	nextCmd.Flags().StringVar(&nextTime, "time", "30 minutes", "Time available (e.g. 45 min, 2 hours)")
	rootCmd.AddCommand(nextCmd)
}
