package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	statusHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	statusMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusGood    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarise the active project",
	Long: `Show the active project's goal, frontier and completion counts, and
today's schedule progress.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Intel == nil {
			return fmt.Errorf("task intelligence not initialized")
		}

		report, err := Intel.CurrentStatus()
		if err != nil {
			return err
		}

		fmt.Println(statusHeading.Render(fmt.Sprintf("%s - %s", report.ProjectID, report.Goal)))
		fmt.Println(statusMuted.Render(fmt.Sprintf("path: %s", report.ActivePath)))
		fmt.Println()
		fmt.Printf("  %-18s %d\n", "Frontier tasks:", report.FrontierTasks)
		fmt.Printf("  %-18s %d\n", "Available now:", report.AvailableTasks)
		completed := fmt.Sprintf("  %-18s %d", "Completed:", report.CompletedTasks)
		if report.CompletedTasks > 0 {
			completed = statusGood.Render(completed)
		}
		fmt.Println(completed)
		fmt.Printf("\n  %-18s %d of %d blocks done\n", "Today:", report.TodayCompleted, report.TodayBlocks)
		if report.LastUpdated != "" {
			fmt.Println(statusMuted.Render(fmt.Sprintf("\n  tree updated %s", report.LastUpdated)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
