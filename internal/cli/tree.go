package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var treePathName string

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Manage the task tree",
	Long:  "Commands for building and inspecting the active project's task tree.",
}

var treeBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Seed the active project's task tree",
	Long: `Generate strategic branches and an initial set of tasks for the active
project. Refuses to overwrite a tree that already has tasks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Projects == nil || Evolver == nil {
			return fmt.Errorf("services not initialized")
		}

		project, err := Projects.ActiveProject()
		if err != nil {
			return err
		}

		pathName := treePathName
		if pathName == "" {
			pathName = project.ActivePath
		}

		tree, err := Evolver.BuildTree(cmd.Context(), project, pathName)
		if err != nil {
			return fmt.Errorf("building tree: %w", err)
		}

		fmt.Printf("Built task tree for %s (path %s)\n\n", project.ID, pathName)
		fmt.Println("Branches:")
		for _, branch := range tree.StrategicBranches {
			fmt.Printf("  %d. %s - %s\n", branch.Order, branch.Title, branch.Description)
		}
		fmt.Println("\nFrontier tasks:")
		for _, task := range tree.FrontierNodes {
			fmt.Printf("  [%s] %s (%s)\n", task.ID, task.Title, task.Branch)
		}
		return nil
	},
}

func init() {
	treeBuildCmd.Flags().StringVar(&treePathName, "path", "", "Learning path to seed (defaults to the active path)")
	treeCmd.AddCommand(treeBuildCmd)
	rootCmd.AddCommand(treeCmd)
}
