package cli

import (
	"fmt"
	"strings"

	"github.com/rowanvale/forest/pkg/models"
	"github.com/spf13/cobra"
)

var (
	projectGoal          string
	projectLearningStyle string
	projectFocusAreas    []string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Commands for creating, listing, and switching between projects.",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <project-id>",
	Short: "Create a new project and make it active",
	Long: `Create a new project with a goal. The project's task store is seeded
empty; run "forest tree build" to generate the first tasks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Projects == nil {
			return fmt.Errorf("project manager not initialized")
		}
		if projectGoal == "" {
			return fmt.Errorf("--goal is required")
		}

		cfg, err := Projects.CreateProject(args[0], projectGoal, projectLearningStyle, projectFocusAreas)
		if err != nil {
			return fmt.Errorf("creating project: %w", err)
		}

		fmt.Printf("Created project %s\n", cfg.ID)
		fmt.Printf("  Goal: %s\n", cfg.Goal)
		fmt.Printf("  Active path: %s\n", cfg.ActivePath)
		fmt.Println("\nRun \"forest tree build\" to generate your first tasks.")
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Projects == nil {
			return fmt.Errorf("project manager not initialized")
		}

		configs, err := Projects.ListProjects()
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		if len(configs) == 0 {
			fmt.Println("No projects yet. Create one with \"forest project create\".")
			return nil
		}

		active := ""
		if cfg, err := Projects.ActiveProject(); err == nil {
			active = cfg.ID
		}

		fmt.Printf("  %-20s %-8s %s\n", "ID", "ACTIVE", "GOAL")
		fmt.Printf("  %-20s %-8s %s\n", "--", "------", "----")
		for _, cfg := range configs {
			marker := ""
			if cfg.ID == active {
				marker = "*"
			}
			goal := cfg.Goal
			if len(goal) > 50 {
				goal = goal[:47] + "..."
			}
			fmt.Printf("  %-20s %-8s %s\n", cfg.ID, marker, goal)
		}
		return nil
	},
}

var projectUseCmd = &cobra.Command{
	Use:   "use <project-id>",
	Short: "Switch the active project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Projects == nil {
			return fmt.Errorf("project manager not initialized")
		}
		if err := Projects.SetActiveProject(args[0]); err != nil {
			return fmt.Errorf("switching project: %w", err)
		}
		fmt.Printf("Active project is now %s\n", args[0])
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show a project's configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Projects == nil {
			return fmt.Errorf("project manager not initialized")
		}

		var id string
		if len(args) == 1 {
			id = args[0]
		}

		project, err := resolveProject(id)
		if err != nil {
			return err
		}

		fmt.Printf("Project: %s\n", project.ID)
		fmt.Printf("  Goal:           %s\n", project.Goal)
		if project.LearningStyle != "" {
			fmt.Printf("  Learning style: %s\n", project.LearningStyle)
		}
		if len(project.FocusAreas) > 0 {
			fmt.Printf("  Focus areas:    %s\n", strings.Join(project.FocusAreas, ", "))
		}
		fmt.Printf("  Active path:    %s\n", project.ActivePath)
		fmt.Printf("  Created:        %s\n", project.CreatedAt)
		return nil
	},
}

// resolveProject returns the named project, or the active one when id is
// empty.
func resolveProject(id string) (*models.ProjectConfig, error) {
	if id == "" {
		cfg, err := Projects.ActiveProject()
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Projects.GetProject(id)
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectGoal, "goal", "", "The ambition this project works toward (required)")
	projectCreateCmd.Flags().StringVar(&projectLearningStyle, "style", "", "Preferred learning style (e.g. hands-on, reading, mixed)")
	projectCreateCmd.Flags().StringSliceVar(&projectFocusAreas, "focus", nil, "Areas to emphasise when generating tasks")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectUseCmd)
	projectCmd.AddCommand(projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}
