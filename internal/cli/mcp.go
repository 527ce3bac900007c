package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	forestmcp "github.com/rowanvale/forest/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the Forest MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Forest MCP server on stdio",
	Long: `Start the Forest MCP server on stdio transport.

The server exposes Forest as MCP tools that AI assistants can call:
create_project, list_projects, set_active_project, build_hta_tree,
get_next_task, complete_block, evolve_strategy, current_status,
get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Projects == nil || Intel == nil || Completions == nil || Evolver == nil {
			return fmt.Errorf("services not initialized")
		}

		srv := forestmcp.NewServer(Projects, Intel, Completions, Evolver, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
