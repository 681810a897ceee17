package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	joinmcp "github.com/joinboard/join/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the join MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the join MCP server on stdio",
	Long: `Start the join MCP server on stdio transport.

The server exposes the board as MCP tools that AI assistants can call:
list_tasks, get_task, move_task, toggle_subtask, delete_task, get_summary,
list_contacts, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadTasks(ctxOf(cmd)); err != nil {
			return err
		}
		if _, err := loadContacts(ctxOf(cmd)); err != nil {
			return err
		}

		srv := joinmcp.NewServer(Tasks, Contacts, MetricsCalc, AlertEngine, appVersion)

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
