// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for AI assistant integration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/meds/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to read your schedule and record doses
through a standardized protocol. The server communicates via stdin/stdout;
logs go to stderr.

CLAUDE DESKTOP CONFIGURATION:

  Add this to your Claude Desktop config (claude_desktop_config.json):

  {
    "mcpServers": {
      "meds": {
        "command": "meds",
        "args": ["mcp"]
      }
    }
  }

  On macOS, the config is at:
    ~/Library/Application Support/Claude/claude_desktop_config.json

AVAILABLE TOOLS:

  add_medicine        Add a medicine with its window and stock
  list_medicines      List medicines
  get_medicine        Get one medicine
  update_medicine     Change selected fields of a medicine
  delete_medicine     Delete a medicine (history is kept)
  get_pending         Medicines due at a date and time
  mark_taken          Mark a dose taken
  skip_dose           Mark a dose skipped
  batch_mark_taken    Mark several doses taken at once
  restock             Add pills to stock
  get_low_stock       Medicines running low
  get_adherence       Adherence over a date range
  get_dose_history    Recorded doses, newest first
  get_today           Today's progress and what is due

AVAILABLE RESOURCES:

  meds://due          Medicines due right now
  meds://today        Today's progress
  meds://low-stock    Medicines running low`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(eng)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		logger.Info("mcp server starting", "version", mcp.Version)
		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
