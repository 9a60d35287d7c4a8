// ABOUTME: Root Cobra command for meds CLI.
// ABOUTME: Loads config and opens storage and the engine via PersistentPre/PostRunE.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/harperreed/meds/internal/config"
	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	flagDataDir  string
	flagBackend  string
	flagLogLevel string
)

var (
	cfg    *config.Config
	repo   storage.Repository
	eng    *engine.Engine
	logger *log.Logger

	// clock and location are replaced in tests.
	clock    clockwork.Clock = clockwork.NewRealClock()
	location *time.Location
)

var (
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	faint   = color.New(color.Faint)
	bold    = color.New(color.Bold)
)

var rootCmd = &cobra.Command{
	Use:   "meds",
	Short: "Medicine schedule and dose tracker",
	Long: `Meds tracks which medicines you take, when you take them, and how many
pills you have left.

Each medicine has one dose window (for example morning 06:00-10:00) on a set
of weekdays. A medicine is "due" while the current time is inside its window,
widened by the reminder window (30 minutes by default) on both sides.

QUICK START:

  $ meds add "Vitamin D" "1000 IU" --window morning --start 06:00 --end 10:00 --pills 30
  $ meds list                               # IDs in the first column
  $ meds due                                # What should I take right now?
  $ meds take med_1a2b                      # Mark taken (ID prefixes work)
  $ meds skip med_1a2b --reason forgot      # Or skip it
  $ meds today                              # Today's progress
  $ meds adherence                          # Last 7 days

INVENTORY:

  $ meds restock med_1a2b 90
  $ meds low-stock

REMINDERS:

  Run 'meds watch' to print reminders as medicines come due.

MCP INTEGRATION:

  Run 'meds mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants:

  {
    "mcpServers": {
      "meds": { "command": "meds", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  SQLite at ~/.local/share/meds/meds.db by default. Use --backend badger for
  the Badger key-value store. Settings live in ~/.config/meds/config.json and
  may be overridden with MEDS_* environment variables or a .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip storage init for commands that don't need it
		switch cmd.Name() {
		case "version", "help", "install-skill":
			return nil
		}
		return openApp()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "meds %s\n", version)
	},
}

// openApp loads configuration, applies flag overrides, and opens storage.
func openApp() error {
	if err := closeApp(); err != nil {
		return err
	}

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagDataDir != "" {
		c.DataDir = flagDataDir
	}
	if flagBackend != "" {
		c.Backend = flagBackend
	}
	if flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	l, err := c.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	r, err := c.OpenStorage(c.StorageOptions(clock, l))
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", c.GetBackend(), err)
	}

	ecfg := c.EngineConfig()
	if location != nil {
		ecfg.Location = location
	}

	cfg, logger, repo = c, l, r
	eng = engine.New(r, clock, l, ecfg)
	return nil
}

func closeApp() error {
	if repo == nil {
		return nil
	}
	err := repo.Close()
	repo, eng = nil, nil
	return err
}

// resolveID expands an ID prefix typed on the command line.
func resolveID(ctx context.Context, idOrPrefix string) (string, error) {
	id, err := eng.ResolveMedicineID(ctx, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("medicine %q: %w", idOrPrefix, err)
	}
	return id, nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(name, value string) (models.Date, error) {
	if value == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(value)
	if err != nil {
		return models.Date{}, fmt.Errorf("invalid --%s %q (use YYYY-MM-DD)", name, value)
	}
	return d, nil
}

// parseTime accepts the timestamp layouts the CLI documents, in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.local/share/meds)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: sqlite or badger")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.AddCommand(versionCmd)
}
