// ABOUTME: CLI command that prints reminders as medicines come due.
// ABOUTME: Runs the reminder loop in the foreground until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/meds/internal/reminder"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print reminders as medicines come due",
	Long: `Check for due medicines on an interval and print each dose once when its
reminder window opens. Low stock is reported once a day.

The interval comes from "watch_interval" in the config file or
MEDS_WATCH_INTERVAL (default 1m). Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, err := cfg.GetWatchInterval()
		if err != nil {
			return err
		}

		loop := reminder.New(eng, reminder.ConsoleNotifier{Out: cmd.OutOrStdout()}, reminder.Options{
			Interval: interval,
			Clock:    clock,
			Logger:   logger,
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case <-sigChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		logger.Info("watching for due medicines", "interval", interval)
		return loop.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
