// ABOUTME: CLI command for copying data between storage backends.
// ABOUTME: Moves medicines and dose history from SQLite to Badger or back.
package main

import (
	"fmt"
	"strings"

	"github.com/harperreed/meds/internal/config"
	"github.com/harperreed/meds/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateTo        string
	migrateTargetDir string
	migrateDryRun    bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data to another storage backend",
	Long: `Copy every medicine and dose from the current backend to another one.

The target must be empty. IDs and timestamps are preserved. The current
backend is left untouched; switch to the new one with --backend or by
setting "backend" in ~/.config/meds/config.json.

USAGE:

  meds migrate --to badger --dry-run   # Preview what would be copied
  meds migrate --to badger             # Copy into <data-dir>/badger
  meds --backend badger migrate --to sqlite --target-dir /tmp/meds`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		to := strings.ToLower(migrateTo)
		if to != config.BackendSQLite && to != config.BackendBadger {
			return fmt.Errorf("unknown target backend: %q (use sqlite or badger)", migrateTo)
		}

		target := *cfg
		target.Backend = to
		if migrateTargetDir != "" {
			target.DataDir = migrateTargetDir
		}
		if target.GetBackend() == cfg.GetBackend() && target.GetDataDir() == cfg.GetDataDir() {
			return fmt.Errorf("target is the current storage; pass a different --to or --target-dir")
		}

		data, err := storage.GetAllData(ctx, repo, clock.Now())
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}

		if migrateDryRun {
			warn.Fprintln(out, "Dry run mode - no changes will be made")
			fmt.Fprintf(out, "Would copy %d medicines and %d doses from %s to %s in %s\n",
				len(data.Medicines), len(data.Doses), cfg.GetBackend(), to, target.GetDataDir())
			return nil
		}

		if to == config.BackendBadger {
			nonEmpty, err := storage.IsDirNonEmpty(target.BadgerDir())
			if err != nil {
				return err
			}
			if nonEmpty {
				return fmt.Errorf("target %s is not empty", target.BadgerDir())
			}
		}

		dst, err := target.OpenStorage(target.StorageOptions(clock, logger))
		if err != nil {
			return fmt.Errorf("failed to open target: %w", err)
		}
		defer func() { _ = dst.Close() }()

		var existing int
		if err := dst.View(ctx, func(s storage.Store) error {
			meds, err := s.ListMedicines(ctx, storage.MedicineFilter{})
			existing = len(meds)
			return err
		}); err != nil {
			return fmt.Errorf("failed to read target: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("target %s storage already has %d medicines", to, existing)
		}

		sum, err := storage.MigrateData(ctx, repo, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		success.Fprintf(out, "✓ Migrated %d medicines and %d doses to %s\n", sum.Medicines, sum.Doses, to)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "target backend: sqlite or badger")
	migrateCmd.Flags().StringVar(&migrateTargetDir, "target-dir", "", "target data directory (default: current data dir)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	_ = migrateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(migrateCmd)
}
