// ABOUTME: CLI command for deleting medicines.
// ABOUTME: Supports deletion by full ID or ID prefix; dose history is kept.
package main

import (
	"fmt"

	"github.com/harperreed/meds/internal/models"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a medicine",
	Long: `Delete a medicine by its ID or ID prefix.

The ID prefix is shown in the first column of 'meds list' output.
Recorded doses stay in the history. To stop reminders without deleting,
use 'meds update <id> --active=false'.

EXAMPLES:

  meds delete med_1a2b3c4d
  meds rm med_1a2b`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := resolveID(ctx, args[0])
		if err != nil {
			return err
		}

		// Fetch first to show what we're deleting
		m, err := eng.GetMedicine(ctx, id)
		if err != nil {
			return err
		}

		if err := eng.DeleteMedicine(ctx, id); err != nil {
			return fmt.Errorf("failed to delete medicine: %w", err)
		}

		out := cmd.OutOrStdout()
		warn.Fprintf(out, "✗ Deleted %s\n", m.Name)
		fmt.Fprintf(out, "  %s %s\n", faint.Sprint(models.ShortID(m.ID)), m.Dosage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
