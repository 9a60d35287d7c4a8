// ABOUTME: CLI commands for pill inventory.
// ABOUTME: Implements restock and low-stock.
package main

import (
	"fmt"
	"strconv"

	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/spf13/cobra"
)

var restockCmd = &cobra.Command{
	Use:   "restock <id> <pills>",
	Short: "Add pills to a medicine's stock",
	Long: fmt.Sprintf(`Add between 1 and %d pills to a medicine's stock.

EXAMPLES:

  meds restock med_1a2b 90`, engine.MaxRestock),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := resolveID(ctx, args[0])
		if err != nil {
			return err
		}

		pills, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid pill count: %s", args[1])
		}

		m, err := eng.Restock(ctx, id, pills)
		if err != nil {
			return fmt.Errorf("failed to restock: %w", err)
		}

		success.Fprintf(cmd.OutOrStdout(), "✓ Restocked %s: %d pills\n", m.Name, m.PillsRemaining)
		return nil
	},
}

var lowStockCmd = &cobra.Command{
	Use:     "low-stock",
	Aliases: []string{"low"},
	Short:   "List medicines running low",
	Long: `List active medicines at or below their low stock threshold, fewest pills
first, with an estimate of the days left at the current dose.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		low, err := eng.GetLowStockMedicines(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(low) == 0 {
			fmt.Fprintln(out, "Stock is fine.")
			return nil
		}

		for _, l := range low {
			warn.Fprintf(out, "%s %s %d left",
				faint.Sprint(models.ShortID(l.Medicine.ID)),
				padRight(truncate(l.Medicine.Name, 20), 20),
				l.PillsRemaining)
			fmt.Fprintf(out, " (~%.1f days)\n", l.DaysRemaining)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restockCmd)
	rootCmd.AddCommand(lowStockCmd)
}
