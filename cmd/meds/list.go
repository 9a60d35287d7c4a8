// ABOUTME: CLI commands for listing and showing medicines.
// ABOUTME: Supports filtering by window and including paused medicines.
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
	"github.com/spf13/cobra"
)

var (
	listAll    bool
	listWindow string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List medicines",
	Long: `List medicines ordered by name.

OUTPUT FORMAT:

  Each line shows: ID  NAME  DOSAGE  WINDOW  DAYS  PILLS

  The ID is a short prefix you can use with every other command.

EXAMPLES:

  meds list                   # Active medicines
  meds list --all             # Include paused medicines
  meds list --window evening  # Only the evening window`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter storage.MedicineFilter
		if !listAll {
			active := true
			filter.Active = &active
		}
		if listWindow != "" {
			label := models.WindowLabel(strings.ToLower(listWindow))
			if !models.IsValidWindowLabel(string(label)) {
				return fmt.Errorf("unknown window: %s", listWindow)
			}
			filter.WindowLabel = &label
		}

		meds, err := eng.ListMedicines(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to list medicines: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(meds) == 0 {
			fmt.Fprintln(out, "No medicines found.")
			return nil
		}

		for _, m := range meds {
			printMedicineLine(out, m)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one medicine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		m, err := eng.GetMedicine(cmd.Context(), id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		bold.Fprintf(out, "%s %s\n", m.Name, m.Dosage)
		fmt.Fprintf(out, "  ID:        %s\n", m.ID)
		fmt.Fprintf(out, "  Window:    %s %s-%s\n", m.WindowLabel, m.WindowStart, m.WindowEnd)
		fmt.Fprintf(out, "  Days:      %s\n", m.DaysString())
		fmt.Fprintf(out, "  Stock:     %d pills, %d per dose, warn at %d\n", m.PillsRemaining, m.PillsPerDose, m.LowStockThreshold)
		if m.WithFood {
			fmt.Fprintln(out, "  With food")
		}
		if m.Notes != "" {
			fmt.Fprintf(out, "  Notes:     %s\n", m.Notes)
		}
		if !m.Active {
			warn.Fprintln(out, "  Paused")
		}
		return nil
	},
}

func printMedicineLine(out io.Writer, m *models.Medicine) {
	stock := fmt.Sprintf("%d pills", m.PillsRemaining)
	if m.IsLowStock() {
		stock = warn.Sprint(stock)
	}
	paused := ""
	if !m.Active {
		paused = faint.Sprint(" (paused)")
	}
	fmt.Fprintf(out, "%s %s %s %s %s-%s %s %s%s\n",
		faint.Sprint(models.ShortID(m.ID)),
		padRight(truncate(m.Name, 20), 20),
		padRight(truncate(m.Dosage, 10), 10),
		padRight(string(m.WindowLabel), 9),
		m.WindowStart, m.WindowEnd,
		padRight(m.DaysString(), 27),
		stock,
		paused)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include paused medicines")
	listCmd.Flags().StringVarP(&listWindow, "window", "w", "", "filter by window label")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}
