// ABOUTME: CLI command for adding medicines.
// ABOUTME: Builds a medicine spec from flags and prints the stored record.
package main

import (
	"fmt"
	"strings"

	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/spf13/cobra"
)

var (
	addWindow    string
	addStart     string
	addEnd       string
	addDays      string
	addPills     int
	addPerDose   int
	addThreshold int
	addWithFood  bool
	addNotes     string
	addID        string
)

var addCmd = &cobra.Command{
	Use:     "add <name> <dosage>",
	Aliases: []string{"a"},
	Short:   "Add a medicine",
	Long: `Add a medicine with its dose window, active days and inventory.

WINDOWS:

  --window is one of morning, afternoon, evening, night.
  --start and --end are 24-hour HH:MM times; end must be after start
  (windows that cross midnight are not supported).

DAYS:

  --days is a comma-separated list of mon,tue,wed,thu,fri,sat,sun.
  Defaults to every day.

EXAMPLES:

  meds add "Vitamin D" "1000 IU" --window morning --start 06:00 --end 10:00 --pills 30
  meds add Metformin 500mg --window evening --start 18:00 --end 20:00 --with-food
  meds add Iron 65mg --window morning --start 07:00 --end 09:00 --days mon,wed,fri --low 10`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		days := splitList(addDays)
		if len(days) == 0 {
			for _, d := range models.AllWeekdays {
				days = append(days, string(d))
			}
		}

		m, err := eng.CreateMedicine(cmd.Context(), engine.MedicineSpec{
			ID:                addID,
			Name:              args[0],
			Dosage:            args[1],
			WindowLabel:       addWindow,
			WindowStart:       addStart,
			WindowEnd:         addEnd,
			ActiveDays:        days,
			WithFood:          addWithFood,
			Notes:             addNotes,
			PillsRemaining:    addPills,
			PillsPerDose:      addPerDose,
			LowStockThreshold: addThreshold,
		})
		if err != nil {
			return fmt.Errorf("failed to add medicine: %w", err)
		}

		out := cmd.OutOrStdout()
		success.Fprintf(out, "✓ Added %s\n", m.Name)
		fmt.Fprintf(out, "  %s %s  %s %s-%s  %s  %d pills\n",
			faint.Sprint(models.ShortID(m.ID)),
			m.Dosage, m.WindowLabel, m.WindowStart, m.WindowEnd,
			m.DaysString(), m.PillsRemaining)
		return nil
	},
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	addCmd.Flags().StringVarP(&addWindow, "window", "w", "", "window label (morning, afternoon, evening, night)")
	addCmd.Flags().StringVar(&addStart, "start", "", "window start (HH:MM)")
	addCmd.Flags().StringVar(&addEnd, "end", "", "window end (HH:MM)")
	addCmd.Flags().StringVarP(&addDays, "days", "d", "", "active days, comma separated (default every day)")
	addCmd.Flags().IntVarP(&addPills, "pills", "p", 0, "pills on hand")
	addCmd.Flags().IntVar(&addPerDose, "per-dose", 1, "pills per dose")
	addCmd.Flags().IntVar(&addThreshold, "low", 0, "low stock threshold")
	addCmd.Flags().BoolVar(&addWithFood, "with-food", false, "take with food")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "notes")
	addCmd.Flags().StringVar(&addID, "id", "", "explicit medicine ID")
	_ = addCmd.MarkFlagRequired("window")
	_ = addCmd.MarkFlagRequired("start")
	_ = addCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(addCmd)
}
