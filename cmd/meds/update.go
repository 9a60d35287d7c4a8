// ABOUTME: CLI command for changing selected fields of a medicine.
// ABOUTME: Only flags that were set on the command line are applied.
package main

import (
	"fmt"

	"github.com/harperreed/meds/internal/engine"
	"github.com/spf13/cobra"
)

var (
	updName      string
	updDosage    string
	updWindow    string
	updStart     string
	updEnd       string
	updDays      string
	updPills     int
	updPerDose   int
	updThreshold int
	updWithFood  bool
	updNotes     string
	updActive    bool
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Aliases: []string{"edit"},
	Short:   "Update a medicine",
	Long: `Update selected fields of a medicine. Unset flags are left unchanged.
The merged record is validated as a whole before it is saved.

EXAMPLES:

  meds update med_1a2b --dosage "2000 IU"
  meds update med_1a2b --start 07:00 --end 11:00
  meds update med_9f8e --days mon,thu
  meds update med_9f8e --active=false   # Pause without deleting`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveID(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		var patch engine.MedicinePatch
		if flags.Changed("name") {
			patch.Name = &updName
		}
		if flags.Changed("dosage") {
			patch.Dosage = &updDosage
		}
		if flags.Changed("window") {
			patch.WindowLabel = &updWindow
		}
		if flags.Changed("start") {
			patch.WindowStart = &updStart
		}
		if flags.Changed("end") {
			patch.WindowEnd = &updEnd
		}
		if flags.Changed("days") {
			patch.ActiveDays = splitList(updDays)
			if patch.ActiveDays == nil {
				patch.ActiveDays = []string{}
			}
		}
		if flags.Changed("pills") {
			patch.PillsRemaining = &updPills
		}
		if flags.Changed("per-dose") {
			patch.PillsPerDose = &updPerDose
		}
		if flags.Changed("low") {
			patch.LowStockThreshold = &updThreshold
		}
		if flags.Changed("with-food") {
			patch.WithFood = &updWithFood
		}
		if flags.Changed("notes") {
			patch.Notes = &updNotes
		}
		if flags.Changed("active") {
			patch.Active = &updActive
		}
		if patch.IsEmpty() {
			return fmt.Errorf("nothing to update; pass at least one flag")
		}

		m, err := eng.UpdateMedicine(cmd.Context(), id, patch)
		if err != nil {
			return fmt.Errorf("failed to update medicine: %w", err)
		}

		out := cmd.OutOrStdout()
		success.Fprintf(out, "✓ Updated %s\n", m.Name)
		printMedicineLine(out, m)
		return nil
	},
}

func init() {
	f := updateCmd.Flags()
	f.StringVar(&updName, "name", "", "new name")
	f.StringVar(&updDosage, "dosage", "", "new dosage")
	f.StringVarP(&updWindow, "window", "w", "", "new window label")
	f.StringVar(&updStart, "start", "", "new window start (HH:MM)")
	f.StringVar(&updEnd, "end", "", "new window end (HH:MM)")
	f.StringVarP(&updDays, "days", "d", "", "new active days, comma separated")
	f.IntVarP(&updPills, "pills", "p", 0, "set pills on hand")
	f.IntVar(&updPerDose, "per-dose", 1, "pills per dose")
	f.IntVar(&updThreshold, "low", 0, "low stock threshold")
	f.BoolVar(&updWithFood, "with-food", false, "take with food")
	f.StringVar(&updNotes, "notes", "", "notes")
	f.BoolVar(&updActive, "active", true, "active (false pauses the medicine)")
	rootCmd.AddCommand(updateCmd)
}
