// ABOUTME: CLI commands for what is due and for recording doses.
// ABOUTME: Implements due, take, skip and batch-take.
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/schedule"
	"github.com/spf13/cobra"
)

var (
	dueDate     string
	dueTime     string
	dueReminder int

	takeWindow string
	takeDate   string
	takeAt     string

	skipReason string
	skipWindow string
	skipDate   string
	skipAt     string

	batchAt string
)

var dueCmd = &cobra.Command{
	Use:     "due",
	Aliases: []string{"pending"},
	Short:   "Show medicines due now",
	Long: `Show active medicines whose window (widened by the reminder window)
covers the given time and that have not been taken or skipped yet.

EXAMPLES:

  meds due                              # Right now
  meds due --time 21:00                 # Later today
  meds due --date 2024-01-02 --time 07:00 --reminder 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := eng.Now().In(eng.Location())

		date, err := parseDateFlag("date", dueDate)
		if err != nil {
			return err
		}
		if date.IsZero() {
			date = models.DateOf(now)
		}

		tod := models.TimeOfDayOf(now)
		if dueTime != "" {
			tod, err = models.ParseTimeOfDay(dueTime)
			if err != nil {
				return fmt.Errorf("invalid --time %q (use HH:MM)", dueTime)
			}
		}

		reminder := eng.ReminderWindow()
		if cmd.Flags().Changed("reminder") {
			if reminder, err = schedule.ClampReminderWindow(dueReminder); err != nil {
				return err
			}
		}

		pending, err := eng.GetPendingMedicines(cmd.Context(), date, tod, reminder)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(pending) == 0 {
			fmt.Fprintf(out, "Nothing due at %s %s.\n", date, tod)
			return nil
		}

		bold.Fprintf(out, "Due at %s %s:\n", date, tod)
		for _, p := range pending {
			printPending(out, p)
		}
		return nil
	},
}

var takeCmd = &cobra.Command{
	Use:     "take <id>",
	Aliases: []string{"t"},
	Short:   "Mark a dose taken",
	Long: `Mark a medicine's dose taken for a date and window.

Defaults to today and the medicine's own window. Taking the same slot again
updates the timestamp without using more pills. Stock stops at zero.

EXAMPLES:

  meds take med_1a2b
  meds take med_1a2b --date 2024-01-01 --at "2024-01-01 07:45"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := resolveID(ctx, args[0])
		if err != nil {
			return err
		}

		opts := engine.TakeOptions{WindowLabel: models.WindowLabel(strings.ToLower(takeWindow))}
		if opts.Date, err = parseDateFlag("date", takeDate); err != nil {
			return err
		}
		if takeAt != "" {
			if opts.At, err = parseTime(takeAt, eng.Location()); err != nil {
				return fmt.Errorf("invalid --at %q: %w", takeAt, err)
			}
		}

		result, err := eng.MarkTaken(ctx, id, opts)
		if err != nil {
			return fmt.Errorf("failed to mark taken: %w", err)
		}

		out := cmd.OutOrStdout()
		success.Fprintf(out, "✓ Took %s %s\n", result.Medicine.Name, result.Medicine.Dosage)
		printStock(out, result)
		return nil
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <id>",
	Short: "Skip a dose",
	Long: `Mark a medicine's dose skipped for a date and window. Stock is unchanged.

REASONS:

  Forgot, "Side effects", "Out of stock", "Doctor advised", Other
  (case-insensitive)

EXAMPLES:

  meds skip med_1a2b --reason forgot
  meds skip med_9f8e --reason "side effects" --date 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := resolveID(ctx, args[0])
		if err != nil {
			return err
		}

		opts := engine.SkipOptions{
			WindowLabel: models.WindowLabel(strings.ToLower(skipWindow)),
			Reason:      models.SkipReason(skipReason),
		}
		if opts.Date, err = parseDateFlag("date", skipDate); err != nil {
			return err
		}
		if skipAt != "" {
			if opts.At, err = parseTime(skipAt, eng.Location()); err != nil {
				return fmt.Errorf("invalid --at %q: %w", skipAt, err)
			}
		}

		result, err := eng.SkipDose(ctx, id, opts)
		if err != nil {
			return fmt.Errorf("failed to skip dose: %w", err)
		}

		out := cmd.OutOrStdout()
		warn.Fprintf(out, "○ Skipped %s", result.Medicine.Name)
		if result.Dose.SkipReason != "" {
			fmt.Fprintf(out, " (%s)", result.Dose.SkipReason)
		}
		fmt.Fprintln(out)
		return nil
	},
}

var batchTakeCmd = &cobra.Command{
	Use:   "batch-take <id>...",
	Short: "Mark several doses taken at once",
	Long: fmt.Sprintf(`Mark up to %d medicines taken at the same instant.

IDs that do not match a medicine are reported and skipped.

EXAMPLES:

  meds batch-take med_1a2b med_9f8e med_4c5d`, engine.MaxBatchSize),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ids := make([]string, len(args))
		for i, a := range args {
			id, err := eng.ResolveMedicineID(ctx, a)
			if err != nil {
				id = a
			}
			ids[i] = id
		}

		at := eng.Now()
		if batchAt != "" {
			var err error
			if at, err = parseTime(batchAt, eng.Location()); err != nil {
				return fmt.Errorf("invalid --at %q: %w", batchAt, err)
			}
		}

		result, err := eng.BatchMarkTaken(ctx, ids, at)
		if err != nil {
			return fmt.Errorf("failed to mark taken: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, r := range result.Marked {
			success.Fprintf(out, "✓ Took %s %s\n", r.Medicine.Name, r.Medicine.Dosage)
			printStock(out, r)
		}
		for _, id := range result.NotFound {
			warn.Fprintf(out, "? Not found: %s\n", id)
		}
		return nil
	},
}

func printPending(out io.Writer, p engine.PendingMedicine) {
	m := p.Medicine
	fmt.Fprintf(out, "  %s %s %s  %s %s-%s",
		faint.Sprint(models.ShortID(m.ID)),
		m.Name, m.Dosage, m.WindowLabel, m.WindowStart, m.WindowEnd)
	if m.WithFood {
		fmt.Fprint(out, " (with food)")
	}
	fmt.Fprintln(out)
	if p.LowStock {
		warn.Fprintf(out, "      only %d left\n", p.PillsRemaining)
	}
}

func printStock(out io.Writer, r *engine.DoseResult) {
	line := fmt.Sprintf("  %d pills left", r.PillsRemaining)
	if !r.Decremented {
		line += " (already taken, stock unchanged)"
	}
	if r.LowStock {
		warn.Fprintln(out, line+", running low")
		return
	}
	fmt.Fprintln(out, faint.Sprint(line))
}

func init() {
	dueCmd.Flags().StringVar(&dueDate, "date", "", "date (YYYY-MM-DD, default today)")
	dueCmd.Flags().StringVar(&dueTime, "time", "", "time of day (HH:MM, default now)")
	dueCmd.Flags().IntVar(&dueReminder, "reminder", 0, "reminder window in minutes (default from config)")

	takeCmd.Flags().StringVarP(&takeWindow, "window", "w", "", "window label (default the medicine's window)")
	takeCmd.Flags().StringVar(&takeDate, "date", "", "slot date (YYYY-MM-DD, default today)")
	takeCmd.Flags().StringVar(&takeAt, "at", "", "when it was taken (YYYY-MM-DD HH:MM)")

	skipCmd.Flags().StringVarP(&skipReason, "reason", "r", "", "why the dose was skipped")
	skipCmd.Flags().StringVarP(&skipWindow, "window", "w", "", "window label (default the medicine's window)")
	skipCmd.Flags().StringVar(&skipDate, "date", "", "slot date (YYYY-MM-DD, default today)")
	skipCmd.Flags().StringVar(&skipAt, "at", "", "when it was skipped (YYYY-MM-DD HH:MM)")

	batchTakeCmd.Flags().StringVar(&batchAt, "at", "", "when they were taken (YYYY-MM-DD HH:MM)")

	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(batchTakeCmd)
}
