// ABOUTME: CLI commands for progress and history reports.
// ABOUTME: Implements today, adherence and history.
package main

import (
	"fmt"
	"strings"

	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
	"github.com/spf13/cobra"
)

var (
	adhFrom     string
	adhTo       string
	adhMedicine string
	adhDaily    bool

	histMedicine string
	histFrom     string
	histTo       string
	histStatus   string
	histPage     int
	histPerPage  int
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stats, err := eng.GetDayStats(ctx, models.Date{})
		if err != nil {
			return err
		}
		pending, err := eng.GetPendingNow(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		bold.Fprintf(out, "%s (%s)\n", stats.Date, stats.Date.Weekday())
		fmt.Fprintf(out, "  %d scheduled, %d taken, %d skipped, %d pending\n",
			stats.Scheduled, stats.Taken, stats.Skipped, stats.Pending)
		fmt.Fprintf(out, "  Adherence: %s\n", percent(stats.AdherenceRate))
		if stats.LowStockCount > 0 {
			warn.Fprintf(out, "  %d running low, see 'meds low-stock'\n", stats.LowStockCount)
		}
		if len(pending) > 0 {
			fmt.Fprintln(out)
			bold.Fprintln(out, "Due now:")
			for _, p := range pending {
				printPending(out, p)
			}
		}
		return nil
	},
}

var adherenceCmd = &cobra.Command{
	Use:   "adherence",
	Short: "Show adherence over a date range",
	Long: `Summarize taken, skipped and missed doses over an inclusive date range.
Defaults to the last 7 days ending today.

EXAMPLES:

  meds adherence
  meds adherence --from 2024-01-01 --to 2024-01-31
  meds adherence --medicine med_1a2b --daily`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		end, err := parseDateFlag("to", adhTo)
		if err != nil {
			return err
		}
		if end.IsZero() {
			end = eng.Today()
		}
		start, err := parseDateFlag("from", adhFrom)
		if err != nil {
			return err
		}
		if start.IsZero() {
			start = end.AddDays(-6)
		}

		var medID string
		if adhMedicine != "" {
			if medID, err = resolveID(ctx, adhMedicine); err != nil {
				return err
			}
		}

		sum, err := eng.GetAdherence(ctx, start, end, medID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		bold.Fprintf(out, "Adherence %s to %s: %s\n", sum.Start, sum.End, percent(sum.AdherenceRate))
		fmt.Fprintf(out, "  %d taken, %d skipped, %d missed of %d\n", sum.Taken, sum.Skipped, sum.Missed, sum.Total)
		if sum.Inconsistent {
			warn.Fprintln(out, "  More doses recorded than scheduled; counts were capped")
		}
		if adhDaily {
			for _, d := range sum.Daily {
				fmt.Fprintf(out, "  %s %s  %d/%d taken, %d skipped, %d missed\n",
					d.Date, d.Date.Weekday(), d.Taken, d.Expected, d.Skipped, d.Missed)
			}
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"log"},
	Short:   "Show recorded doses",
	Long: `Show recorded doses, newest first.

EXAMPLES:

  meds history
  meds history --medicine med_1a2b --from 2024-01-01
  meds history --status skipped --page 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		q := engine.HistoryQuery{Page: histPage, PerPage: histPerPage}
		if histMedicine != "" {
			id, err := eng.ResolveMedicineID(ctx, histMedicine)
			if err != nil {
				// Deleted medicines keep their history, so a full ID may not resolve.
				id = histMedicine
			}
			q.MedicineID = id
		}
		if histFrom != "" {
			d, err := parseDateFlag("from", histFrom)
			if err != nil {
				return err
			}
			q.Start = &d
		}
		if histTo != "" {
			d, err := parseDateFlag("to", histTo)
			if err != nil {
				return err
			}
			q.End = &d
		}
		switch strings.ToLower(histStatus) {
		case "", "all":
		case "taken":
			q.Status = storage.StatusTaken
		case "skipped":
			q.Status = storage.StatusSkipped
		default:
			return fmt.Errorf("invalid --status %q (use taken, skipped or all)", histStatus)
		}

		page, err := eng.GetDoseHistory(ctx, q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(page.Items) == 0 {
			fmt.Fprintln(out, "No doses recorded.")
			return nil
		}

		for _, d := range page.Items {
			name := d.MedicineName
			if name == "" {
				name = faint.Sprint(models.ShortID(d.MedicineID))
			}
			status := d.Status()
			mark := success.Sprint("✓ taken  ")
			if status == models.DoseSkipped {
				mark = warn.Sprint("○ skipped")
			}
			fmt.Fprintf(out, "%s %s %s %s", d.Date, padRight(string(d.WindowLabel), 9), mark, name)
			switch {
			case status == models.DoseTaken && d.TakenAt != nil:
				fmt.Fprintf(out, " at %s", d.TakenAt.In(eng.Location()).Format("15:04"))
			case status == models.DoseSkipped && d.SkipReason != "":
				fmt.Fprintf(out, " (%s)", d.SkipReason)
			}
			fmt.Fprintln(out)
		}

		pages := (page.Total + page.PerPage - 1) / page.PerPage
		fmt.Fprintln(out, faint.Sprintf("Page %d of %d (%d doses)", page.Page, pages, page.Total))
		return nil
	},
}

func percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func init() {
	adherenceCmd.Flags().StringVar(&adhFrom, "from", "", "start date (YYYY-MM-DD, default 6 days before --to)")
	adherenceCmd.Flags().StringVar(&adhTo, "to", "", "end date (YYYY-MM-DD, default today)")
	adherenceCmd.Flags().StringVarP(&adhMedicine, "medicine", "m", "", "limit to one medicine")
	adherenceCmd.Flags().BoolVar(&adhDaily, "daily", false, "show a per-day breakdown")

	historyCmd.Flags().StringVarP(&histMedicine, "medicine", "m", "", "limit to one medicine")
	historyCmd.Flags().StringVar(&histFrom, "from", "", "start date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&histTo, "to", "", "end date (YYYY-MM-DD)")
	historyCmd.Flags().StringVarP(&histStatus, "status", "s", "", "taken, skipped or all")
	historyCmd.Flags().IntVar(&histPage, "page", 1, "page number")
	historyCmd.Flags().IntVar(&histPerPage, "per-page", storage.DefaultPerPage, "doses per page")

	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(adherenceCmd)
	rootCmd.AddCommand(historyCmd)
}
