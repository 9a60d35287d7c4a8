// ABOUTME: Adherence aggregator: expected slots versus taken and skipped doses.
// ABOUTME: Also builds the single-day stats view used by "today".
package engine

import (
	"context"
	"fmt"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/schedule"
	"github.com/harperreed/meds/internal/storage"
)

// AdherenceSummary counts outcomes over an inclusive date range.
type AdherenceSummary struct {
	Start         models.Date      `json:"start_date"`
	End           models.Date      `json:"end_date"`
	MedicineID    string           `json:"medicine_id,omitempty"`
	Taken         int              `json:"taken"`
	Skipped       int              `json:"skipped"`
	Missed        int              `json:"missed"`
	Total         int              `json:"total"`
	AdherenceRate float64          `json:"adherence_rate"`
	SkipRate      float64          `json:"skip_rate"`
	Inconsistent  bool             `json:"inconsistent,omitempty"`
	Daily         []DailyAdherence `json:"daily"`
}

// DailyAdherence is one date's slice of an AdherenceSummary.
type DailyAdherence struct {
	Date     models.Date `json:"date"`
	Expected int         `json:"expected"`
	Taken    int         `json:"taken"`
	Skipped  int         `json:"skipped"`
	Missed   int         `json:"missed"`
}

// DayStats is the single-day overview.
type DayStats struct {
	Date          models.Date `json:"date"`
	Scheduled     int         `json:"scheduled"`
	Taken         int         `json:"taken"`
	Skipped       int         `json:"skipped"`
	Pending       int         `json:"pending"`
	AdherenceRate float64     `json:"adherence_rate"`
	LowStockCount int         `json:"low_stock_count"`
}

// GetAdherence summarizes [start, end]. With an empty medicineID every
// active medicine is in scope; a named medicine is in scope even when
// inactive. When the ledger holds more resolutions than expected slots
// (for example after a schedule change mid-range), missed is clamped to 0,
// rates are capped at 1, and Inconsistent is set.
func (e *Engine) GetAdherence(ctx context.Context, start, end models.Date, medicineID string) (*AdherenceSummary, error) {
	if start.IsZero() || end.IsZero() {
		return nil, models.NewValidationError("date_range", "start and end dates are required")
	}
	if start.After(end) {
		return nil, models.NewValidationError("date_range",
			fmt.Sprintf("start %s is after end %s", start, end))
	}

	summary := &AdherenceSummary{Start: start, End: end, MedicineID: medicineID}

	err := e.view(ctx, func(s storage.Store) error {
		meds, err := medicinesInScope(ctx, s, medicineID)
		if err != nil {
			return err
		}

		inScope := make(map[string]bool, len(meds))
		for _, m := range meds {
			inScope[m.ID] = true
		}

		page, err := s.QueryDoses(ctx, storage.DoseFilter{
			MedicineID: medicineID,
			Start:      &start,
			End:        &end,
			PerPage:    -1,
		})
		if err != nil {
			return err
		}

		type counts struct{ taken, skipped int }
		byDate := make(map[models.Date]*counts)
		for _, d := range page.Items {
			if !inScope[d.MedicineID] {
				continue
			}
			c := byDate[d.Date]
			if c == nil {
				c = &counts{}
				byDate[d.Date] = c
			}
			switch d.Status() {
			case models.DoseTaken:
				c.taken++
			case models.DoseSkipped:
				c.skipped++
			}
		}

		summary.Daily = make([]DailyAdherence, 0, start.DaysUntil(end)+1)
		for d := end; !d.Before(start); d = d.AddDays(-1) {
			day := DailyAdherence{Date: d}
			for _, m := range meds {
				day.Expected += schedule.ExpectedSlots(m, d, d)
			}
			if c := byDate[d]; c != nil {
				day.Taken, day.Skipped = c.taken, c.skipped
			}
			day.Missed = max(0, day.Expected-day.Taken-day.Skipped)

			summary.Total += day.Expected
			summary.Taken += day.Taken
			summary.Skipped += day.Skipped
			summary.Daily = append(summary.Daily, day)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resolved := summary.Taken + summary.Skipped
	if resolved > summary.Total {
		summary.Inconsistent = true
		e.logger.Warn("ledger exceeds expected slots",
			"start", start, "end", end, "medicine", medicineID,
			"expected", summary.Total, "resolved", resolved)
	}
	summary.Missed = max(0, summary.Total-resolved)
	summary.AdherenceRate = ratio(summary.Taken, summary.Total)
	summary.SkipRate = ratio(summary.Skipped, summary.Total)

	return summary, nil
}

// GetDayStats reports scheduled, taken, skipped and pending counts for date.
func (e *Engine) GetDayStats(ctx context.Context, date models.Date) (*DayStats, error) {
	if date.IsZero() {
		date = e.Today()
	}
	stats := &DayStats{Date: date}

	err := e.view(ctx, func(s storage.Store) error {
		active := true
		meds, err := s.ListMedicines(ctx, storage.MedicineFilter{Active: &active})
		if err != nil {
			return err
		}

		for _, m := range meds {
			if m.IsLowStock() {
				stats.LowStockCount++
			}
			if !m.ScheduledOn(date.Weekday()) {
				continue
			}
			stats.Scheduled++

			dose, err := existingDose(ctx, s, m.ID, date, m.WindowLabel)
			if err != nil {
				return err
			}
			switch dose.Status() {
			case models.DoseTaken:
				stats.Taken++
			case models.DoseSkipped:
				stats.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.Pending = max(0, stats.Scheduled-stats.Taken-stats.Skipped)
	stats.AdherenceRate = ratio(stats.Taken, stats.Scheduled)
	return stats, nil
}

// medicinesInScope returns the named medicine, or every active one.
func medicinesInScope(ctx context.Context, s storage.Store, medicineID string) ([]*models.Medicine, error) {
	if medicineID != "" {
		m, err := s.GetMedicine(ctx, medicineID)
		if err != nil {
			return nil, err
		}
		return []*models.Medicine{m}, nil
	}
	active := true
	return s.ListMedicines(ctx, storage.MedicineFilter{Active: &active})
}

// ratio returns n/d capped to [0, 1], or 0 when d is 0.
func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	r := float64(n) / float64(d)
	if r > 1 {
		return 1
	}
	return r
}
