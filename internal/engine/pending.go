// ABOUTME: Pending calculator: which active medicines are due and still unresolved.
// ABOUTME: Combines the window matcher with a ledger lookup per matching slot.
package engine

import (
	"context"
	"errors"
	"sort"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/schedule"
	"github.com/harperreed/meds/internal/storage"
)

// PendingMedicine is a due, unresolved medicine with its stock status.
type PendingMedicine struct {
	Medicine       *models.Medicine `json:"medicine"`
	PillsRemaining int              `json:"pills_remaining"`
	LowStock       bool             `json:"low_stock"`
}

// GetPendingMedicines returns active medicines due at tod on date whose slot
// for that date has been neither taken nor skipped. Results are ordered by
// window start, then name, then ID.
func (e *Engine) GetPendingMedicines(ctx context.Context, date models.Date, tod models.TimeOfDay, reminderMinutes int) ([]PendingMedicine, error) {
	if err := schedule.ValidateReminderWindow(reminderMinutes); err != nil {
		return nil, err
	}

	var pending []PendingMedicine
	err := e.view(ctx, func(s storage.Store) error {
		active := true
		meds, err := s.ListMedicines(ctx, storage.MedicineFilter{Active: &active})
		if err != nil {
			return err
		}

		for _, m := range meds {
			if !schedule.IsDue(m, date, tod, reminderMinutes) {
				continue
			}

			dose, err := s.GetDose(ctx, m.ID, date, m.WindowLabel)
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				return err
			}
			if dose.Resolved() {
				continue
			}

			pending = append(pending, PendingMedicine{
				Medicine:       m,
				PillsRemaining: m.PillsRemaining,
				LowStock:       m.IsLowStock(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i].Medicine, pending[j].Medicine
		if a.WindowStart != b.WindowStart {
			return a.WindowStart < b.WindowStart
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	e.logger.Debug("pending computed", "date", date, "time", tod, "count", len(pending))
	return pending, nil
}

// GetPendingNow is GetPendingMedicines at the clock's current date and time
// with the configured reminder window.
func (e *Engine) GetPendingNow(ctx context.Context) ([]PendingMedicine, error) {
	now := e.Now()
	return e.GetPendingMedicines(ctx, models.DateOf(now), models.TimeOfDayOf(now), e.cfg.ReminderWindowMinutes)
}
