// ABOUTME: Dose history queries over the ledger, paginated newest first.
package engine

import (
	"context"
	"fmt"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
)

// HistoryQuery selects ledger rows. Zero Page and PerPage use the defaults.
type HistoryQuery struct {
	MedicineID string
	Start      *models.Date
	End        *models.Date
	Status     storage.DoseStatusFilter
	Page       int
	PerPage    int
}

// GetDoseHistory returns one page of dose events, newest date first.
func (e *Engine) GetDoseHistory(ctx context.Context, q HistoryQuery) (*storage.DosePage, error) {
	if q.Start != nil && q.End != nil && q.Start.After(*q.End) {
		return nil, models.NewValidationError("date_range",
			fmt.Sprintf("start %s is after end %s", q.Start, q.End))
	}
	if q.Page < 0 {
		return nil, models.NewValidationError("page", "must be at least 1")
	}
	if q.PerPage < 0 {
		return nil, models.NewValidationError("per_page", "must be at least 1")
	}
	switch q.Status {
	case storage.StatusAny, storage.StatusTaken, storage.StatusSkipped:
	default:
		return nil, models.NewValidationError("status", fmt.Sprintf("unknown status %q", q.Status))
	}

	var page *storage.DosePage
	err := e.view(ctx, func(s storage.Store) error {
		var err error
		page, err = s.QueryDoses(ctx, storage.DoseFilter{
			MedicineID: q.MedicineID,
			Start:      q.Start,
			End:        q.End,
			Status:     q.Status,
			Page:       q.Page,
			PerPage:    q.PerPage,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []*models.DoseEvent{}
	}
	return page, nil
}
