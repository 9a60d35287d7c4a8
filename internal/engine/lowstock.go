// ABOUTME: Low stock monitor: active medicines at or below their threshold.
// ABOUTME: Estimates days of supply left from the per-dose pill count.
package engine

import (
	"context"
	"math"
	"sort"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
)

// dosesPerDay is fixed: one medicine maps to one window.
const dosesPerDay = 1

// LowStockMedicine is a medicine running low, with an estimate of days left.
type LowStockMedicine struct {
	Medicine       *models.Medicine `json:"medicine"`
	PillsRemaining int              `json:"pills_remaining"`
	DaysRemaining  float64          `json:"days_remaining"`
}

// GetLowStockMedicines lists active medicines with pills_remaining at or
// below low_stock_threshold, fewest pills first, then by name.
func (e *Engine) GetLowStockMedicines(ctx context.Context) ([]LowStockMedicine, error) {
	var low []LowStockMedicine
	err := e.view(ctx, func(s storage.Store) error {
		active := true
		meds, err := s.ListMedicines(ctx, storage.MedicineFilter{Active: &active})
		if err != nil {
			return err
		}
		for _, m := range meds {
			if !m.IsLowStock() {
				continue
			}
			low = append(low, LowStockMedicine{
				Medicine:       m,
				PillsRemaining: m.PillsRemaining,
				DaysRemaining:  DaysRemaining(m),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(low, func(i, j int) bool {
		if low[i].PillsRemaining != low[j].PillsRemaining {
			return low[i].PillsRemaining < low[j].PillsRemaining
		}
		return low[i].Medicine.Name < low[j].Medicine.Name
	})
	return low, nil
}

// DaysRemaining estimates supply in days, rounded to one decimal.
func DaysRemaining(m *models.Medicine) float64 {
	perDay := dosesPerDay * m.PillsPerDose
	if perDay <= 0 {
		return 0
	}
	days := float64(m.PillsRemaining) / float64(perDay)
	return math.Round(days*10) / 10
}
