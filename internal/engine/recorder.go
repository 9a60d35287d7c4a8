// ABOUTME: Dose recorder: marks slots taken or skipped and adjusts inventory.
// ABOUTME: The ledger write and the stock change commit in the same transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
)

// MaxBatchSize bounds BatchMarkTaken.
const MaxBatchSize = 20

// MaxRestock bounds a single restock.
const MaxRestock = 1000

// TakeOptions selects the slot for MarkTaken. Zero values default to the
// current instant, its calendar date, and the medicine's own window.
type TakeOptions struct {
	Date        models.Date
	WindowLabel models.WindowLabel
	At          time.Time
}

// SkipOptions selects the slot and reason for SkipDose.
type SkipOptions struct {
	Date        models.Date
	WindowLabel models.WindowLabel
	Reason      models.SkipReason
	At          time.Time
}

// DoseResult reports the outcome of recording one dose.
type DoseResult struct {
	Medicine       *models.Medicine  `json:"medicine"`
	PillsRemaining int               `json:"pills_remaining"`
	LowStock       bool              `json:"low_stock"`
	Dose           *models.DoseEvent `json:"dose"`
	// Decremented is false when the slot had already consumed pills.
	Decremented bool `json:"decremented"`
}

// BatchResult lists the medicines marked and the IDs that did not resolve.
type BatchResult struct {
	Marked   []*DoseResult `json:"marked"`
	NotFound []string      `json:"not_found"`
}

// resolveSlot fills defaults for a slot and validates the label.
func (e *Engine) resolveSlot(m *models.Medicine, date models.Date, label models.WindowLabel, at time.Time) (models.Date, models.WindowLabel, time.Time, error) {
	if at.IsZero() {
		at = e.Now()
	}
	if date.IsZero() {
		date = models.DateOf(at.In(e.cfg.Location))
	}
	if label == "" {
		label = m.WindowLabel
	}
	if !models.IsValidWindowLabel(string(label)) {
		return date, label, at, models.NewValidationError("window_label", fmt.Sprintf("unknown window %q", label))
	}
	return date, label, at, nil
}

// existingDose returns the slot's ledger row, or nil when there is none.
func existingDose(ctx context.Context, s storage.Store, id string, date models.Date, label models.WindowLabel) (*models.DoseEvent, error) {
	dose, err := s.GetDose(ctx, id, date, label)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return dose, err
}

// markTaken is MarkTaken inside an open transaction. Stock is decremented only
// on the slot's first transition into taken.
func (e *Engine) markTaken(ctx context.Context, s storage.Store, id string, opts TakeOptions) (*DoseResult, error) {
	m, err := s.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}

	date, label, at, err := e.resolveSlot(m, opts.Date, opts.WindowLabel, opts.At)
	if err != nil {
		return nil, err
	}

	prior, err := existingDose(ctx, s, id, date, label)
	if err != nil {
		return nil, err
	}

	pills := m.PillsPerDose
	decrement := true
	if prior != nil && prior.PillsTaken > 0 {
		pills = prior.PillsTaken
		decrement = false
	}

	dose, err := s.UpsertDose(ctx, models.NewTakenDose(id, date, label, at, pills))
	if err != nil {
		return nil, err
	}

	if decrement {
		m, err = s.AdjustStock(ctx, id, -pills, storage.ClampAtZero)
		if err != nil {
			return nil, err
		}
	}

	return &DoseResult{
		Medicine:       m,
		PillsRemaining: m.PillsRemaining,
		LowStock:       m.IsLowStock(),
		Dose:           dose,
		Decremented:    decrement,
	}, nil
}

// MarkTaken records the slot as taken and decrements stock, clamped at zero.
func (e *Engine) MarkTaken(ctx context.Context, id string, opts TakeOptions) (*DoseResult, error) {
	var result *DoseResult
	err := e.update(ctx, func(s storage.Store) error {
		var err error
		result, err = e.markTaken(ctx, s, id, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("dose taken",
		"medicine", id,
		"date", result.Dose.Date,
		"window", result.Dose.WindowLabel,
		"remaining", result.PillsRemaining,
		"decremented", result.Decremented)
	if result.LowStock {
		e.logger.Warn("low stock", "medicine", id, "remaining", result.PillsRemaining)
	}
	return result, nil
}

// SkipDose records the slot as skipped. Inventory is never touched, even when
// the slot was previously taken.
func (e *Engine) SkipDose(ctx context.Context, id string, opts SkipOptions) (*DoseResult, error) {
	if opts.Reason != "" {
		reason, ok := models.ParseSkipReason(string(opts.Reason))
		if !ok {
			return nil, models.NewValidationError("reason", fmt.Sprintf("unknown reason %q", opts.Reason))
		}
		opts.Reason = reason
	}

	var result *DoseResult
	err := e.update(ctx, func(s storage.Store) error {
		m, err := s.GetMedicine(ctx, id)
		if err != nil {
			return err
		}

		date, label, at, err := e.resolveSlot(m, opts.Date, opts.WindowLabel, opts.At)
		if err != nil {
			return err
		}

		prior, err := existingDose(ctx, s, id, date, label)
		if err != nil {
			return err
		}

		skip := models.NewSkippedDose(id, date, label, opts.Reason, at)
		if prior != nil {
			skip.PillsTaken = prior.PillsTaken
		}

		dose, err := s.UpsertDose(ctx, skip)
		if err != nil {
			return err
		}

		result = &DoseResult{
			Medicine:       m,
			PillsRemaining: m.PillsRemaining,
			LowStock:       m.IsLowStock(),
			Dose:           dose,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("dose skipped",
		"medicine", id,
		"date", result.Dose.Date,
		"window", result.Dose.WindowLabel,
		"reason", result.Dose.SkipReason)
	return result, nil
}

// BatchMarkTaken marks each ID taken at the same instant, each in its own
// transaction. IDs that do not exist are collected in NotFound; any other
// failure stops the batch and is returned with the results so far.
func (e *Engine) BatchMarkTaken(ctx context.Context, ids []string, at time.Time) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, models.NewValidationError("medicine_ids", "must contain at least one ID")
	}
	if len(ids) > MaxBatchSize {
		return nil, models.NewValidationError("medicine_ids", fmt.Sprintf("must contain at most %d IDs", MaxBatchSize))
	}
	if at.IsZero() {
		at = e.Now()
	}

	result := &BatchResult{Marked: []*DoseResult{}, NotFound: []string{}}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		r, err := e.MarkTaken(ctx, id, TakeOptions{At: at})
		switch {
		case err == nil:
			result.Marked = append(result.Marked, r)
		case errors.Is(err, models.ErrNotFound):
			result.NotFound = append(result.NotFound, id)
		default:
			return result, fmt.Errorf("batch mark %s: %w", id, err)
		}
	}

	e.logger.Info("batch taken", "marked", len(result.Marked), "not_found", len(result.NotFound))
	return result, nil
}

// Restock adds pills to a medicine's inventory. The total on hand stays
// within models.MaxPillsRemaining.
func (e *Engine) Restock(ctx context.Context, id string, pills int) (*models.Medicine, error) {
	if pills < 1 || pills > MaxRestock {
		return nil, models.NewValidationError("pills", fmt.Sprintf("must be between 1 and %d", MaxRestock))
	}
	m, err := e.AdjustStock(ctx, id, pills, storage.RejectUnderflow)
	if err != nil {
		return nil, err
	}
	e.logger.Info("restocked", "medicine", id, "added", pills, "remaining", m.PillsRemaining)
	return m, nil
}

// AdjustStock changes inventory by delta under an explicit underflow policy.
// Stock never grows past models.MaxPillsRemaining.
func (e *Engine) AdjustStock(ctx context.Context, id string, delta int, policy storage.StockPolicy) (*models.Medicine, error) {
	var m *models.Medicine
	err := e.update(ctx, func(s storage.Store) error {
		if delta > 0 {
			current, err := s.GetMedicine(ctx, id)
			if err != nil {
				return err
			}
			if total := current.PillsRemaining + delta; total > models.MaxPillsRemaining {
				return models.NewValidationError("pills",
					fmt.Sprintf("would bring stock to %d; at most %d pills can be on hand", total, models.MaxPillsRemaining))
			}
		}
		var err error
		m, err = s.AdjustStock(ctx, id, delta, policy)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("stock adjusted", "medicine", id, "delta", delta, "policy", policy, "remaining", m.PillsRemaining)
	return m, nil
}
