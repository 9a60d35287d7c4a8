// ABOUTME: Medicine CRUD on the engine: validated specs, merged patches, prefix lookup.
// ABOUTME: Input is checked before it reaches the store; invalid records never persist.
package engine

import (
	"context"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
)

// MedicineSpec is the caller-facing shape of a medicine.
type MedicineSpec = models.MedicineSpec

// MedicinePatch changes only the fields that are set.
type MedicinePatch struct {
	Name              *string
	Dosage            *string
	WindowLabel       *string
	WindowStart       *string
	WindowEnd         *string
	ActiveDays        []string
	WithFood          *bool
	Notes             *string
	PillsRemaining    *int
	PillsPerDose      *int
	LowStockThreshold *int
	Active            *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p MedicinePatch) IsEmpty() bool {
	return p.Name == nil && p.Dosage == nil && p.WindowLabel == nil &&
		p.WindowStart == nil && p.WindowEnd == nil && p.ActiveDays == nil &&
		p.WithFood == nil && p.Notes == nil && p.PillsRemaining == nil &&
		p.PillsPerDose == nil && p.LowStockThreshold == nil && p.Active == nil
}

func (p MedicinePatch) apply(s *MedicineSpec) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Dosage != nil {
		s.Dosage = *p.Dosage
	}
	if p.WindowLabel != nil {
		s.WindowLabel = *p.WindowLabel
	}
	if p.WindowStart != nil {
		s.WindowStart = *p.WindowStart
	}
	if p.WindowEnd != nil {
		s.WindowEnd = *p.WindowEnd
	}
	if p.ActiveDays != nil {
		s.ActiveDays = p.ActiveDays
	}
	if p.WithFood != nil {
		s.WithFood = *p.WithFood
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	if p.PillsRemaining != nil {
		s.PillsRemaining = *p.PillsRemaining
	}
	if p.PillsPerDose != nil {
		s.PillsPerDose = *p.PillsPerDose
	}
	if p.LowStockThreshold != nil {
		s.LowStockThreshold = *p.LowStockThreshold
	}
	if p.Active != nil {
		s.Active = p.Active
	}
}

// CreateMedicine validates spec and stores a new medicine.
func (e *Engine) CreateMedicine(ctx context.Context, spec MedicineSpec) (*models.Medicine, error) {
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	m := &models.Medicine{ID: spec.ID}
	spec.ApplyTo(m)

	err := e.update(ctx, func(s storage.Store) error {
		return s.CreateMedicine(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("medicine created", "id", m.ID, "name", m.Name, "window", m.WindowLabel)
	return m, nil
}

// GetMedicine returns a medicine by exact ID.
func (e *Engine) GetMedicine(ctx context.Context, id string) (*models.Medicine, error) {
	var m *models.Medicine
	err := e.view(ctx, func(s storage.Store) error {
		var err error
		m, err = s.GetMedicine(ctx, id)
		return err
	})
	return m, err
}

// UpdateMedicine merges patch onto the stored medicine, re-validates the
// result, and writes it back.
func (e *Engine) UpdateMedicine(ctx context.Context, id string, patch MedicinePatch) (*models.Medicine, error) {
	var m *models.Medicine
	err := e.update(ctx, func(s storage.Store) error {
		current, err := s.GetMedicine(ctx, id)
		if err != nil {
			return err
		}

		spec := models.SpecFromMedicine(current)
		patch.apply(&spec)
		spec.Normalize()
		if err := spec.Validate(); err != nil {
			return err
		}

		spec.ApplyTo(current)
		if err := s.UpdateMedicine(ctx, current); err != nil {
			return err
		}
		m = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("medicine updated", "id", m.ID, "name", m.Name)
	return m, nil
}

// DeleteMedicine removes a medicine. Dose history is retained.
func (e *Engine) DeleteMedicine(ctx context.Context, id string) error {
	err := e.update(ctx, func(s storage.Store) error {
		return s.DeleteMedicine(ctx, id)
	})
	if err != nil {
		return err
	}

	e.logger.Info("medicine deleted", "id", id)
	return nil
}

// ListMedicines returns medicines ordered by name.
func (e *Engine) ListMedicines(ctx context.Context, filter storage.MedicineFilter) ([]*models.Medicine, error) {
	var meds []*models.Medicine
	err := e.view(ctx, func(s storage.Store) error {
		var err error
		meds, err = s.ListMedicines(ctx, filter)
		return err
	})
	return meds, err
}

// ResolveMedicineID expands a unique ID prefix to the full ID.
func (e *Engine) ResolveMedicineID(ctx context.Context, idOrPrefix string) (string, error) {
	var id string
	err := e.view(ctx, func(s storage.Store) error {
		var err error
		id, err = s.ResolveMedicineID(ctx, idOrPrefix)
		return err
	})
	return id, err
}
