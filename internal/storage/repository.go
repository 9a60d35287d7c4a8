// ABOUTME: Repository interface for medicine schedules and the dose ledger.
// ABOUTME: Backends expose a transaction-scoped Store through Update and View.
package storage

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/meds/internal/models"
	"github.com/jonboulle/clockwork"
)

// Store is the set of persistence operations available inside one transaction.
type Store interface {
	// Medicine operations
	CreateMedicine(ctx context.Context, m *models.Medicine) error
	GetMedicine(ctx context.Context, id string) (*models.Medicine, error)
	UpdateMedicine(ctx context.Context, m *models.Medicine) error
	DeleteMedicine(ctx context.Context, id string) error
	ListMedicines(ctx context.Context, filter MedicineFilter) ([]*models.Medicine, error)
	AdjustStock(ctx context.Context, id string, delta int, policy StockPolicy) (*models.Medicine, error)
	ResolveMedicineID(ctx context.Context, idOrPrefix string) (string, error)

	// Dose ledger operations
	UpsertDose(ctx context.Context, e *models.DoseEvent) (*models.DoseEvent, error)
	GetDose(ctx context.Context, medicineID string, date models.Date, label models.WindowLabel) (*models.DoseEvent, error)
	QueryDoses(ctx context.Context, filter DoseFilter) (*DosePage, error)
}

// Repository defines the storage backend contract.
// This interface allows swapping implementations (SQLite, Badger, test doubles).
type Repository interface {
	// Update runs fn in one read-write transaction. Any error rolls back
	// every write fn made.
	Update(ctx context.Context, fn func(Store) error) error
	// View runs read-only work.
	View(ctx context.Context, fn func(Store) error) error
	Close() error
}

// MedicineFilter narrows ListMedicines. Nil fields do not filter.
type MedicineFilter struct {
	Active      *bool
	WindowLabel *models.WindowLabel
}

func (f MedicineFilter) matches(m *models.Medicine) bool {
	if f.Active != nil && m.Active != *f.Active {
		return false
	}
	if f.WindowLabel != nil && m.WindowLabel != *f.WindowLabel {
		return false
	}
	return true
}

// StockPolicy decides what AdjustStock does when a decrement would go below zero.
type StockPolicy int

const (
	// ClampAtZero stores zero instead of a negative count.
	ClampAtZero StockPolicy = iota
	// RejectUnderflow fails with ErrInsufficientStock and writes nothing.
	RejectUnderflow
)

func (p StockPolicy) String() string {
	switch p {
	case ClampAtZero:
		return "clamp"
	case RejectUnderflow:
		return "reject"
	default:
		return "unknown"
	}
}

// applyStock computes the new pill count under policy.
func applyStock(current, delta int, policy StockPolicy) (int, error) {
	next := current + delta
	if next >= 0 {
		return next, nil
	}
	if policy == RejectUnderflow {
		return current, models.ErrInsufficientStock
	}
	return 0, nil
}

// DoseStatusFilter selects doses by resolution.
type DoseStatusFilter string

const (
	StatusAny     DoseStatusFilter = ""
	StatusTaken   DoseStatusFilter = "taken"
	StatusSkipped DoseStatusFilter = "skipped"
)

// Paging defaults for QueryDoses.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// DoseFilter narrows QueryDoses. Start and End are inclusive.
// A negative PerPage returns every matching row.
type DoseFilter struct {
	MedicineID string
	Start      *models.Date
	End        *models.Date
	Status     DoseStatusFilter
	Page       int
	PerPage    int
}

func (f DoseFilter) matches(e *models.DoseEvent) bool {
	if f.MedicineID != "" && e.MedicineID != f.MedicineID {
		return false
	}
	if f.Start != nil && e.Date.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.Date.After(*f.End) {
		return false
	}
	switch f.Status {
	case StatusTaken:
		return e.Taken
	case StatusSkipped:
		return e.Skipped
	}
	return true
}

// window returns the normalized page, page size, and row offset.
// limit is -1 when every row is wanted.
func (f DoseFilter) window() (page, perPage, offset, limit int) {
	page = f.Page
	if page < 1 {
		page = 1
	}
	perPage = f.PerPage
	switch {
	case perPage < 0:
		return 1, -1, 0, -1
	case perPage == 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return page, perPage, (page - 1) * perPage, perPage
}

// DosePage is one page of dose history.
type DosePage struct {
	Items   []*models.DoseEvent `json:"items"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
}

// Options configures a storage backend.
type Options struct {
	Clock         clockwork.Clock
	RetryAttempts int
	Logger        *log.Logger
}

// DefaultRetryAttempts bounds retries of busy or conflicting transactions.
const DefaultRetryAttempts = 5

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.Logger == nil {
		o.Logger = discardLogger()
	}
	return o
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
