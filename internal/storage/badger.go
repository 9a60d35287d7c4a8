// ABOUTME: Badger key-value backend for the medicine store and dose ledger.
// ABOUTME: Records are JSON values under natural keys; Set on a dose key is the upsert.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/meds/internal/models"
)

const (
	medicinePrefix = "med/"
	dosePrefix     = "dose/"
)

// BadgerDB is a file-backed Badger repository.
type BadgerDB struct {
	db   *badger.DB
	dir  string
	opts Options
}

type badgerStore struct {
	txn  *badger.Txn
	opts Options
}

// OpenBadger opens or creates a Badger database in dir.
func OpenBadger(dir string, opts Options) (*BadgerDB, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerDB{db: db, dir: dir, opts: opts.withDefaults()}, nil
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Update runs fn in a serializable read-write transaction, retrying on
// commit conflicts.
func (b *BadgerDB) Update(ctx context.Context, fn func(Store) error) error {
	return withRetry(ctx, b.opts, "update", isConflict, func() error {
		err := b.db.Update(func(txn *badger.Txn) error {
			return fn(&badgerStore{txn: txn, opts: b.opts})
		})
		if errors.Is(err, badger.ErrConflict) {
			return err
		}
		return wrapStorage("update", err)
	})
}

// View runs fn in a read-only snapshot.
func (b *BadgerDB) View(ctx context.Context, fn func(Store) error) error {
	err := b.db.View(func(txn *badger.Txn) error {
		return fn(&badgerStore{txn: txn, opts: b.opts})
	})
	return wrapStorage("view", err)
}

func isConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}

func medicineKey(id string) []byte {
	return []byte(medicinePrefix + id)
}

func doseKey(medicineID string, date models.Date, label models.WindowLabel) []byte {
	return []byte(dosePrefix + date.String() + "/" + medicineID + "/" + string(label))
}

func (s *badgerStore) getJSON(key []byte, v any) error {
	item, err := s.txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (s *badgerStore) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.txn.Set(key, data)
}

// scan calls fn with every value under prefix.
func (s *badgerStore) scan(prefix string, fn func(val []byte) error) error {
	it := s.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// CreateMedicine stores a new medicine, assigning an ID when none is set.
func (s *badgerStore) CreateMedicine(ctx context.Context, m *models.Medicine) error {
	if m.ID == "" {
		m.ID = models.NewMedicineID()
	} else {
		_, err := s.txn.Get(medicineKey(m.ID))
		if err == nil {
			return fmt.Errorf("medicine %s: %w", m.ID, models.ErrConflict)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return wrapStorage("create medicine", err)
		}
	}

	now := s.opts.Clock.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}

	if err := s.setJSON(medicineKey(m.ID), m); err != nil {
		return wrapStorage("create medicine", err)
	}
	return nil
}

// GetMedicine retrieves a medicine by exact ID.
func (s *badgerStore) GetMedicine(ctx context.Context, id string) (*models.Medicine, error) {
	var m models.Medicine
	if err := s.getJSON(medicineKey(id), &m); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("medicine %s: %w", id, models.ErrNotFound)
		}
		return nil, wrapStorage("get medicine", err)
	}
	return &m, nil
}

// UpdateMedicine replaces every mutable field of an existing medicine.
func (s *badgerStore) UpdateMedicine(ctx context.Context, m *models.Medicine) error {
	existing, err := s.GetMedicine(ctx, m.ID)
	if err != nil {
		return err
	}

	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = s.opts.Clock.Now()
	if err := s.setJSON(medicineKey(m.ID), m); err != nil {
		return wrapStorage("update medicine", err)
	}
	return nil
}

// DeleteMedicine removes a medicine. Its dose history is kept.
func (s *badgerStore) DeleteMedicine(ctx context.Context, id string) error {
	if _, err := s.GetMedicine(ctx, id); err != nil {
		return err
	}
	if err := s.txn.Delete(medicineKey(id)); err != nil {
		return wrapStorage("delete medicine", err)
	}
	return nil
}

// ListMedicines returns medicines ordered by name.
func (s *badgerStore) ListMedicines(ctx context.Context, filter MedicineFilter) ([]*models.Medicine, error) {
	var medicines []*models.Medicine
	err := s.scan(medicinePrefix, func(val []byte) error {
		var m models.Medicine
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		if filter.matches(&m) {
			medicines = append(medicines, &m)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage("list medicines", err)
	}

	sort.SliceStable(medicines, func(i, j int) bool {
		a, b := strings.ToLower(medicines[i].Name), strings.ToLower(medicines[j].Name)
		if a != b {
			return a < b
		}
		return medicines[i].ID < medicines[j].ID
	})
	return medicines, nil
}

// AdjustStock changes pills_remaining by delta under the given policy.
func (s *badgerStore) AdjustStock(ctx context.Context, id string, delta int, policy StockPolicy) (*models.Medicine, error) {
	m, err := s.GetMedicine(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := applyStock(m.PillsRemaining, delta, policy)
	if err != nil {
		return nil, fmt.Errorf("medicine %s has %d pills, cannot remove %d: %w",
			id, m.PillsRemaining, -delta, err)
	}

	m.PillsRemaining = next
	m.UpdatedAt = s.opts.Clock.Now()
	if err := s.setJSON(medicineKey(id), m); err != nil {
		return nil, wrapStorage("adjust stock", err)
	}
	return m, nil
}

// ResolveMedicineID finds the full ID from an exact ID or a unique prefix.
func (s *badgerStore) ResolveMedicineID(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", models.NewValidationError("id", "required")
	}

	if _, err := s.txn.Get(medicineKey(idOrPrefix)); err == nil {
		return idOrPrefix, nil
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return "", wrapStorage("resolve medicine ID", err)
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := s.txn.NewIterator(opts)
	defer it.Close()

	var matches []string
	p := medicineKey(idOrPrefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		matches = append(matches, strings.TrimPrefix(string(it.Item().Key()), medicinePrefix))
	}

	return pickMatch(idOrPrefix, matches)
}

// UpsertDose writes the latest resolution for a slot under its natural key.
func (s *badgerStore) UpsertDose(ctx context.Context, e *models.DoseEvent) (*models.DoseEvent, error) {
	if err := e.ValidateResolution(); err != nil {
		return nil, err
	}

	key := doseKey(e.MedicineID, e.Date, e.WindowLabel)
	now := s.opts.Clock.Now()

	var existing models.DoseEvent
	err := s.getJSON(key, &existing)
	switch {
	case err == nil:
		e.CreatedAt = existing.CreatedAt
	case errors.Is(err, badger.ErrKeyNotFound):
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	default:
		return nil, wrapStorage("upsert dose", err)
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	rec := *e
	rec.MedicineName = ""
	if err := s.setJSON(key, &rec); err != nil {
		return nil, wrapStorage("upsert dose", err)
	}

	return s.GetDose(ctx, e.MedicineID, e.Date, e.WindowLabel)
}

// GetDose returns the ledger record for a slot.
func (s *badgerStore) GetDose(ctx context.Context, medicineID string, date models.Date, label models.WindowLabel) (*models.DoseEvent, error) {
	var e models.DoseEvent
	if err := s.getJSON(doseKey(medicineID, date, label), &e); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("dose %s: %w", models.DoseKey(medicineID, date, label), models.ErrNotFound)
		}
		return nil, wrapStorage("get dose", err)
	}
	s.fillName(ctx, &e, nil)
	return &e, nil
}

// QueryDoses returns a page of ledger records, newest date first.
func (s *badgerStore) QueryDoses(ctx context.Context, filter DoseFilter) (*DosePage, error) {
	var all []*models.DoseEvent
	err := s.scan(dosePrefix, func(val []byte) error {
		var e models.DoseEvent
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if filter.matches(&e) {
			all = append(all, &e)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStorage("query doses", err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c > 0
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if a.MedicineID != b.MedicineID {
			return a.MedicineID < b.MedicineID
		}
		return a.WindowLabel < b.WindowLabel
	})

	page, perPage, offset, limit := filter.window()
	items := all
	if offset >= len(items) {
		items = nil
	} else {
		items = items[offset:]
		if limit >= 0 && limit < len(items) {
			items = items[:limit]
		}
	}

	names := make(map[string]string)
	for _, e := range items {
		s.fillName(ctx, e, names)
	}

	return &DosePage{Items: items, Total: len(all), Page: page, PerPage: perPage}, nil
}

// fillName sets MedicineName when the medicine still exists.
func (s *badgerStore) fillName(ctx context.Context, e *models.DoseEvent, cache map[string]string) {
	if cache != nil {
		if name, ok := cache[e.MedicineID]; ok {
			e.MedicineName = name
			return
		}
	}
	name := ""
	if m, err := s.GetMedicine(ctx, e.MedicineID); err == nil {
		name = m.Name
	}
	e.MedicineName = name
	if cache != nil {
		cache[e.MedicineID] = name
	}
}
