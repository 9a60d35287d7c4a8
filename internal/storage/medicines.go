// ABOUTME: Medicine CRUD operations for SQLite storage.
// ABOUTME: Implements the schedule half of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/meds/internal/models"
)

const medicineColumns = `id, name, dosage, window_label, window_start, window_end, active_days,
	with_food, notes, pills_remaining, pills_per_dose, low_stock_threshold, active,
	created_at, updated_at`

// CreateMedicine stores a new medicine, assigning an ID when none is set.
func (s *sqlStore) CreateMedicine(ctx context.Context, m *models.Medicine) error {
	if m.ID == "" {
		m.ID = models.NewMedicineID()
	} else {
		var exists int
		err := s.q.QueryRowContext(ctx, `SELECT 1 FROM medicines WHERE id = ?`, m.ID).Scan(&exists)
		if err == nil {
			return fmt.Errorf("medicine %s: %w", m.ID, models.ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
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

	query := `INSERT INTO medicines (` + medicineColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.q.ExecContext(ctx, query,
		m.ID,
		m.Name,
		m.Dosage,
		string(m.WindowLabel),
		m.WindowStart.Minutes(),
		m.WindowEnd.Minutes(),
		m.DaysString(),
		m.WithFood,
		nullString(m.Notes),
		m.PillsRemaining,
		m.PillsPerDose,
		m.LowStockThreshold,
		m.Active,
		formatTime(m.CreatedAt),
		formatTime(m.UpdatedAt),
	)
	if err != nil {
		return wrapStorage("create medicine", err)
	}
	return nil
}

// GetMedicine retrieves a medicine by exact ID.
func (s *sqlStore) GetMedicine(ctx context.Context, id string) (*models.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = ?`
	m, err := scanMedicine(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("medicine %s: %w", id, models.ErrNotFound)
		}
		return nil, wrapStorage("get medicine", err)
	}
	return m, nil
}

// UpdateMedicine replaces every mutable field of an existing medicine.
func (s *sqlStore) UpdateMedicine(ctx context.Context, m *models.Medicine) error {
	m.UpdatedAt = s.opts.Clock.Now()

	query := `
		UPDATE medicines SET
			name = ?, dosage = ?, window_label = ?, window_start = ?, window_end = ?,
			active_days = ?, with_food = ?, notes = ?, pills_remaining = ?,
			pills_per_dose = ?, low_stock_threshold = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.q.ExecContext(ctx, query,
		m.Name,
		m.Dosage,
		string(m.WindowLabel),
		m.WindowStart.Minutes(),
		m.WindowEnd.Minutes(),
		m.DaysString(),
		m.WithFood,
		nullString(m.Notes),
		m.PillsRemaining,
		m.PillsPerDose,
		m.LowStockThreshold,
		m.Active,
		formatTime(m.UpdatedAt),
		m.ID,
	)
	if err != nil {
		return wrapStorage("update medicine", err)
	}
	return requireAffected(result, "update medicine", m.ID)
}

// DeleteMedicine removes a medicine. Its dose history is kept.
func (s *sqlStore) DeleteMedicine(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM medicines WHERE id = ?", id)
	if err != nil {
		return wrapStorage("delete medicine", err)
	}
	return requireAffected(result, "delete medicine", id)
}

// ListMedicines returns medicines ordered by name.
func (s *sqlStore) ListMedicines(ctx context.Context, filter MedicineFilter) ([]*models.Medicine, error) {
	var where []string
	var args []interface{}

	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}
	if filter.WindowLabel != nil {
		where = append(where, "window_label = ?")
		args = append(args, string(*filter.WindowLabel))
	}

	query := `SELECT ` + medicineColumns + ` FROM medicines`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name COLLATE NOCASE, id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage("list medicines", err)
	}
	defer rows.Close()

	return scanMedicines(rows)
}

// AdjustStock changes pills_remaining by delta under the given policy.
func (s *sqlStore) AdjustStock(ctx context.Context, id string, delta int, policy StockPolicy) (*models.Medicine, error) {
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
	_, err = s.q.ExecContext(ctx,
		`UPDATE medicines SET pills_remaining = ?, updated_at = ? WHERE id = ?`,
		m.PillsRemaining, formatTime(m.UpdatedAt), id)
	if err != nil {
		return nil, wrapStorage("adjust stock", err)
	}
	return m, nil
}

// ResolveMedicineID finds the full ID from an exact ID or a unique prefix.
func (s *sqlStore) ResolveMedicineID(ctx context.Context, idOrPrefix string) (string, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return "", models.NewValidationError("id", "required")
	}

	var exact string
	err := s.q.QueryRowContext(ctx, `SELECT id FROM medicines WHERE id = ?`, idOrPrefix).Scan(&exact)
	if err == nil {
		return exact, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", wrapStorage("resolve medicine ID", err)
	}

	// Search by prefix
	query := `SELECT id FROM medicines WHERE id LIKE ? || '%' ESCAPE '\'`
	rows, err := s.q.QueryContext(ctx, query, escapeLike(idOrPrefix))
	if err != nil {
		return "", wrapStorage("resolve medicine ID", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", wrapStorage("scan medicine ID", err)
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", wrapStorage("resolve medicine ID", err)
	}

	return pickMatch(idOrPrefix, matches)
}

// pickMatch applies the prefix-resolution rules shared by both backends.
func pickMatch(idOrPrefix string, matches []string) (string, error) {
	if len(matches) == 0 {
		return "", fmt.Errorf("medicine %s: %w", idOrPrefix, models.ErrNotFound)
	}
	if len(matches) > 1 {
		return "", models.NewValidationError("id",
			fmt.Sprintf("ambiguous prefix %s: matches %d medicines", idOrPrefix, len(matches)))
	}
	return matches[0], nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMedicine scans a single row into a Medicine struct.
func scanMedicine(row rowScanner) (*models.Medicine, error) {
	var m models.Medicine
	var label, days, createdAt, updatedAt string
	var start, end int
	var notes sql.NullString

	err := row.Scan(&m.ID, &m.Name, &m.Dosage, &label, &start, &end, &days,
		&m.WithFood, &notes, &m.PillsRemaining, &m.PillsPerDose, &m.LowStockThreshold,
		&m.Active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.WindowLabel = models.WindowLabel(label)
	m.WindowStart = models.TimeOfDay(start)
	m.WindowEnd = models.TimeOfDay(end)
	m.ActiveDays = models.ParseDays(days)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	if notes.Valid {
		m.Notes = notes.String
	}

	return &m, nil
}

// scanMedicines scans multiple rows into a slice of Medicines.
func scanMedicines(rows *sql.Rows) ([]*models.Medicine, error) {
	var medicines []*models.Medicine

	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, wrapStorage("scan medicine", err)
		}
		medicines = append(medicines, m)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStorage("scan medicines", err)
	}
	return medicines, nil
}

func requireAffected(result sql.Result, op, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapStorage(op, err)
	}
	if affected == 0 {
		return fmt.Errorf("medicine %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
