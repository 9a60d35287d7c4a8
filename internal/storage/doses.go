// ABOUTME: Dose ledger operations for SQLite storage.
// ABOUTME: One row per (medicine, date, window), written with an upsert.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/meds/internal/models"
)

const doseColumns = `d.medicine_id, d.date, d.window_label, d.taken, d.taken_at, d.skipped,
	d.skip_reason, d.skip_at, d.pills_taken, d.created_at, d.updated_at, m.name`

// UpsertDose writes the latest resolution for a slot, creating the row when
// absent. Concurrent callers converge on one row per natural key.
func (s *sqlStore) UpsertDose(ctx context.Context, e *models.DoseEvent) (*models.DoseEvent, error) {
	if err := e.ValidateResolution(); err != nil {
		return nil, err
	}

	now := s.opts.Clock.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	query := `
		INSERT INTO dose_events (medicine_id, date, window_label, taken, taken_at, skipped,
			skip_reason, skip_at, pills_taken, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (medicine_id, date, window_label) DO UPDATE SET
			taken = excluded.taken,
			taken_at = excluded.taken_at,
			skipped = excluded.skipped,
			skip_reason = excluded.skip_reason,
			skip_at = excluded.skip_at,
			pills_taken = excluded.pills_taken,
			updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query,
		e.MedicineID,
		e.Date.String(),
		string(e.WindowLabel),
		e.Taken,
		nullTime(e.TakenAt),
		e.Skipped,
		nullString(string(e.SkipReason)),
		nullTime(e.SkipAt),
		e.PillsTaken,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		return nil, wrapStorage("upsert dose", err)
	}

	return s.GetDose(ctx, e.MedicineID, e.Date, e.WindowLabel)
}

// GetDose returns the ledger row for a slot.
func (s *sqlStore) GetDose(ctx context.Context, medicineID string, date models.Date, label models.WindowLabel) (*models.DoseEvent, error) {
	query := `
		SELECT ` + doseColumns + `
		FROM dose_events d LEFT JOIN medicines m ON m.id = d.medicine_id
		WHERE d.medicine_id = ? AND d.date = ? AND d.window_label = ?
	`
	e, err := scanDose(s.q.QueryRowContext(ctx, query, medicineID, date.String(), string(label)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dose %s: %w", models.DoseKey(medicineID, date, label), models.ErrNotFound)
		}
		return nil, wrapStorage("get dose", err)
	}
	return e, nil
}

// QueryDoses returns a page of ledger rows, newest date first.
func (s *sqlStore) QueryDoses(ctx context.Context, filter DoseFilter) (*DosePage, error) {
	var where []string
	var args []interface{}

	if filter.MedicineID != "" {
		where = append(where, "d.medicine_id = ?")
		args = append(args, filter.MedicineID)
	}
	if filter.Start != nil {
		where = append(where, "d.date >= ?")
		args = append(args, filter.Start.String())
	}
	if filter.End != nil {
		where = append(where, "d.date <= ?")
		args = append(args, filter.End.String())
	}
	switch filter.Status {
	case StatusTaken:
		where = append(where, "d.taken = 1")
	case StatusSkipped:
		where = append(where, "d.skipped = 1")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page, perPage, offset, limit := filter.window()

	var total int
	countQuery := `SELECT COUNT(*) FROM dose_events d` + clause
	if err := s.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, wrapStorage("count doses", err)
	}

	query := `SELECT ` + doseColumns + `
		FROM dose_events d LEFT JOIN medicines m ON m.id = d.medicine_id` + clause + `
		ORDER BY d.date DESC, d.updated_at DESC, d.medicine_id, d.window_label
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage("query doses", err)
	}
	defer rows.Close()

	items, err := scanDoses(rows)
	if err != nil {
		return nil, err
	}

	return &DosePage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// scanDose scans a single row into a DoseEvent struct.
func scanDose(row rowScanner) (*models.DoseEvent, error) {
	var e models.DoseEvent
	var date, label, createdAt, updatedAt string
	var takenAt, skipReason, skipAt, name sql.NullString

	err := row.Scan(&e.MedicineID, &date, &label, &e.Taken, &takenAt, &e.Skipped,
		&skipReason, &skipAt, &e.PillsTaken, &createdAt, &updatedAt, &name)
	if err != nil {
		return nil, err
	}

	e.Date, err = models.ParseDate(date)
	if err != nil {
		return nil, err
	}
	e.WindowLabel = models.WindowLabel(label)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	if takenAt.Valid {
		t := parseTime(takenAt.String)
		e.TakenAt = &t
	}
	if skipAt.Valid {
		t := parseTime(skipAt.String)
		e.SkipAt = &t
	}
	if skipReason.Valid {
		e.SkipReason = models.SkipReason(skipReason.String)
	}
	if name.Valid {
		e.MedicineName = name.String
	}

	return &e, nil
}

// scanDoses scans multiple rows into a slice of DoseEvents.
func scanDoses(rows *sql.Rows) ([]*models.DoseEvent, error) {
	var doses []*models.DoseEvent

	for rows.Next() {
		e, err := scanDose(rows)
		if err != nil {
			return nil, wrapStorage("scan dose", err)
		}
		doses = append(doses, e)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStorage("scan doses", err)
	}
	return doses, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
