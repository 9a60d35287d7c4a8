// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines tables for medicines and the dose_events ledger.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	// dose_events has no foreign key to medicines: history outlives deletion.
	schema := `
	CREATE TABLE IF NOT EXISTS medicines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dosage TEXT NOT NULL,
		window_label TEXT NOT NULL,
		window_start INTEGER NOT NULL,
		window_end INTEGER NOT NULL,
		active_days TEXT NOT NULL,
		with_food INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		pills_remaining INTEGER NOT NULL DEFAULT 0,
		pills_per_dose INTEGER NOT NULL DEFAULT 1,
		low_stock_threshold INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (window_start < window_end),
		CHECK (pills_remaining >= 0)
	);

	CREATE TABLE IF NOT EXISTS dose_events (
		medicine_id TEXT NOT NULL,
		date TEXT NOT NULL,
		window_label TEXT NOT NULL,
		taken INTEGER NOT NULL DEFAULT 0,
		taken_at TEXT,
		skipped INTEGER NOT NULL DEFAULT 0,
		skip_reason TEXT,
		skip_at TEXT,
		pills_taken INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (medicine_id, date, window_label),
		CHECK (NOT (taken = 1 AND skipped = 1))
	);

	CREATE INDEX IF NOT EXISTS idx_medicines_name ON medicines(name);
	CREATE INDEX IF NOT EXISTS idx_medicines_active ON medicines(active);
	CREATE INDEX IF NOT EXISTS idx_dose_events_date ON dose_events(date DESC, updated_at DESC);
	`

	_, err := d.db.Exec(schema)
	return err
}
