// ABOUTME: Data migration between medicine storage backends.
// ABOUTME: Copies medicines and the dose ledger from source to destination.

package storage

import (
	"context"
	"fmt"
	"os"
	"time"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Medicines int
	Doses     int
}

// MigrateData copies all data from src to dst storage. IDs and timestamps are
// preserved, so the destination should be empty before calling this function.
func MigrateData(ctx context.Context, src, dst Repository) (*MigrateSummary, error) {
	data, err := GetAllData(ctx, src, time.Now())
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	imported, err := ImportData(ctx, dst, data)
	if err != nil {
		return nil, fmt.Errorf("write destination: %w", err)
	}

	return &MigrateSummary{Medicines: imported.Medicines, Doses: imported.Doses}, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
