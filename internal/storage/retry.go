// ABOUTME: Bounded retry of transactions that lost a lock or a commit race.
// ABOUTME: Shared by the SQLite (busy/locked) and Badger (conflict) backends.
package storage

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/meds/internal/models"
)

// retryBackoff is the per-attempt linear backoff step. Each wait adds up to
// one step of jitter.
const retryBackoff = 20 * time.Millisecond

// withRetry runs fn until it succeeds, fails with a non-retryable error, or
// exhausts attempts. Exhaustion surfaces as a StorageError.
func withRetry(ctx context.Context, opts Options, op string, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= opts.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == opts.RetryAttempts {
			break
		}
		opts.Logger.Warn("transaction contended, retrying", "op", op, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt)*retryBackoff + rand.N(retryBackoff)):
		}
	}
	return &models.StorageError{Op: op, Err: err}
}

// wrapStorage tags raw backend errors as StorageError, leaving domain errors alone.
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *models.StorageError
	if errors.As(err, &se) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrConflict) ||
		errors.Is(err, models.ErrInsufficientStock) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &models.StorageError{Op: op, Err: err}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
