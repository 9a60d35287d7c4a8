// ABOUTME: Engine ties the schedule store, dose ledger and clock together.
// ABOUTME: Every mutating call runs in exactly one storage transaction.
package engine

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/schedule"
	"github.com/harperreed/meds/internal/storage"
	"github.com/jonboulle/clockwork"
)

// Config holds engine settings. It is built once at startup and passed in.
type Config struct {
	// ReminderWindowMinutes is the default widening used by callers that do
	// not pass their own.
	ReminderWindowMinutes int
	// Location converts the clock's instants into calendar dates and times.
	Location *time.Location
}

// Engine is the medicine scheduling and dose-tracking core.
type Engine struct {
	repo   storage.Repository
	clock  clockwork.Clock
	logger *log.Logger
	cfg    Config
}

// New creates an Engine. A nil clock uses real time; a nil logger discards.
func New(repo storage.Repository, clock clockwork.Clock, logger *log.Logger, cfg Config) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.ReminderWindowMinutes <= 0 {
		cfg.ReminderWindowMinutes = schedule.DefaultReminderMinutes
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Engine{repo: repo, clock: clock, logger: logger, cfg: cfg}
}

// Now returns the current instant in the engine's location.
func (e *Engine) Now() time.Time {
	return e.clock.Now().In(e.cfg.Location)
}

// Today returns the current calendar date.
func (e *Engine) Today() models.Date {
	return models.DateOf(e.Now())
}

// ReminderWindow returns the configured default reminder window.
func (e *Engine) ReminderWindow() int {
	return e.cfg.ReminderWindowMinutes
}

// Location returns the location used for dates and wall-clock times.
func (e *Engine) Location() *time.Location {
	return e.cfg.Location
}

// view runs read-only work against the repository.
func (e *Engine) view(ctx context.Context, fn func(storage.Store) error) error {
	return e.repo.View(ctx, fn)
}

// update runs fn in one read-write transaction.
func (e *Engine) update(ctx context.Context, fn func(storage.Store) error) error {
	return e.repo.Update(ctx, fn)
}
