// ABOUTME: Reminder loop: periodically announces due medicines and low stock.
// ABOUTME: Scheduled with gocron on the engine's clock; each slot is announced once.
package reminder

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/jonboulle/clockwork"
)

// Notifier receives reminders.
type Notifier interface {
	Due(ctx context.Context, date models.Date, pending []engine.PendingMedicine) error
	LowStock(ctx context.Context, date models.Date, low []engine.LowStockMedicine) error
}

// Options configures a Loop.
type Options struct {
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *log.Logger
}

type slotKey struct {
	medicineID string
	date       models.Date
	window     models.WindowLabel
}

// Loop polls the engine for due medicines and forwards new ones to a Notifier.
type Loop struct {
	eng      *engine.Engine
	notifier Notifier
	interval time.Duration
	clock    clockwork.Clock
	logger   *log.Logger

	mu           sync.Mutex
	announced    map[slotKey]struct{}
	lowStockDate models.Date

	scheduler gocron.Scheduler
}

// New creates a Loop. Interval defaults to one minute.
func New(eng *engine.Engine, notifier Notifier, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Loop{
		eng:       eng,
		notifier:  notifier,
		interval:  opts.Interval,
		clock:     opts.Clock,
		logger:    opts.Logger,
		announced: make(map[slotKey]struct{}),
	}
}

// Tick announces every due slot not announced before and returns how many
// were sent. The clock is read once so pending slots and their date agree.
func (l *Loop) Tick(ctx context.Context) (int, error) {
	now := l.eng.Now()
	today := models.DateOf(now)
	pending, err := l.eng.GetPendingMedicines(ctx, today, models.TimeOfDayOf(now), l.eng.ReminderWindow())
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	for k := range l.announced {
		if k.date != today {
			delete(l.announced, k)
		}
	}
	var fresh []engine.PendingMedicine
	for _, p := range pending {
		k := slotKey{medicineID: p.Medicine.ID, date: today, window: p.Medicine.WindowLabel}
		if _, ok := l.announced[k]; ok {
			continue
		}
		l.announced[k] = struct{}{}
		fresh = append(fresh, p)
	}
	l.mu.Unlock()

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := l.notifier.Due(ctx, today, fresh); err != nil {
		l.forget(today, fresh)
		return 0, fmt.Errorf("notify due: %w", err)
	}
	l.logger.Info("reminder sent", "date", today, "count", len(fresh))
	return len(fresh), nil
}

// forget un-marks slots whose notification failed so the next tick retries.
func (l *Loop) forget(date models.Date, pending []engine.PendingMedicine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range pending {
		delete(l.announced, slotKey{medicineID: p.Medicine.ID, date: date, window: p.Medicine.WindowLabel})
	}
}

// CheckLowStock reports low stock at most once per calendar day. It returns
// true when a report was sent.
func (l *Loop) CheckLowStock(ctx context.Context) (bool, error) {
	today := l.eng.Today()

	l.mu.Lock()
	done := l.lowStockDate == today
	l.mu.Unlock()
	if done {
		return false, nil
	}

	low, err := l.eng.GetLowStockMedicines(ctx)
	if err != nil {
		return false, err
	}
	if len(low) > 0 {
		if err := l.notifier.LowStock(ctx, today, low); err != nil {
			return false, fmt.Errorf("notify low stock: %w", err)
		}
		l.logger.Warn("low stock reported", "date", today, "count", len(low))
	}

	l.mu.Lock()
	l.lowStockDate = today
	l.mu.Unlock()
	return len(low) > 0, nil
}

// Start schedules both jobs and runs them immediately. Job errors are logged.
func (l *Loop) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler(
		gocron.WithClock(l.clock),
		gocron.WithLocation(l.eng.Location()),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	jobs := []struct {
		name string
		run  func()
	}{
		{"due", func() {
			if _, err := l.Tick(ctx); err != nil {
				l.logger.Error("reminder tick failed", "err", err)
			}
		}},
		{"low-stock", func() {
			if _, err := l.CheckLowStock(ctx); err != nil {
				l.logger.Error("low stock check failed", "err", err)
			}
		}},
	}

	for _, j := range jobs {
		_, err = s.NewJob(
			gocron.DurationJob(l.interval),
			gocron.NewTask(j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("schedule %s job: %w", j.name, err)
		}
	}

	s.Start()
	l.scheduler = s
	l.logger.Info("reminder loop started", "interval", l.interval)
	return nil
}

// Stop shuts the scheduler down and waits for running jobs.
func (l *Loop) Stop() error {
	if l.scheduler == nil {
		return nil
	}
	err := l.scheduler.Shutdown()
	l.scheduler = nil
	return err
}

// Run starts the loop and blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return l.Stop()
}
