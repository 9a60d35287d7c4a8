// ABOUTME: Time window matcher: decides whether a medicine is due at a moment.
// ABOUTME: Pure functions over a medicine's schedule; no storage or clock access.
package schedule

import (
	"fmt"

	"github.com/harperreed/meds/internal/models"
)

// Reminder window bounds, in minutes.
const (
	MinReminderMinutes     = 1
	MaxReminderMinutes     = models.MinutesPerDay
	DefaultReminderMinutes = 30
)

// IsDue reports whether m should be shown at tod on date. The medicine's
// window is widened by reminderMinutes on both sides and compared inclusively.
// The widened interval stays on the same calendar date and never wraps past
// midnight. Active status and inventory are not considered here.
func IsDue(m *models.Medicine, date models.Date, tod models.TimeOfDay, reminderMinutes int) bool {
	if !m.ScheduledOn(date.Weekday()) {
		return false
	}

	lo := m.WindowStart.Minutes() - reminderMinutes
	hi := m.WindowEnd.Minutes() + reminderMinutes
	now := tod.Minutes()

	return lo <= now && now <= hi
}

// ClampReminderWindow normalizes a caller-supplied reminder window. Values
// above a full day are capped; zero and negatives are rejected.
func ClampReminderWindow(v int) (int, error) {
	if v < MinReminderMinutes {
		return 0, models.NewValidationError("reminder_window_minutes",
			fmt.Sprintf("must be at least %d, got %d", MinReminderMinutes, v))
	}
	if v > MaxReminderMinutes {
		return MaxReminderMinutes, nil
	}
	return v, nil
}

// ValidateReminderWindow rejects values outside [1, 1440].
func ValidateReminderWindow(v int) error {
	if v < MinReminderMinutes || v > MaxReminderMinutes {
		return models.NewValidationError("reminder_window_minutes",
			fmt.Sprintf("must be between %d and %d, got %d", MinReminderMinutes, MaxReminderMinutes, v))
	}
	return nil
}

// ExpectedSlots counts the dates in [start, end] on which m is scheduled.
// It returns 0 when start is after end.
func ExpectedSlots(m *models.Medicine, start, end models.Date) int {
	n := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if m.ScheduledOn(d.Weekday()) {
			n++
		}
	}
	return n
}
