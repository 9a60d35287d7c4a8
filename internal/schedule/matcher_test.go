// ABOUTME: Tests for the time window matcher.
// ABOUTME: Covers boundary inclusion, weekday gating, midnight clipping and clamping.
package schedule

import (
	"errors"
	"testing"

	"github.com/harperreed/meds/internal/models"
)

func morningMed() *models.Medicine {
	return &models.Medicine{
		ID:          "med_test",
		Name:        "Test",
		WindowLabel: models.WindowMorning,
		WindowStart: models.MustTimeOfDay("08:00"),
		WindowEnd:   models.MustTimeOfDay("09:00"),
		ActiveDays:  []models.Weekday{models.Monday, models.Wednesday, models.Friday},
		Active:      true,
	}
}

func TestIsDue(t *testing.T) {
	// 2024-01-01 is a Monday, 2024-01-02 a Tuesday.
	monday := models.MustDate("2024-01-01")
	tuesday := models.MustDate("2024-01-02")

	tests := []struct {
		name     string
		date     models.Date
		at       string
		reminder int
		want     bool
	}{
		{"inside window", monday, "08:30", 30, true},
		{"lower bound inclusive", monday, "07:30", 30, true},
		{"upper bound inclusive", monday, "09:30", 30, true},
		{"just before", monday, "07:29", 30, false},
		{"just after", monday, "09:31", 30, false},
		{"inactive weekday", tuesday, "08:30", 30, false},
		{"tiny reminder", monday, "07:59", 1, true},
		{"tiny reminder miss", monday, "07:58", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsDue(morningMed(), tt.date, models.MustTimeOfDay(tt.at), tt.reminder)
			if got != tt.want {
				t.Errorf("IsDue(%s %s, %d) = %v, want %v", tt.date, tt.at, tt.reminder, got, tt.want)
			}
		})
	}
}

func TestIsDueDoesNotWrapMidnight(t *testing.T) {
	m := morningMed()
	m.WindowLabel = models.WindowNight
	m.WindowStart = models.MustTimeOfDay("23:00")
	m.WindowEnd = models.MustTimeOfDay("23:50")
	m.ActiveDays = models.AllWeekdays

	tuesday := models.MustDate("2024-01-02")
	if IsDue(m, tuesday, models.MustTimeOfDay("00:10"), 30) {
		t.Error("00:10 should not match a 23:00-23:50 window widened by 30 minutes")
	}
	if !IsDue(m, tuesday, models.MustTimeOfDay("23:59"), 30) {
		t.Error("23:59 should match a 23:00-23:50 window widened by 30 minutes")
	}
}

func TestIsDueFullDayReminder(t *testing.T) {
	monday := models.MustDate("2024-01-01")
	for _, at := range []string{"00:00", "12:00", "23:59"} {
		if !IsDue(morningMed(), monday, models.MustTimeOfDay(at), MaxReminderMinutes) {
			t.Errorf("IsDue at %s with 1440 minutes = false, want true", at)
		}
	}
}

func TestClampReminderWindow(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{30, 30, false},
		{1, 1, false},
		{1440, 1440, false},
		{5000, 1440, false},
		{0, 0, true},
		{-5, 0, true},
	}

	for _, tt := range tests {
		got, err := ClampReminderWindow(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ClampReminderWindow(%d) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, models.ErrValidation) {
			t.Errorf("ClampReminderWindow(%d) error = %v, want ErrValidation", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ClampReminderWindow(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValidateReminderWindow(t *testing.T) {
	for _, v := range []int{0, -1, 1441} {
		if err := ValidateReminderWindow(v); !errors.Is(err, models.ErrValidation) {
			t.Errorf("ValidateReminderWindow(%d) = %v, want ErrValidation", v, err)
		}
	}
	for _, v := range []int{1, 30, 1440} {
		if err := ValidateReminderWindow(v); err != nil {
			t.Errorf("ValidateReminderWindow(%d) = %v, want nil", v, err)
		}
	}
}

func TestExpectedSlots(t *testing.T) {
	m := morningMed()
	// Mon 2024-01-01 through Sun 2024-01-07 covers one Mon, Wed and Fri.
	if got := ExpectedSlots(m, models.MustDate("2024-01-01"), models.MustDate("2024-01-07")); got != 3 {
		t.Errorf("ExpectedSlots(week) = %d, want 3", got)
	}
	if got := ExpectedSlots(m, models.MustDate("2024-01-02"), models.MustDate("2024-01-02")); got != 0 {
		t.Errorf("ExpectedSlots(tuesday) = %d, want 0", got)
	}
	if got := ExpectedSlots(m, models.MustDate("2024-01-07"), models.MustDate("2024-01-01")); got != 0 {
		t.Errorf("ExpectedSlots(reversed) = %d, want 0", got)
	}
}
