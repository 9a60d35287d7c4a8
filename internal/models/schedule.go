// ABOUTME: Calendar and clock primitives used by medicine schedules.
// ABOUTME: Defines WindowLabel, Weekday, TimeOfDay (HH:MM) and Date (YYYY-MM-DD).
package models

import (
	"fmt"
	"time"
)

// WindowLabel names the recurring period a medicine is taken in.
type WindowLabel string

const (
	WindowMorning   WindowLabel = "morning"
	WindowAfternoon WindowLabel = "afternoon"
	WindowEvening   WindowLabel = "evening"
	WindowNight     WindowLabel = "night"
)

// AllWindowLabels returns all valid window labels.
var AllWindowLabels = []WindowLabel{WindowMorning, WindowAfternoon, WindowEvening, WindowNight}

// IsValidWindowLabel checks if a string is a valid window label.
func IsValidWindowLabel(s string) bool {
	for _, wl := range AllWindowLabels {
		if string(wl) == s {
			return true
		}
	}
	return false
}

// Weekday is a three-letter lowercase day token (mon..sun).
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

// AllWeekdays lists the day tokens in week order, Monday first.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// IsValidWeekday checks if a string is a valid day token.
func IsValidWeekday(s string) bool {
	for _, d := range AllWeekdays {
		if string(d) == s {
			return true
		}
	}
	return false
}

// WeekdayOf converts a time.Weekday to its token.
func WeekdayOf(d time.Weekday) Weekday {
	// time.Sunday == 0
	return AllWeekdays[(int(d)+6)%7]
}

// NormalizeWeekdays removes duplicates and returns the days in week order.
// Unknown tokens are dropped.
func NormalizeWeekdays(days []Weekday) []Weekday {
	seen := make(map[Weekday]bool, len(days))
	for _, d := range days {
		seen[d] = true
	}
	out := make([]Weekday, 0, len(seen))
	for _, d := range AllWeekdays {
		if seen[d] {
			out = append(out, d)
		}
	}
	return out
}

// TimeOfDay is a wall-clock time in minutes since midnight.
type TimeOfDay int

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay = 24 * 60

// ParseTimeOfDay parses a strict 24-hour "HH:MM" value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q: use HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: use HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals; it panics on bad input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the wall-clock time of t, truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return int(t)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DateLayout is the persisted date format.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a "YYYY-MM-DD" value.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// MustDate is ParseDate for literals; it panics on bad input.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combines d with a wall-clock time in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, int(tod)/60, int(tod)%60, 0, 0, loc)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Weekday returns the day token for d.
func (d Date) Weekday() Weekday {
	return WeekdayOf(d.In(time.UTC).Weekday())
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.In(time.UTC).Compare(o.In(time.UTC))
}

// Before reports whether d is before o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is after o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// DaysUntil returns the number of days from d to o (negative when o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.In(time.UTC).Sub(d.In(time.UTC)).Hours() / 24)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
