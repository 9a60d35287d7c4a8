// ABOUTME: Tests for schedule primitives: labels, weekdays, times and dates.
// ABOUTME: Covers parsing, ordering and text round-trips used by storage.
package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIsValidWindowLabel(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"morning", true},
		{"afternoon", true},
		{"evening", true},
		{"night", true},
		{"Morning", false},
		{"noon", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValidWindowLabel(tt.in); got != tt.want {
				t.Errorf("IsValidWindowLabel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWeekdayOf(t *testing.T) {
	tests := []struct {
		in   time.Weekday
		want Weekday
	}{
		{time.Sunday, Sunday},
		{time.Monday, Monday},
		{time.Wednesday, Wednesday},
		{time.Saturday, Saturday},
	}

	for _, tt := range tests {
		if got := WeekdayOf(tt.in); got != tt.want {
			t.Errorf("WeekdayOf(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeWeekdays(t *testing.T) {
	got := NormalizeWeekdays([]Weekday{Friday, Monday, Friday, "xyz", Wednesday})
	want := []Weekday{Monday, Wednesday, Friday}

	if len(got) != len(want) {
		t.Fatalf("NormalizeWeekdays() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeWeekdays()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", 510, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"8:30", 0, true},
		{"08:60", 0, true},
		{"0830", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got.Minutes() != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got.Minutes(), tt.want)
			}
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	if got := MustTimeOfDay("07:05").String(); got != "07:05" {
		t.Errorf("String() = %s, want 07:05", got)
	}
}

func TestDateWeekday(t *testing.T) {
	// 2024-01-01 was a Monday.
	tests := []struct {
		date string
		want Weekday
	}{
		{"2024-01-01", Monday},
		{"2024-01-03", Wednesday},
		{"2024-01-06", Saturday},
		{"2024-01-07", Sunday},
	}

	for _, tt := range tests {
		if got := MustDate(tt.date).Weekday(); got != tt.want {
			t.Errorf("Weekday(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustDate("2024-02-28")

	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("AddDays(1) = %s, want 2024-02-29", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("AddDays(2) = %s, want 2024-03-01", got)
	}
	if got := d.DaysUntil(MustDate("2024-03-06")); got != 7 {
		t.Errorf("DaysUntil = %d, want 7", got)
	}
	if !d.Before(d.AddDays(1)) || d.After(d) {
		t.Error("Before/After ordering is wrong")
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"2024-13-01", "2024-1-1", "yesterday", ""} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) expected error", in)
		}
	}
}

func TestDateAndTimeJSON(t *testing.T) {
	type wrapper struct {
		Date Date      `json:"date"`
		At   TimeOfDay `json:"at"`
	}

	data, err := json.Marshal(wrapper{Date: MustDate("2024-05-06"), At: MustTimeOfDay("21:15")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"date":"2024-05-06","at":"21:15"}` {
		t.Errorf("Marshal = %s", data)
	}

	var back wrapper
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Date != MustDate("2024-05-06") || back.At != MustTimeOfDay("21:15") {
		t.Errorf("Unmarshal = %+v", back)
	}
}
