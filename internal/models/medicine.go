// ABOUTME: Medicine model: a recurring prescription or supplement definition.
// ABOUTME: Carries the dose window, active weekdays and inventory fields.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MedicineIDPrefix starts every store-assigned medicine ID.
const MedicineIDPrefix = "med_"

// Medicine is a recurring dosage schedule with its pill inventory.
type Medicine struct {
	ID                string      `json:"id" yaml:"id"`
	Name              string      `json:"name" yaml:"name"`
	Dosage            string      `json:"dosage" yaml:"dosage"`
	WindowLabel       WindowLabel `json:"window_label" yaml:"window_label"`
	WindowStart       TimeOfDay   `json:"window_start" yaml:"window_start"`
	WindowEnd         TimeOfDay   `json:"window_end" yaml:"window_end"`
	ActiveDays        []Weekday   `json:"active_days" yaml:"active_days"`
	WithFood          bool        `json:"with_food" yaml:"with_food"`
	Notes             string      `json:"notes,omitempty" yaml:"notes,omitempty"`
	PillsRemaining    int         `json:"pills_remaining" yaml:"pills_remaining"`
	PillsPerDose      int         `json:"pills_per_dose" yaml:"pills_per_dose"`
	LowStockThreshold int         `json:"low_stock_threshold" yaml:"low_stock_threshold"`
	Active            bool        `json:"active" yaml:"active"`
	CreatedAt         time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" yaml:"updated_at"`
}

// NewMedicineID returns a fresh, never-reused medicine ID.
func NewMedicineID() string {
	return MedicineIDPrefix + uuid.New().String()
}

// ShortID returns a display prefix of the ID.
func ShortID(id string) string {
	rest := strings.TrimPrefix(id, MedicineIDPrefix)
	if len(rest) > 8 && rest != id {
		return MedicineIDPrefix + rest[:8]
	}
	return id
}

// IsLowStock reports whether remaining pills are at or below the threshold.
func (m *Medicine) IsLowStock() bool {
	return m.PillsRemaining <= m.LowStockThreshold
}

// ScheduledOn reports whether the medicine is taken on the given weekday.
func (m *Medicine) ScheduledOn(day Weekday) bool {
	for _, d := range m.ActiveDays {
		if d == day {
			return true
		}
	}
	return false
}

// DaysString joins the active days for display and storage ("mon,wed,fri").
func (m *Medicine) DaysString() string {
	parts := make([]string, len(m.ActiveDays))
	for i, d := range m.ActiveDays {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

// ParseDays splits a comma-separated day list. It does not validate tokens.
func ParseDays(s string) []Weekday {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var days []Weekday
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		days = append(days, Weekday(p))
	}
	return days
}
