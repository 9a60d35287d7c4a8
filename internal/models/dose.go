// ABOUTME: DoseEvent model: the outcome of one scheduled slot on one date.
// ABOUTME: Keyed by (medicine, date, window); either taken, skipped or pending.
package models

import (
	"fmt"
	"strings"
	"time"
)

// SkipReason explains why a dose was skipped.
type SkipReason string

const (
	SkipForgot        SkipReason = "Forgot"
	SkipSideEffects   SkipReason = "Side effects"
	SkipOutOfStock    SkipReason = "Out of stock"
	SkipDoctorAdvised SkipReason = "Doctor advised"
	SkipOther         SkipReason = "Other"
)

// AllSkipReasons returns all valid skip reasons.
var AllSkipReasons = []SkipReason{SkipForgot, SkipSideEffects, SkipOutOfStock, SkipDoctorAdvised, SkipOther}

// IsValidSkipReason checks if a string is a valid skip reason. Matching is
// case-insensitive so CLI input like "side effects" resolves.
func IsValidSkipReason(s string) bool {
	_, ok := ParseSkipReason(s)
	return ok
}

// ParseSkipReason returns the canonical reason for s.
func ParseSkipReason(s string) (SkipReason, bool) {
	for _, r := range AllSkipReasons {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// DoseStatus is the resolution state of a slot.
type DoseStatus string

const (
	DosePending DoseStatus = "pending"
	DoseTaken   DoseStatus = "taken"
	DoseSkipped DoseStatus = "skipped"
)

// DoseEvent records the resolution of one dose slot.
type DoseEvent struct {
	MedicineID  string      `json:"medicine_id" yaml:"medicine_id"`
	Date        Date        `json:"date" yaml:"date"`
	WindowLabel WindowLabel `json:"window_label" yaml:"window_label"`

	Taken      bool       `json:"taken" yaml:"taken"`
	TakenAt    *time.Time `json:"taken_at,omitempty" yaml:"taken_at,omitempty"`
	Skipped    bool       `json:"skipped" yaml:"skipped"`
	SkipReason SkipReason `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
	SkipAt     *time.Time `json:"skip_at,omitempty" yaml:"skip_at,omitempty"`

	// PillsTaken is what was deducted from inventory for this slot.
	PillsTaken int `json:"pills_taken" yaml:"pills_taken"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// MedicineName is filled on read when the medicine still exists.
	MedicineName string `json:"medicine_name,omitempty" yaml:"medicine_name,omitempty"`
}

// NewTakenDose builds a taken resolution for a slot.
func NewTakenDose(medicineID string, date Date, label WindowLabel, at time.Time, pills int) *DoseEvent {
	return &DoseEvent{
		MedicineID:  medicineID,
		Date:        date,
		WindowLabel: label,
		Taken:       true,
		TakenAt:     &at,
		PillsTaken:  pills,
	}
}

// NewSkippedDose builds a skipped resolution for a slot.
func NewSkippedDose(medicineID string, date Date, label WindowLabel, reason SkipReason, at time.Time) *DoseEvent {
	return &DoseEvent{
		MedicineID:  medicineID,
		Date:        date,
		WindowLabel: label,
		Skipped:     true,
		SkipReason:  reason,
		SkipAt:      &at,
	}
}

// Status returns the resolution state of the slot.
func (e *DoseEvent) Status() DoseStatus {
	switch {
	case e == nil:
		return DosePending
	case e.Taken:
		return DoseTaken
	case e.Skipped:
		return DoseSkipped
	default:
		return DosePending
	}
}

// Resolved reports whether the slot is taken or skipped.
func (e *DoseEvent) Resolved() bool {
	return e.Status() != DosePending
}

// Key returns the natural key as a single string.
func (e *DoseEvent) Key() string {
	return DoseKey(e.MedicineID, e.Date, e.WindowLabel)
}

// DoseKey joins a natural key into "medicine|date|window".
func DoseKey(medicineID string, date Date, label WindowLabel) string {
	return fmt.Sprintf("%s|%s|%s", medicineID, date, label)
}

// ValidateResolution checks the invariants an upsert relies on.
func (e *DoseEvent) ValidateResolution() error {
	if e.MedicineID == "" || e.Date.IsZero() || e.WindowLabel == "" {
		return NewValidationError("dose", "medicine_id, date and window_label are required")
	}
	if !IsValidWindowLabel(string(e.WindowLabel)) {
		return NewValidationError("window_label", fmt.Sprintf("unknown window %q", e.WindowLabel))
	}
	if e.Taken == e.Skipped {
		return NewValidationError("dose", "exactly one of taken or skipped must be set")
	}
	if e.Taken && e.TakenAt == nil {
		return NewValidationError("taken_at", "required when taken")
	}
	if e.Skipped && e.SkipAt == nil {
		return NewValidationError("skip_at", "required when skipped")
	}
	if e.SkipReason != "" && !IsValidSkipReason(string(e.SkipReason)) {
		return NewValidationError("skip_reason", fmt.Sprintf("unknown reason %q", e.SkipReason))
	}
	if e.PillsTaken < 0 {
		return NewValidationError("pills_taken", "must not be negative")
	}
	return nil
}
