// ABOUTME: Record validation for medicines using go-playground/validator.
// ABOUTME: Field errors are reported under their JSON names as a ValidationError.
package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxPillsRemaining bounds the inventory of a single medicine.
const MaxPillsRemaining = 1000

// MedicineSpec is the caller-facing shape of a medicine. Times are "HH:MM"
// and days are lowercase three-letter tokens.
type MedicineSpec struct {
	ID                string   `json:"id,omitempty" validate:"omitempty,max=64"`
	Name              string   `json:"name" validate:"required,max=50"`
	Dosage            string   `json:"dosage" validate:"required,max=20"`
	WindowLabel       string   `json:"window_label" validate:"required,oneof=morning afternoon evening night"`
	WindowStart       string   `json:"window_start" validate:"required,hhmm"`
	WindowEnd         string   `json:"window_end" validate:"required,hhmm"`
	ActiveDays        []string `json:"active_days" validate:"required,min=1,max=7,dive,oneof=mon tue wed thu fri sat sun"`
	WithFood          bool     `json:"with_food"`
	Notes             string   `json:"notes" validate:"max=100"`
	PillsRemaining    int      `json:"pills_remaining" validate:"min=0,max=1000"`
	PillsPerDose      int      `json:"pills_per_dose" validate:"min=1,max=10"`
	LowStockThreshold int      `json:"low_stock_threshold" validate:"min=0,max=100"`
	Active            *bool    `json:"active,omitempty"`
}

// Normalize trims text and lowercases enum tokens. ActiveDays is copied so
// the caller's slice is never modified.
func (s *MedicineSpec) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Dosage = strings.TrimSpace(s.Dosage)
	s.Notes = strings.TrimSpace(s.Notes)
	s.WindowLabel = strings.ToLower(strings.TrimSpace(s.WindowLabel))
	s.WindowStart = strings.TrimSpace(s.WindowStart)
	s.WindowEnd = strings.TrimSpace(s.WindowEnd)
	days := make([]string, len(s.ActiveDays))
	for i, d := range s.ActiveDays {
		days[i] = strings.ToLower(strings.TrimSpace(d))
	}
	if s.ActiveDays != nil {
		s.ActiveDays = days
	}
}

// Validate checks s against the medicine bounds.
func (s MedicineSpec) Validate() error {
	return ValidateStruct(s)
}

// ApplyTo copies a validated spec onto m, keeping m's ID and timestamps.
func (s *MedicineSpec) ApplyTo(m *Medicine) {
	days := make([]Weekday, len(s.ActiveDays))
	for i, d := range s.ActiveDays {
		days[i] = Weekday(d)
	}

	m.Name = s.Name
	m.Dosage = s.Dosage
	m.WindowLabel = WindowLabel(s.WindowLabel)
	m.WindowStart, _ = ParseTimeOfDay(s.WindowStart)
	m.WindowEnd, _ = ParseTimeOfDay(s.WindowEnd)
	m.ActiveDays = NormalizeWeekdays(days)
	m.WithFood = s.WithFood
	m.Notes = s.Notes
	m.PillsRemaining = s.PillsRemaining
	m.PillsPerDose = s.PillsPerDose
	m.LowStockThreshold = s.LowStockThreshold
	m.Active = s.Active == nil || *s.Active
}

// SpecFromMedicine returns the spec that would recreate m.
func SpecFromMedicine(m *Medicine) MedicineSpec {
	days := make([]string, len(m.ActiveDays))
	for i, d := range m.ActiveDays {
		days[i] = string(d)
	}
	active := m.Active
	return MedicineSpec{
		ID:                m.ID,
		Name:              m.Name,
		Dosage:            m.Dosage,
		WindowLabel:       string(m.WindowLabel),
		WindowStart:       m.WindowStart.String(),
		WindowEnd:         m.WindowEnd.String(),
		ActiveDays:        days,
		WithFood:          m.WithFood,
		Notes:             m.Notes,
		PillsRemaining:    m.PillsRemaining,
		PillsPerDose:      m.PillsPerDose,
		LowStockThreshold: m.LowStockThreshold,
		Active:            &active,
	}
}

// Validate checks a stored-shape record, as read from an import file, against
// the same bounds as caller input. The ID must be set.
func (m *Medicine) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return NewValidationError("id", "is required")
	}
	spec := SpecFromMedicine(m)
	spec.Normalize()
	return spec.Validate()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := ParseTimeOfDay(fl.Field().String())
		return err == nil
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		s := sl.Current().Interface().(MedicineSpec)
		start, err1 := ParseTimeOfDay(s.WindowStart)
		end, err2 := ParseTimeOfDay(s.WindowEnd)
		if err1 == nil && err2 == nil && end <= start {
			sl.ReportError(s.WindowEnd, "window_end", "WindowEnd", "after_start", s.WindowStart)
		}
	}, MedicineSpec{})

	return v
}

// ValidateStruct runs the validator and converts its errors.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("input", err.Error())
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe), describe(fe))
	}
	return verr
}

// fieldPath drops the struct name from the namespace ("MedicineSpec.active_days[0]").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s entries or characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s entries or characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hhmm":
		return "must be a 24-hour time as HH:MM"
	case "after_start":
		return fmt.Sprintf("must be after window_start (%s); overnight windows are not supported", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
