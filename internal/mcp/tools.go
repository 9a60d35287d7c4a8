// ABOUTME: MCP tool implementations for medicine schedules and dose tracking.
// ABOUTME: Each tool resolves ID prefixes, then delegates to the engine.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/schedule"
	"github.com/harperreed/meds/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultAdherenceDays is the range get_adherence covers when no dates are given.
const defaultAdherenceDays = 7

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_medicine",
		Description: "Add a medicine with its dose window, active days and pill inventory",
	}, s.handleAddMedicine)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_medicines",
		Description: "List medicines, active only unless include_inactive is set",
	}, s.handleListMedicines)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_medicine",
		Description: "Get a medicine by ID or ID prefix",
	}, s.handleGetMedicine)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "update_medicine",
		Description: "Change selected fields of a medicine",
	}, s.handleUpdateMedicine)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_medicine",
		Description: "Delete a medicine. Its dose history is kept",
	}, s.handleDeleteMedicine)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_pending",
		Description: "List medicines due now (or at a given date and time) that are not yet taken or skipped",
	}, s.handleGetPending)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "mark_taken",
		Description: "Mark a dose as taken and decrement the pill count",
	}, s.handleMarkTaken)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "skip_dose",
		Description: "Mark a dose as skipped with an optional reason",
	}, s.handleSkipDose)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "batch_mark_taken",
		Description: "Mark up to 20 medicines taken at once",
	}, s.handleBatchMarkTaken)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "restock",
		Description: "Add pills to a medicine's inventory",
	}, s.handleRestock)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_low_stock",
		Description: "List active medicines at or below their low stock threshold",
	}, s.handleGetLowStock)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_adherence",
		Description: "Summarize taken, skipped and missed doses over a date range",
	}, s.handleGetAdherence)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_dose_history",
		Description: "Page through recorded doses, newest first",
	}, s.handleGetDoseHistory)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_today",
		Description: "Today's scheduled, taken, skipped and pending counts",
	}, s.handleGetToday)
}

// Tool input/output types

type addMedicineInput struct {
	ID                string   `json:"id,omitempty" jsonschema:"Explicit medicine ID; generated when omitted"`
	Name              string   `json:"name" jsonschema:"Medicine name (max 50 characters)"`
	Dosage            string   `json:"dosage" jsonschema:"Dosage text such as 500mg (max 20 characters)"`
	WindowLabel       string   `json:"window_label" jsonschema:"One of morning, afternoon, evening, night"`
	WindowStart       string   `json:"window_start" jsonschema:"Window start as HH:MM (24h)"`
	WindowEnd         string   `json:"window_end" jsonschema:"Window end as HH:MM (24h), after window_start"`
	ActiveDays        []string `json:"active_days,omitempty" jsonschema:"Days as mon..sun; defaults to every day"`
	WithFood          bool     `json:"with_food,omitempty" jsonschema:"Take with food"`
	Notes             string   `json:"notes,omitempty" jsonschema:"Free-form notes (max 100 characters)"`
	PillsRemaining    int      `json:"pills_remaining,omitempty" jsonschema:"Pills on hand (0-1000)"`
	PillsPerDose      int      `json:"pills_per_dose,omitempty" jsonschema:"Pills per dose (1-10, default 1)"`
	LowStockThreshold int      `json:"low_stock_threshold,omitempty" jsonschema:"Warn at or below this many pills (0-100)"`
}

type listMedicinesInput struct {
	IncludeInactive bool   `json:"include_inactive,omitempty" jsonschema:"Include paused medicines"`
	WindowLabel     string `json:"window_label,omitempty" jsonschema:"Filter by window label"`
}

type idInput struct {
	ID string `json:"id" jsonschema:"Medicine ID or unique prefix"`
}

type updateMedicineInput struct {
	ID                string   `json:"id" jsonschema:"Medicine ID or unique prefix"`
	Name              *string  `json:"name,omitempty" jsonschema:"New name"`
	Dosage            *string  `json:"dosage,omitempty" jsonschema:"New dosage"`
	WindowLabel       *string  `json:"window_label,omitempty" jsonschema:"New window label"`
	WindowStart       *string  `json:"window_start,omitempty" jsonschema:"New window start as HH:MM"`
	WindowEnd         *string  `json:"window_end,omitempty" jsonschema:"New window end as HH:MM"`
	ActiveDays        []string `json:"active_days,omitempty" jsonschema:"Replacement list of active days"`
	WithFood          *bool    `json:"with_food,omitempty" jsonschema:"Take with food"`
	Notes             *string  `json:"notes,omitempty" jsonschema:"New notes"`
	PillsRemaining    *int     `json:"pills_remaining,omitempty" jsonschema:"Set the pill count"`
	PillsPerDose      *int     `json:"pills_per_dose,omitempty" jsonschema:"New pills per dose"`
	LowStockThreshold *int     `json:"low_stock_threshold,omitempty" jsonschema:"New low stock threshold"`
	Active            *bool    `json:"active,omitempty" jsonschema:"Pause (false) or resume (true) the medicine"`
}

type getPendingInput struct {
	Date            string `json:"date,omitempty" jsonschema:"Date as YYYY-MM-DD, defaults to today"`
	Time            string `json:"time,omitempty" jsonschema:"Time as HH:MM, defaults to now"`
	ReminderMinutes int    `json:"reminder_minutes,omitempty" jsonschema:"Widen windows by this many minutes (at least 1; values above 1440 are capped)"`
}

type markTakenInput struct {
	ID          string `json:"id" jsonschema:"Medicine ID or unique prefix"`
	Date        string `json:"date,omitempty" jsonschema:"Dose date as YYYY-MM-DD, defaults to today"`
	WindowLabel string `json:"window_label,omitempty" jsonschema:"Dose window, defaults to the medicine's own"`
	TakenAt     string `json:"taken_at,omitempty" jsonschema:"When it was taken (ISO 8601), defaults to now"`
}

type skipDoseInput struct {
	ID          string `json:"id" jsonschema:"Medicine ID or unique prefix"`
	Reason      string `json:"reason,omitempty" jsonschema:"One of: Forgot, Side effects, Out of stock, Doctor advised, Other"`
	Date        string `json:"date,omitempty" jsonschema:"Dose date as YYYY-MM-DD, defaults to today"`
	WindowLabel string `json:"window_label,omitempty" jsonschema:"Dose window, defaults to the medicine's own"`
}

type batchMarkTakenInput struct {
	IDs []string `json:"ids" jsonschema:"Medicine IDs or prefixes (1-20)"`
}

type restockInput struct {
	ID    string `json:"id" jsonschema:"Medicine ID or unique prefix"`
	Pills int    `json:"pills" jsonschema:"Pills to add (1-1000)"`
}

type emptyInput struct{}

type adherenceInput struct {
	StartDate  string `json:"start_date,omitempty" jsonschema:"First date as YYYY-MM-DD"`
	EndDate    string `json:"end_date,omitempty" jsonschema:"Last date as YYYY-MM-DD, defaults to today"`
	Days       int    `json:"days,omitempty" jsonschema:"Range length when start_date is omitted (default 7)"`
	MedicineID string `json:"medicine_id,omitempty" jsonschema:"Limit to one medicine (ID or prefix)"`
}

type historyInput struct {
	MedicineID string `json:"medicine_id,omitempty" jsonschema:"Limit to one medicine (ID or prefix)"`
	StartDate  string `json:"start_date,omitempty" jsonschema:"First date as YYYY-MM-DD"`
	EndDate    string `json:"end_date,omitempty" jsonschema:"Last date as YYYY-MM-DD"`
	Status     string `json:"status,omitempty" jsonschema:"taken or skipped"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number, default 1"`
	PerPage    int    `json:"per_page,omitempty" jsonschema:"Rows per page, default 20, max 100"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type medicineOutput struct {
	Medicine *models.Medicine `json:"medicine"`
	Message  string           `json:"message"`
}

type medicinesOutput struct {
	Medicines []*models.Medicine `json:"medicines"`
	Count     int                `json:"count"`
}

type pendingOutput struct {
	Date    models.Date              `json:"date"`
	Time    models.TimeOfDay         `json:"time"`
	Pending []engine.PendingMedicine `json:"pending"`
	Count   int                      `json:"count"`
}

type doseOutput struct {
	*engine.DoseResult
	Message string `json:"message"`
}

type lowStockOutput struct {
	Medicines []engine.LowStockMedicine `json:"medicines"`
	Count     int                       `json:"count"`
}

type todayOutput struct {
	*engine.DayStats
	Due []engine.PendingMedicine `json:"due"`
}

// Helpers

func (s *Server) resolveID(ctx context.Context, idOrPrefix string) (string, error) {
	id, err := s.eng.ResolveMedicineID(ctx, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("medicine %q: %w", idOrPrefix, err)
	}
	return id, nil
}

// parseDate parses an optional YYYY-MM-DD value; empty yields the zero Date.
func parseDate(field, value string) (models.Date, error) {
	if value == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(value)
	if err != nil {
		return models.Date{}, models.NewValidationError(field, "must be a date as YYYY-MM-DD")
	}
	return d, nil
}

// parseTimestamp accepts RFC 3339 or "YYYY-MM-DD HH:MM" in loc.
func parseTimestamp(field, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02 15:04", value, loc)
	}
	if err != nil {
		return time.Time{}, models.NewValidationError(field, "must be an ISO 8601 timestamp")
	}
	return t, nil
}

// Tool handlers

func (s *Server) handleAddMedicine(ctx context.Context, req *mcp.CallToolRequest, input addMedicineInput) (*mcp.CallToolResult, any, error) {
	days := input.ActiveDays
	if len(days) == 0 {
		days = make([]string, len(models.AllWeekdays))
		for i, d := range models.AllWeekdays {
			days[i] = string(d)
		}
	}
	perDose := input.PillsPerDose
	if perDose == 0 {
		perDose = 1
	}

	m, err := s.eng.CreateMedicine(ctx, engine.MedicineSpec{
		ID:                input.ID,
		Name:              input.Name,
		Dosage:            input.Dosage,
		WindowLabel:       input.WindowLabel,
		WindowStart:       input.WindowStart,
		WindowEnd:         input.WindowEnd,
		ActiveDays:        days,
		WithFood:          input.WithFood,
		Notes:             input.Notes,
		PillsRemaining:    input.PillsRemaining,
		PillsPerDose:      perDose,
		LowStockThreshold: input.LowStockThreshold,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to add medicine: %w", err)
	}

	return nil, medicineOutput{
		Medicine: m,
		Message:  fmt.Sprintf("Added %s %s (%s %s-%s, ID: %s)", m.Name, m.Dosage, m.WindowLabel, m.WindowStart, m.WindowEnd, models.ShortID(m.ID)),
	}, nil
}

func (s *Server) handleListMedicines(ctx context.Context, req *mcp.CallToolRequest, input listMedicinesInput) (*mcp.CallToolResult, any, error) {
	var filter storage.MedicineFilter
	if !input.IncludeInactive {
		active := true
		filter.Active = &active
	}
	if input.WindowLabel != "" {
		label := models.WindowLabel(strings.ToLower(input.WindowLabel))
		if !models.IsValidWindowLabel(string(label)) {
			return nil, nil, models.NewValidationError("window_label", fmt.Sprintf("unknown window %q", input.WindowLabel))
		}
		filter.WindowLabel = &label
	}

	meds, err := s.eng.ListMedicines(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	if meds == nil {
		meds = []*models.Medicine{}
	}

	return nil, medicinesOutput{Medicines: meds, Count: len(meds)}, nil
}

func (s *Server) handleGetMedicine(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, any, error) {
	id, err := s.resolveID(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.eng.GetMedicine(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get medicine: %w", err)
	}
	return nil, medicineOutput{Medicine: m, Message: fmt.Sprintf("%s %s", m.Name, m.Dosage)}, nil
}

func (s *Server) handleUpdateMedicine(ctx context.Context, req *mcp.CallToolRequest, input updateMedicineInput) (*mcp.CallToolResult, any, error) {
	id, err := s.resolveID(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}

	patch := engine.MedicinePatch{
		Name:              input.Name,
		Dosage:            input.Dosage,
		WindowLabel:       input.WindowLabel,
		WindowStart:       input.WindowStart,
		WindowEnd:         input.WindowEnd,
		ActiveDays:        input.ActiveDays,
		WithFood:          input.WithFood,
		Notes:             input.Notes,
		PillsRemaining:    input.PillsRemaining,
		PillsPerDose:      input.PillsPerDose,
		LowStockThreshold: input.LowStockThreshold,
		Active:            input.Active,
	}
	if patch.IsEmpty() {
		return nil, nil, models.NewValidationError("input", "no fields to update")
	}

	m, err := s.eng.UpdateMedicine(ctx, id, patch)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update medicine: %w", err)
	}
	return nil, medicineOutput{Medicine: m, Message: fmt.Sprintf("Updated %s", m.Name)}, nil
}

func (s *Server) handleDeleteMedicine(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	id, err := s.resolveID(ctx, input.ID)
	if err != nil {
		return nil, simpleOutput{}, err
	}
	if err := s.eng.DeleteMedicine(ctx, id); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete medicine: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted medicine: %s", id)}, nil
}

func (s *Server) handleGetPending(ctx context.Context, req *mcp.CallToolRequest, input getPendingInput) (*mcp.CallToolResult, any, error) {
	now := s.eng.Now()
	date, err := parseDate("date", input.Date)
	if err != nil {
		return nil, nil, err
	}
	if date.IsZero() {
		date = models.DateOf(now)
	}
	tod := models.TimeOfDayOf(now)
	if input.Time != "" {
		tod, err = models.ParseTimeOfDay(input.Time)
		if err != nil {
			return nil, nil, models.NewValidationError("time", "must be a 24-hour time as HH:MM")
		}
	}
	reminder := s.eng.ReminderWindow()
	if input.ReminderMinutes != 0 {
		if reminder, err = schedule.ClampReminderWindow(input.ReminderMinutes); err != nil {
			return nil, nil, err
		}
	}

	pending, err := s.eng.GetPendingMedicines(ctx, date, tod, reminder)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get pending medicines: %w", err)
	}
	if pending == nil {
		pending = []engine.PendingMedicine{}
	}
	return nil, pendingOutput{Date: date, Time: tod, Pending: pending, Count: len(pending)}, nil
}

func (s *Server) handleMarkTaken(ctx context.Context, req *mcp.CallToolRequest, input markTakenInput) (*mcp.CallToolResult, any, error) {
	id, err := s.resolveID(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	date, err := parseDate("date", input.Date)
	if err != nil {
		return nil, nil, err
	}
	at, err := parseTimestamp("taken_at", input.TakenAt, s.eng.Location())
	if err != nil {
		return nil, nil, err
	}

	result, err := s.eng.MarkTaken(ctx, id, engine.TakeOptions{
		Date:        date,
		WindowLabel: models.WindowLabel(strings.ToLower(input.WindowLabel)),
		At:          at,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mark taken: %w", err)
	}

	msg := fmt.Sprintf("Took %s (%d left)", result.Medicine.Name, result.PillsRemaining)
	if result.LowStock {
		msg += ", running low"
	}
	return nil, doseOutput{DoseResult: result, Message: msg}, nil
}

func (s *Server) handleSkipDose(ctx context.Context, req *mcp.CallToolRequest, input skipDoseInput) (*mcp.CallToolResult, any, error) {
	id, err := s.resolveID(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	date, err := parseDate("date", input.Date)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.eng.SkipDose(ctx, id, engine.SkipOptions{
		Date:        date,
		WindowLabel: models.WindowLabel(strings.ToLower(input.WindowLabel)),
		Reason:      models.SkipReason(input.Reason),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to skip dose: %w", err)
	}

	msg := fmt.Sprintf("Skipped %s", result.Medicine.Name)
	if result.Dose.SkipReason != "" {
		msg += fmt.Sprintf(" (%s)", result.Dose.SkipReason)
	}
	return nil, doseOutput{DoseResult: result, Message: msg}, nil
}

func (s *Server) handleBatchMarkTaken(ctx context.Context, req *mcp.CallToolRequest, input batchMarkTakenInput) (*mcp.CallToolResult, any, error) {
	// Prefixes that match nothing are reported, not fatal.
	ids := make([]string, 0, len(input.IDs))
	for _, raw := range input.IDs {
		id, err := s.eng.ResolveMedicineID(ctx, raw)
		if err != nil && !models.IsNotFound(err) {
			return nil, nil, fmt.Errorf("medicine %q: %w", raw, err)
		}
		if err != nil {
			id = strings.TrimSpace(raw)
		}
		ids = append(ids, id)
	}

	result, err := s.eng.BatchMarkTaken(ctx, ids, time.Time{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to batch mark taken: %w", err)
	}
	return nil, result, nil
}

func (s *Server) handleRestock(ctx context.Context, req *mcp.CallToolRequest, input restockInput) (*mcp.CallToolResult, any, error) {
	id, err := s.resolveID(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.eng.Restock(ctx, id, input.Pills)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to restock: %w", err)
	}
	return nil, medicineOutput{
		Medicine: m,
		Message:  fmt.Sprintf("Restocked %s: %d pills on hand", m.Name, m.PillsRemaining),
	}, nil
}

func (s *Server) handleGetLowStock(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	low, err := s.eng.GetLowStockMedicines(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get low stock: %w", err)
	}
	if low == nil {
		low = []engine.LowStockMedicine{}
	}
	return nil, lowStockOutput{Medicines: low, Count: len(low)}, nil
}

func (s *Server) handleGetAdherence(ctx context.Context, req *mcp.CallToolRequest, input adherenceInput) (*mcp.CallToolResult, any, error) {
	end, err := parseDate("end_date", input.EndDate)
	if err != nil {
		return nil, nil, err
	}
	if end.IsZero() {
		end = s.eng.Today()
	}
	start, err := parseDate("start_date", input.StartDate)
	if err != nil {
		return nil, nil, err
	}
	if start.IsZero() {
		days := input.Days
		if days <= 0 {
			days = defaultAdherenceDays
		}
		start = end.AddDays(-(days - 1))
	}

	var medicineID string
	if input.MedicineID != "" {
		if medicineID, err = s.resolveID(ctx, input.MedicineID); err != nil {
			return nil, nil, err
		}
	}

	summary, err := s.eng.GetAdherence(ctx, start, end, medicineID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get adherence: %w", err)
	}
	return nil, summary, nil
}

func (s *Server) handleGetDoseHistory(ctx context.Context, req *mcp.CallToolRequest, input historyInput) (*mcp.CallToolResult, any, error) {
	q := engine.HistoryQuery{
		Status:  storage.DoseStatusFilter(strings.ToLower(input.Status)),
		Page:    input.Page,
		PerPage: input.PerPage,
	}
	if input.MedicineID != "" {
		id, err := s.eng.ResolveMedicineID(ctx, input.MedicineID)
		switch {
		case err == nil:
			q.MedicineID = id
		case models.IsNotFound(err):
			// History outlives the medicine; query the raw ID.
			q.MedicineID = strings.TrimSpace(input.MedicineID)
		default:
			return nil, nil, fmt.Errorf("medicine %q: %w", input.MedicineID, err)
		}
	}
	if input.StartDate != "" {
		d, err := parseDate("start_date", input.StartDate)
		if err != nil {
			return nil, nil, err
		}
		q.Start = &d
	}
	if input.EndDate != "" {
		d, err := parseDate("end_date", input.EndDate)
		if err != nil {
			return nil, nil, err
		}
		q.End = &d
	}

	page, err := s.eng.GetDoseHistory(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dose history: %w", err)
	}
	return nil, page, nil
}

func (s *Server) handleGetToday(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	out, err := s.today(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) today(ctx context.Context) (*todayOutput, error) {
	stats, err := s.eng.GetDayStats(ctx, models.Date{})
	if err != nil {
		return nil, fmt.Errorf("failed to get today's stats: %w", err)
	}
	pending, err := s.eng.GetPendingNow(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending medicines: %w", err)
	}
	if pending == nil {
		pending = []engine.PendingMedicine{}
	}
	return &todayOutput{DayStats: stats, Due: pending}, nil
}
