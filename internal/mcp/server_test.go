// ABOUTME: Tests for MCP server, tools, and resources.
// ABOUTME: Covers NewServer, tool handlers, resource handlers, and an in-memory session.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// 2024-01-01 is a Monday.
var testNow = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

// setupTestServer creates a server over a fresh database and a fixed clock.
func setupTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(testNow)
	db, err := storage.Open(filepath.Join(t.TempDir(), "meds.db"), storage.Options{Clock: clock})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, clock, nil, engine.Config{Location: time.UTC})
	server, err := NewServer(eng)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, eng
}

func addVitaminD(t *testing.T, server *Server, pills int) *models.Medicine {
	t.Helper()
	_, out, err := server.handleAddMedicine(context.Background(), &mcp.CallToolRequest{}, addMedicineInput{
		Name:              "Vitamin D",
		Dosage:            "1000 IU",
		WindowLabel:       "morning",
		WindowStart:       "06:00",
		WindowEnd:         "10:00",
		PillsRemaining:    pills,
		LowStockThreshold: 5,
	})
	if err != nil {
		t.Fatalf("add_medicine failed: %v", err)
	}
	return out.(medicineOutput).Medicine
}

func TestNewServer(t *testing.T) {
	server, _ := setupTestServer(t)

	if server.mcpServer == nil {
		t.Error("Expected non-nil mcpServer")
	}
	if server.eng == nil {
		t.Error("Expected non-nil engine")
	}
}

func TestHandleAddMedicine(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     addMedicineInput
		wantErr   bool
		errSubstr string
	}{
		{
			name: "defaults every day and one pill per dose",
			input: addMedicineInput{
				Name: "Metformin", Dosage: "500mg", WindowLabel: "evening",
				WindowStart: "18:00", WindowEnd: "20:00", PillsRemaining: 60,
			},
		},
		{
			name: "explicit days",
			input: addMedicineInput{
				Name: "Iron", Dosage: "65mg", WindowLabel: "morning",
				WindowStart: "07:00", WindowEnd: "09:00", ActiveDays: []string{"mon", "thu"},
			},
		},
		{
			name: "overnight window rejected",
			input: addMedicineInput{
				Name: "Melatonin", Dosage: "3mg", WindowLabel: "night",
				WindowStart: "22:00", WindowEnd: "01:00",
			},
			wantErr:   true,
			errSubstr: "window_end",
		},
		{
			name:      "missing name",
			input:     addMedicineInput{Dosage: "1", WindowLabel: "night", WindowStart: "20:00", WindowEnd: "21:00"},
			wantErr:   true,
			errSubstr: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleAddMedicine(ctx, &mcp.CallToolRequest{}, tt.input)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !errors.Is(err, models.ErrValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("Error %q should contain %q", err.Error(), tt.errSubstr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			m := out.(medicineOutput).Medicine
			if m.PillsPerDose != 1 {
				t.Errorf("PillsPerDose = %d, want 1", m.PillsPerDose)
			}
			if len(tt.input.ActiveDays) == 0 && len(m.ActiveDays) != 7 {
				t.Errorf("ActiveDays = %v, want every day", m.ActiveDays)
			}
			if !strings.Contains(out.(medicineOutput).Message, models.ShortID(m.ID)) {
				t.Errorf("Message %q should include the short ID", out.(medicineOutput).Message)
			}
		})
	}
}

func TestHandleListMedicines(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	m := addVitaminD(t, server, 30)
	inactive := false
	if _, _, err := server.handleUpdateMedicine(ctx, &mcp.CallToolRequest{}, updateMedicineInput{ID: m.ID, Active: &inactive}); err != nil {
		t.Fatalf("update_medicine failed: %v", err)
	}

	_, out, err := server.handleListMedicines(ctx, &mcp.CallToolRequest{}, listMedicinesInput{})
	if err != nil {
		t.Fatalf("list_medicines failed: %v", err)
	}
	if got := out.(medicinesOutput); got.Count != 0 || got.Medicines == nil {
		t.Errorf("active list = %+v, want empty non-nil", got)
	}

	_, out, err = server.handleListMedicines(ctx, &mcp.CallToolRequest{}, listMedicinesInput{IncludeInactive: true, WindowLabel: "Morning"})
	if err != nil {
		t.Fatalf("list_medicines failed: %v", err)
	}
	if got := out.(medicinesOutput); got.Count != 1 {
		t.Errorf("Count = %d, want 1", got.Count)
	}

	if _, _, err := server.handleListMedicines(ctx, &mcp.CallToolRequest{}, listMedicinesInput{WindowLabel: "brunch"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestHandleGetAndDeleteMedicineByPrefix(t *testing.T) {
	server, eng := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 30)

	_, out, err := server.handleGetMedicine(ctx, &mcp.CallToolRequest{}, idInput{ID: models.ShortID(m.ID)})
	if err != nil {
		t.Fatalf("get_medicine failed: %v", err)
	}
	if out.(medicineOutput).Medicine.ID != m.ID {
		t.Errorf("resolved ID = %s, want %s", out.(medicineOutput).Medicine.ID, m.ID)
	}

	del, _, err := server.handleDeleteMedicine(ctx, &mcp.CallToolRequest{}, idInput{ID: models.ShortID(m.ID)})
	if err != nil || del != nil {
		t.Fatalf("delete_medicine = %v, %v", del, err)
	}
	if _, err := eng.GetMedicine(ctx, m.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected medicine to be deleted, got %v", err)
	}

	if _, _, err := server.handleGetMedicine(ctx, &mcp.CallToolRequest{}, idInput{ID: "med_nope"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestHandleUpdateMedicine(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 30)

	dosage := "2000 IU"
	_, out, err := server.handleUpdateMedicine(ctx, &mcp.CallToolRequest{}, updateMedicineInput{ID: m.ID, Dosage: &dosage})
	if err != nil {
		t.Fatalf("update_medicine failed: %v", err)
	}
	if got := out.(medicineOutput).Medicine.Dosage; got != dosage {
		t.Errorf("Dosage = %s, want %s", got, dosage)
	}

	if _, _, err := server.handleUpdateMedicine(ctx, &mcp.CallToolRequest{}, updateMedicineInput{ID: m.ID}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for empty patch, got %v", err)
	}
}

func TestHandleGetPendingAndMarkTaken(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 30)

	_, out, err := server.handleGetPending(ctx, &mcp.CallToolRequest{}, getPendingInput{})
	if err != nil {
		t.Fatalf("get_pending failed: %v", err)
	}
	pending := out.(pendingOutput)
	if pending.Count != 1 || pending.Date != models.MustDate("2024-01-01") || pending.Time.String() != "08:00" {
		t.Fatalf("pending = %+v", pending)
	}

	_, out, err = server.handleMarkTaken(ctx, &mcp.CallToolRequest{}, markTakenInput{ID: models.ShortID(m.ID), TakenAt: "2024-01-01 07:45"})
	if err != nil {
		t.Fatalf("mark_taken failed: %v", err)
	}
	dose := out.(doseOutput)
	if dose.PillsRemaining != 29 || !strings.Contains(dose.Message, "29 left") {
		t.Errorf("mark_taken output = %+v", dose)
	}
	if got := dose.Dose.TakenAt.UTC().Format("15:04"); got != "07:45" {
		t.Errorf("TakenAt = %s, want 07:45", got)
	}

	_, out, err = server.handleGetPending(ctx, &mcp.CallToolRequest{}, getPendingInput{Time: "09:00"})
	if err != nil {
		t.Fatalf("get_pending failed: %v", err)
	}
	if out.(pendingOutput).Count != 0 {
		t.Errorf("pending after take = %d, want 0", out.(pendingOutput).Count)
	}

	if _, _, err := server.handleGetPending(ctx, &mcp.CallToolRequest{}, getPendingInput{ReminderMinutes: 5000}); err != nil {
		t.Errorf("reminder above a day should be capped, got %v", err)
	}

	for _, in := range []getPendingInput{{Date: "01/01/2024"}, {Time: "9am"}, {ReminderMinutes: -5}} {
		if _, _, err := server.handleGetPending(ctx, &mcp.CallToolRequest{}, in); !errors.Is(err, models.ErrValidation) {
			t.Errorf("get_pending(%+v): expected validation error, got %v", in, err)
		}
	}
}

func TestHandleSkipDose(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 30)

	_, out, err := server.handleSkipDose(ctx, &mcp.CallToolRequest{}, skipDoseInput{ID: m.ID, Reason: "side effects"})
	if err != nil {
		t.Fatalf("skip_dose failed: %v", err)
	}
	dose := out.(doseOutput)
	if dose.Dose.SkipReason != models.SkipSideEffects || dose.PillsRemaining != 30 {
		t.Errorf("skip_dose output = %+v", dose)
	}
	if !strings.Contains(dose.Message, "Side effects") {
		t.Errorf("Message %q should name the reason", dose.Message)
	}

	if _, _, err := server.handleSkipDose(ctx, &mcp.CallToolRequest{}, skipDoseInput{ID: m.ID, Reason: "meh"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestHandleBatchMarkTaken(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 30)

	_, out, err := server.handleBatchMarkTaken(ctx, &mcp.CallToolRequest{}, batchMarkTakenInput{
		IDs: []string{models.ShortID(m.ID), "med_missing"},
	})
	if err != nil {
		t.Fatalf("batch_mark_taken failed: %v", err)
	}
	result := out.(*engine.BatchResult)
	if len(result.Marked) != 1 {
		t.Errorf("Marked = %d, want 1", len(result.Marked))
	}
	if diff := cmp.Diff([]string{"med_missing"}, result.NotFound); diff != "" {
		t.Errorf("NotFound (-want +got):\n%s", diff)
	}

	if _, _, err := server.handleBatchMarkTaken(ctx, &mcp.CallToolRequest{}, batchMarkTakenInput{}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for empty batch, got %v", err)
	}
}

func TestHandleRestockAndLowStock(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 2)

	_, out, err := server.handleGetLowStock(ctx, &mcp.CallToolRequest{}, emptyInput{})
	if err != nil {
		t.Fatalf("get_low_stock failed: %v", err)
	}
	if out.(lowStockOutput).Count != 1 {
		t.Errorf("low stock count = %d, want 1", out.(lowStockOutput).Count)
	}

	_, out, err = server.handleRestock(ctx, &mcp.CallToolRequest{}, restockInput{ID: m.ID, Pills: 90})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if got := out.(medicineOutput).Medicine.PillsRemaining; got != 92 {
		t.Errorf("PillsRemaining = %d, want 92", got)
	}

	_, out, err = server.handleGetLowStock(ctx, &mcp.CallToolRequest{}, emptyInput{})
	if err != nil {
		t.Fatalf("get_low_stock failed: %v", err)
	}
	if got := out.(lowStockOutput); got.Count != 0 || got.Medicines == nil {
		t.Errorf("low stock after restock = %+v", got)
	}

	if _, _, err := server.handleRestock(ctx, &mcp.CallToolRequest{}, restockInput{ID: m.ID, Pills: 0}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestHandleGetAdherence(t *testing.T) {
	server, eng := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 30)

	if _, err := eng.MarkTaken(ctx, m.ID, engine.TakeOptions{}); err != nil {
		t.Fatalf("MarkTaken failed: %v", err)
	}

	_, out, err := server.handleGetAdherence(ctx, &mcp.CallToolRequest{}, adherenceInput{})
	if err != nil {
		t.Fatalf("get_adherence failed: %v", err)
	}
	summary := out.(*engine.AdherenceSummary)
	if summary.Start != models.MustDate("2023-12-26") || summary.End != models.MustDate("2024-01-01") {
		t.Errorf("range = %s..%s, want 2023-12-26..2024-01-01", summary.Start, summary.End)
	}
	if summary.Total != 7 || summary.Taken != 1 {
		t.Errorf("summary = total %d, taken %d", summary.Total, summary.Taken)
	}

	_, out, err = server.handleGetAdherence(ctx, &mcp.CallToolRequest{}, adherenceInput{
		StartDate: "2024-01-01", EndDate: "2024-01-01", MedicineID: models.ShortID(m.ID),
	})
	if err != nil {
		t.Fatalf("get_adherence failed: %v", err)
	}
	if got := out.(*engine.AdherenceSummary); got.AdherenceRate != 1 || got.MedicineID != m.ID {
		t.Errorf("single day summary = %+v", got)
	}

	if _, _, err := server.handleGetAdherence(ctx, &mcp.CallToolRequest{}, adherenceInput{StartDate: "2024-02-01", EndDate: "2024-01-01"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for reversed range, got %v", err)
	}
}

func TestHandleGetDoseHistory(t *testing.T) {
	server, eng := setupTestServer(t)
	ctx := context.Background()
	m := addVitaminD(t, server, 30)

	day := models.MustDate("2024-01-01")
	for i := 0; i < 3; i++ {
		if _, err := eng.MarkTaken(ctx, m.ID, engine.TakeOptions{Date: day.AddDays(-i)}); err != nil {
			t.Fatalf("MarkTaken failed: %v", err)
		}
	}
	if err := eng.DeleteMedicine(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMedicine failed: %v", err)
	}

	_, out, err := server.handleGetDoseHistory(ctx, &mcp.CallToolRequest{}, historyInput{MedicineID: m.ID, PerPage: 2})
	if err != nil {
		t.Fatalf("get_dose_history failed: %v", err)
	}
	page := out.(*storage.DosePage)
	if page.Total != 3 || len(page.Items) != 2 {
		t.Errorf("page = total %d, items %d; want 3, 2", page.Total, len(page.Items))
	}
	if page.Items[0].Date != day {
		t.Errorf("first item date = %s, want newest %s", page.Items[0].Date, day)
	}

	if _, _, err := server.handleGetDoseHistory(ctx, &mcp.CallToolRequest{}, historyInput{Status: "lost"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestHandleGetToday(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	addVitaminD(t, server, 30)

	_, out, err := server.handleGetToday(ctx, &mcp.CallToolRequest{}, emptyInput{})
	if err != nil {
		t.Fatalf("get_today failed: %v", err)
	}
	today := out.(*todayOutput)
	if today.Scheduled != 1 || today.DayStats.Pending != 1 || len(today.Due) != 1 {
		t.Errorf("today = %+v", today)
	}
}

func TestResources(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	addVitaminD(t, server, 3)

	tests := []struct {
		uri     string
		handler func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
		key     string
	}{
		{dueURI, server.handleDueResource, "pending"},
		{todayURI, server.handleTodayResource, "scheduled"},
		{lowStockURI, server.handleLowStockResource, "medicines"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			result, err := tt.handler(ctx, &mcp.ReadResourceRequest{})
			if err != nil {
				t.Fatalf("read %s failed: %v", tt.uri, err)
			}
			if len(result.Contents) != 1 || result.Contents[0].URI != tt.uri {
				t.Fatalf("unexpected contents: %+v", result.Contents)
			}

			var body map[string]any
			if err := json.Unmarshal([]byte(result.Contents[0].Text), &body); err != nil {
				t.Fatalf("resource is not JSON: %v", err)
			}
			if _, ok := body[tt.key]; !ok {
				t.Errorf("%s missing %q: %s", tt.uri, tt.key, result.Contents[0].Text)
			}
		})
	}
}

func TestSessionListsToolsAndResources(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect failed: %v", err)
	}
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{
		"add_medicine", "batch_mark_taken", "delete_medicine", "get_adherence",
		"get_dose_history", "get_low_stock", "get_medicine", "get_pending",
		"get_today", "list_medicines", "mark_taken", "restock", "skip_dose",
		"update_medicine",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools (-want +got):\n%s", diff)
	}

	res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: lowStockURI})
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Errorf("contents = %d, want 1", len(res.Contents))
	}
}
