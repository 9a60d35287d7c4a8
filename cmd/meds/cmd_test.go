// ABOUTME: Tests for CLI helper functions and command execution.
// ABOUTME: Runs commands against a temp data dir with a fixed clock.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/meds/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// 2024-01-01 is a Monday.
var testNow = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "date and time with space",
			input:   "2025-01-31 08:30",
			wantErr: false,
		},
		{
			name:    "date and time with T",
			input:   "2025-01-31T08:30",
			wantErr: false,
		},
		{
			name:    "date only",
			input:   "2025-01-31",
			wantErr: false,
		},
		{
			name:    "RFC3339",
			input:   "2025-01-31T08:30:00Z",
			wantErr: false,
		},
		{
			name:    "RFC3339 with offset",
			input:   "2025-01-31T08:30:00+05:00",
			wantErr: false,
		},
		{
			name:    "invalid format",
			input:   "31-01-2025",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseTime(tt.input, time.UTC)

			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTime(%q) expected error, got nil", tt.input)
				}
				return
			}

			if err != nil {
				t.Errorf("parseTime(%q) unexpected error: %v", tt.input, err)
				return
			}

			if result.IsZero() {
				t.Errorf("parseTime(%q) returned zero time", tt.input)
			}
		})
	}
}

func TestParseTimeUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	result, err := parseTime("2024-06-15 07:30", loc)
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	want := time.Date(2024, 6, 15, 5, 30, 0, 0, time.UTC)
	if !result.Equal(want) {
		t.Errorf("parseTime = %v, want %v", result.UTC(), want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string no truncation", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world this is a long string", 10, "hello w..."},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		length int
		want   string
	}{
		{"needs padding", "hi", 5, "hi   "},
		{"exact length", "hello", 5, "hello"},
		{"longer than length", "hello world", 5, "hello world"},
		{"empty string", "", 5, "     "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := padRight(tt.input, tt.length)
			if got != tt.want {
				t.Errorf("padRight(%q, %d) = %q, want %q", tt.input, tt.length, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" mon, ,wed,fri ")
	want := []string{"mon", "wed", "fri"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitList = %q, want %q", got, want)
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"add", "list", "show", "update", "delete", "due", "take", "skip",
		"batch-take", "restock", "low-stock", "today", "adherence", "history",
		"export", "import", "migrate", "watch", "mcp", "version", "install-skill",
	}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("Expected %q command to be registered", name)
		}
	}
}

func TestCommandAliases(t *testing.T) {
	tests := []struct {
		cmd     *cobra.Command
		aliases []string
	}{
		{addCmd, []string{"a"}},
		{listCmd, []string{"ls", "l"}},
		{deleteCmd, []string{"del", "rm"}},
		{takeCmd, []string{"t"}},
		{dueCmd, []string{"pending"}},
	}

	for _, tt := range tests {
		have := make(map[string]bool)
		for _, a := range tt.cmd.Aliases {
			have[a] = true
		}
		for _, a := range tt.aliases {
			if !have[a] {
				t.Errorf("Expected alias %q for %s", a, tt.cmd.Name())
			}
		}
	}
}

func TestExportCmdValidArgs(t *testing.T) {
	expected := map[string]bool{"json": false, "yaml": false, "markdown": false}
	for _, arg := range exportCmd.ValidArgs {
		if _, ok := expected[arg]; ok {
			expected[arg] = true
		}
	}
	for arg, found := range expected {
		if !found {
			t.Errorf("Expected valid arg %q for exportCmd", arg)
		}
	}
}

// resetFlags puts every flag back to its default so package-level flag
// variables do not leak between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// setupTestCLI points the CLI at a temp data dir and config home, pins the
// clock to testNow in UTC, and returns the data dir.
func setupTestCLI(t *testing.T) string {
	t.Helper()

	dataDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", dataDir)
	for _, k := range []string{
		"MEDS_BACKEND", "MEDS_DATA_DIR", "MEDS_LOG_LEVEL",
		"MEDS_WATCH_INTERVAL", "MEDS_REMINDER_WINDOW", "MEDS_RETRY_ATTEMPTS",
	} {
		t.Setenv(k, "")
	}

	origClock, origLocation, origNoColor := clock, location, color.NoColor
	clock = clockwork.NewFakeClockAt(testNow)
	location = time.UTC
	color.NoColor = true

	t.Cleanup(func() {
		_ = closeApp()
		clock, location, color.NoColor = origClock, origLocation, origNoColor
		resetFlags(rootCmd)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	return dataDir
}

// runCLI executes the root command with args against dataDir.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dataDir, args...)
	if err != nil {
		t.Fatalf("meds %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func addVitaminD(t *testing.T, dataDir string) {
	t.Helper()
	mustRun(t, dataDir, "add", "Vitamin D", "1000 IU", "--id", "vitd",
		"--window", "morning", "--start", "06:00", "--end", "10:00",
		"--pills", "30", "--low", "5")
}

func TestVersionCmd(t *testing.T) {
	dataDir := setupTestCLI(t)

	out := mustRun(t, dataDir, "version")
	if !strings.Contains(out, "meds dev") {
		t.Errorf("version output = %q", out)
	}
	if repo != nil {
		t.Error("version should not open storage")
	}
}

func TestAddAndListCmd(t *testing.T) {
	dataDir := setupTestCLI(t)

	out := mustRun(t, dataDir, "add", "Vitamin D", "1000 IU", "--id", "vitd",
		"--window", "morning", "--start", "06:00", "--end", "10:00", "--pills", "30")
	if !strings.Contains(out, "✓ Added Vitamin D") {
		t.Errorf("add output = %q", out)
	}
	if !strings.Contains(out, "mon,tue,wed,thu,fri,sat,sun") {
		t.Errorf("add should default to every day, got %q", out)
	}

	out = mustRun(t, dataDir, "list")
	if !strings.Contains(out, "vitd") || !strings.Contains(out, "30 pills") {
		t.Errorf("list output = %q", out)
	}

	out = mustRun(t, dataDir, "list", "--window", "evening")
	if !strings.Contains(out, "No medicines found.") {
		t.Errorf("evening filter should be empty, got %q", out)
	}

	if _, err := runCLI(t, dataDir, "list", "--window", "brunch"); err == nil {
		t.Error("Expected error for unknown window")
	}
}

func TestAddCmdValidation(t *testing.T) {
	dataDir := setupTestCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{"end before start", []string{"add", "X", "1mg", "--window", "night", "--start", "23:00", "--end", "01:00"}},
		{"bad day", []string{"add", "X", "1mg", "--window", "morning", "--start", "06:00", "--end", "07:00", "--days", "mon,funday"}},
		{"missing window flags", []string{"add", "X", "1mg"}},
		{"missing dosage", []string{"add", "X", "--window", "morning", "--start", "06:00", "--end", "07:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, dataDir, tt.args...); err == nil {
				t.Errorf("meds %s should fail", strings.Join(tt.args, " "))
			}
		})
	}

	out := mustRun(t, dataDir, "list", "--all")
	if !strings.Contains(out, "No medicines found.") {
		t.Errorf("failed adds should store nothing, got %q", out)
	}
}

func TestShowUpdateDeleteCmd(t *testing.T) {
	dataDir := setupTestCLI(t)
	addVitaminD(t, dataDir)

	out := mustRun(t, dataDir, "show", "vitd")
	if !strings.Contains(out, "morning 06:00-10:00") {
		t.Errorf("show output = %q", out)
	}

	out = mustRun(t, dataDir, "update", "vitd", "--dosage", "2000 IU", "--days", "mon,wed")
	if !strings.Contains(out, "✓ Updated Vitamin D") || !strings.Contains(out, "2000 IU") {
		t.Errorf("update output = %q", out)
	}
	out = mustRun(t, dataDir, "show", "vitd")
	if !strings.Contains(out, "mon,wed") || !strings.Contains(out, "30 pills") {
		t.Errorf("update should only change named fields, got %q", out)
	}

	if _, err := runCLI(t, dataDir, "update", "vitd"); err == nil {
		t.Error("update with no flags should fail")
	}
	if _, err := runCLI(t, dataDir, "update", "vitd", "--end", "05:00"); err == nil {
		t.Error("update producing an invalid window should fail")
	}

	mustRun(t, dataDir, "update", "vitd", "--active=false")
	out = mustRun(t, dataDir, "list")
	if !strings.Contains(out, "No medicines found.") {
		t.Errorf("paused medicine should be hidden from list, got %q", out)
	}
	out = mustRun(t, dataDir, "list", "--all")
	if !strings.Contains(out, "(paused)") {
		t.Errorf("list --all should show paused medicine, got %q", out)
	}

	out = mustRun(t, dataDir, "delete", "vitd")
	if !strings.Contains(out, "✗ Deleted Vitamin D") {
		t.Errorf("delete output = %q", out)
	}
	if _, err := runCLI(t, dataDir, "show", "vitd"); err == nil {
		t.Error("show after delete should fail")
	}
}

func TestDueTakeSkipCmd(t *testing.T) {
	dataDir := setupTestCLI(t)
	addVitaminD(t, dataDir)

	out := mustRun(t, dataDir, "due")
	if !strings.Contains(out, "Due at 2024-01-01 08:00") || !strings.Contains(out, "Vitamin D") {
		t.Errorf("due output = %q", out)
	}

	out = mustRun(t, dataDir, "due", "--time", "10:45")
	if !strings.Contains(out, "Nothing due") {
		t.Errorf("10:45 is outside the widened window, got %q", out)
	}
	out = mustRun(t, dataDir, "due", "--time", "10:20")
	if !strings.Contains(out, "Vitamin D") {
		t.Errorf("10:20 is inside the widened window, got %q", out)
	}
	out = mustRun(t, dataDir, "due", "--time", "10:20", "--reminder", "5")
	if !strings.Contains(out, "Nothing due") {
		t.Errorf("--reminder 5 should only widen the window to 10:05, got %q", out)
	}
	if _, err := runCLI(t, dataDir, "due", "--reminder", "0"); err == nil {
		t.Error("Expected error for a zero reminder window")
	}

	out = mustRun(t, dataDir, "take", "vitd")
	if !strings.Contains(out, "✓ Took Vitamin D") || !strings.Contains(out, "29 pills left") {
		t.Errorf("take output = %q", out)
	}

	out = mustRun(t, dataDir, "take", "vitd")
	if !strings.Contains(out, "29 pills left") || !strings.Contains(out, "stock unchanged") {
		t.Errorf("second take should not use more pills, got %q", out)
	}

	out = mustRun(t, dataDir, "due")
	if !strings.Contains(out, "Nothing due") {
		t.Errorf("taken medicine should not be due, got %q", out)
	}

	out = mustRun(t, dataDir, "skip", "vitd", "--date", "2024-01-02", "--reason", "side effects")
	if !strings.Contains(out, "○ Skipped Vitamin D (Side effects)") {
		t.Errorf("skip output = %q", out)
	}

	if _, err := runCLI(t, dataDir, "skip", "vitd", "--reason", "bored"); err == nil {
		t.Error("Expected error for unknown skip reason")
	}
	if _, err := runCLI(t, dataDir, "take", "nope"); err == nil {
		t.Error("Expected error for unknown medicine")
	}
	if _, err := runCLI(t, dataDir, "take", "vitd", "--window", "brunch"); err == nil {
		t.Error("Expected error for an unknown window label")
	}
}

func TestBatchTakeCmd(t *testing.T) {
	dataDir := setupTestCLI(t)
	addVitaminD(t, dataDir)
	mustRun(t, dataDir, "add", "Iron", "65mg", "--id", "iron",
		"--window", "morning", "--start", "07:00", "--end", "09:00", "--pills", "3", "--low", "5")

	out := mustRun(t, dataDir, "batch-take", "vitd", "iron", "ghost")
	for _, want := range []string{"✓ Took Vitamin D", "✓ Took Iron", "running low", "? Not found: ghost"} {
		if !strings.Contains(out, want) {
			t.Errorf("batch-take output missing %q:\n%s", want, out)
		}
	}

	args := []string{"batch-take"}
	for i := 0; i < 21; i++ {
		args = append(args, "vitd")
	}
	if _, err := runCLI(t, dataDir, args...); err == nil {
		t.Error("Expected error for more than 20 IDs")
	}
}

func TestRestockAndLowStockCmd(t *testing.T) {
	dataDir := setupTestCLI(t)
	mustRun(t, dataDir, "add", "Iron", "65mg", "--id", "iron",
		"--window", "morning", "--start", "07:00", "--end", "09:00", "--pills", "3", "--low", "5")

	out := mustRun(t, dataDir, "low-stock")
	if !strings.Contains(out, "Iron") || !strings.Contains(out, "3 left") || !strings.Contains(out, "~3.0 days") {
		t.Errorf("low-stock output = %q", out)
	}

	out = mustRun(t, dataDir, "restock", "iron", "30")
	if !strings.Contains(out, "✓ Restocked Iron: 33 pills") {
		t.Errorf("restock output = %q", out)
	}

	out = mustRun(t, dataDir, "low-stock")
	if !strings.Contains(out, "Stock is fine.") {
		t.Errorf("low-stock after restock = %q", out)
	}

	for _, bad := range []string{"0", "1001", "lots"} {
		if _, err := runCLI(t, dataDir, "restock", "iron", bad); err == nil {
			t.Errorf("restock %s should fail", bad)
		}
	}
}

func TestTodayAdherenceHistoryCmd(t *testing.T) {
	dataDir := setupTestCLI(t)
	addVitaminD(t, dataDir)

	mustRun(t, dataDir, "take", "vitd", "--date", "2023-12-30", "--at", "2023-12-30 07:00")
	mustRun(t, dataDir, "skip", "vitd", "--date", "2023-12-31", "--reason", "forgot")

	out := mustRun(t, dataDir, "today")
	if !strings.Contains(out, "2024-01-01 (mon)") || !strings.Contains(out, "1 scheduled, 0 taken, 0 skipped, 1 pending") {
		t.Errorf("today output = %q", out)
	}
	if !strings.Contains(out, "Due now:") {
		t.Errorf("today should list what is due, got %q", out)
	}

	out = mustRun(t, dataDir, "adherence", "--from", "2023-12-30", "--to", "2024-01-01", "--daily")
	if !strings.Contains(out, "1 taken, 1 skipped, 1 missed of 3") {
		t.Errorf("adherence output = %q", out)
	}
	if !strings.Contains(out, "33.3%") {
		t.Errorf("adherence rate missing, got %q", out)
	}
	if !strings.Contains(out, "2023-12-31 sun") {
		t.Errorf("adherence --daily should list days, got %q", out)
	}

	if _, err := runCLI(t, dataDir, "adherence", "--from", "2024-01-02", "--to", "2024-01-01"); err == nil {
		t.Error("Expected error for reversed range")
	}

	out = mustRun(t, dataDir, "history")
	if !strings.Contains(out, "2023-12-31 morning   ○ skipped Vitamin D (Forgot)") {
		t.Errorf("history output = %q", out)
	}
	if !strings.Contains(out, "✓ taken   Vitamin D at 07:00") {
		t.Errorf("history should show taken time, got %q", out)
	}
	if strings.Index(out, "2023-12-31") > strings.Index(out, "2023-12-30") {
		t.Errorf("history should be newest first, got %q", out)
	}

	out = mustRun(t, dataDir, "history", "--status", "taken")
	if strings.Contains(out, "skipped") {
		t.Errorf("history --status taken should hide skips, got %q", out)
	}

	if _, err := runCLI(t, dataDir, "history", "--status", "maybe"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestExportImportCmd(t *testing.T) {
	dataDir := setupTestCLI(t)
	addVitaminD(t, dataDir)
	mustRun(t, dataDir, "take", "vitd")

	backup := filepath.Join(t.TempDir(), "backup.json")
	out := mustRun(t, dataDir, "export", "json", "-o", backup)
	if !strings.Contains(out, "✓ Exported to") {
		t.Errorf("export output = %q", out)
	}

	raw, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var data storage.ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(data.Medicines) != 1 || len(data.Doses) != 1 {
		t.Errorf("export has %d medicines and %d doses", len(data.Medicines), len(data.Doses))
	}

	out = mustRun(t, dataDir, "export", "markdown")
	if !strings.Contains(out, "| Vitamin D |") {
		t.Errorf("markdown export = %q", out)
	}
	out = mustRun(t, dataDir, "export", "yaml")
	if !strings.Contains(out, "name: Vitamin D") {
		t.Errorf("yaml export = %q", out)
	}
	if _, err := runCLI(t, dataDir, "export", "csv"); err == nil {
		t.Error("Expected error for unknown format")
	}

	fresh := t.TempDir()
	out = mustRun(t, fresh, "import", backup)
	if !strings.Contains(out, "✓ Imported 1 medicines and 1 doses") {
		t.Errorf("import output = %q", out)
	}
	out = mustRun(t, fresh, "show", "vitd")
	if !strings.Contains(out, "29 pills") {
		t.Errorf("imported medicine = %q", out)
	}

	if _, err := runCLI(t, fresh, "import", backup); err == nil {
		t.Error("importing the same IDs twice should fail")
	}
}

func TestMigrateCmd(t *testing.T) {
	dataDir := setupTestCLI(t)
	addVitaminD(t, dataDir)
	mustRun(t, dataDir, "take", "vitd")

	out := mustRun(t, dataDir, "migrate", "--to", "badger", "--dry-run")
	if !strings.Contains(out, "Would copy 1 medicines and 1 doses") {
		t.Errorf("dry run output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "badger")); !os.IsNotExist(err) {
		t.Error("dry run should not create the target")
	}

	out = mustRun(t, dataDir, "migrate", "--to", "badger")
	if !strings.Contains(out, "✓ Migrated 1 medicines and 1 doses to badger") {
		t.Errorf("migrate output = %q", out)
	}

	out = mustRun(t, dataDir, "--backend", "badger", "show", "vitd")
	if !strings.Contains(out, "29 pills") {
		t.Errorf("badger copy = %q", out)
	}

	if _, err := runCLI(t, dataDir, "migrate", "--to", "badger"); err == nil {
		t.Error("migrating into a non-empty target should fail")
	}
	if _, err := runCLI(t, dataDir, "migrate", "--to", "sqlite"); err == nil {
		t.Error("migrating onto the current storage should fail")
	}
	if _, err := runCLI(t, dataDir, "migrate", "--to", "postgres"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestInvalidBackendFlag(t *testing.T) {
	dataDir := setupTestCLI(t)
	if _, err := runCLI(t, dataDir, "--backend", "mysql", "list"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
