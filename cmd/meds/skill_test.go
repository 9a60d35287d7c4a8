// ABOUTME: Tests for the install-skill command.
// ABOUTME: Validates skill installation, confirmation, and file content.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestSkillEmbedded(t *testing.T) {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		t.Fatalf("Failed to read embedded skill: %v", err)
	}

	for _, marker := range []string{"name: meds", "meds take", "meds due", "meds adherence"} {
		if !strings.Contains(string(content), marker) {
			t.Errorf("SKILL.md missing %q", marker)
		}
	}
}

func TestInstallSkillWritesFile(t *testing.T) {
	home := t.TempDir()
	origNoColor := color.NoColor
	color.NoColor = true
	skillSkipConfirm = true
	t.Cleanup(func() {
		skillSkipConfirm = false
		color.NoColor = origNoColor
	})

	var out bytes.Buffer
	if err := installSkill(&out, strings.NewReader(""), home); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}

	skillPath := filepath.Join(home, ".claude", "skills", "meds", "SKILL.md")
	written, err := os.ReadFile(skillPath)
	if err != nil {
		t.Fatalf("Skill file not created: %v", err)
	}
	embedded, _ := skillFS.ReadFile("skill/SKILL.md")
	if !bytes.Equal(written, embedded) {
		t.Error("Installed skill differs from embedded skill")
	}
	if !strings.Contains(out.String(), "✓ Installed meds skill") {
		t.Errorf("output = %q", out.String())
	}

	// Second install notes the overwrite.
	out.Reset()
	if err := installSkill(&out, strings.NewReader(""), home); err != nil {
		t.Fatalf("second installSkill failed: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("expected overwrite note, got %q", out.String())
	}
}

func TestInstallSkillConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		installed bool
	}{
		{"yes", "y\n", true},
		{"full yes", "YES\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			skillSkipConfirm = false

			var out bytes.Buffer
			if err := installSkill(&out, strings.NewReader(tt.answer), home); err != nil {
				t.Fatalf("installSkill failed: %v", err)
			}

			_, err := os.Stat(filepath.Join(home, ".claude", "skills", "meds", "SKILL.md"))
			if got := err == nil; got != tt.installed {
				t.Errorf("installed = %v, want %v (output %q)", got, tt.installed, out.String())
			}
			if !tt.installed && !strings.Contains(out.String(), "Installation canceled.") {
				t.Errorf("expected cancel message, got %q", out.String())
			}
		})
	}
}
