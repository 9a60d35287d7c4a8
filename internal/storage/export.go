// ABOUTME: Export and import functionality for medicine data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats over any Repository.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/meds/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion is the current export file format version.
const ExportVersion = "1.0"

// ExportData represents the full export format for medicine data.
type ExportData struct {
	Version    string              `json:"version" yaml:"version"`
	ExportedAt time.Time           `json:"exported_at" yaml:"exported_at"`
	Tool       string              `json:"tool" yaml:"tool"`
	Medicines  []*models.Medicine  `json:"medicines" yaml:"medicines"`
	Doses      []*models.DoseEvent `json:"doses" yaml:"doses"`
}

// ImportSummary holds counts of imported entities.
type ImportSummary struct {
	Medicines int
	Doses     int
}

// GetAllData reads every medicine and ledger row in one snapshot.
func GetAllData(ctx context.Context, repo Repository, exportedAt time.Time) (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: exportedAt,
		Tool:       "meds",
	}

	err := repo.View(ctx, func(s Store) error {
		medicines, err := s.ListMedicines(ctx, MedicineFilter{})
		if err != nil {
			return fmt.Errorf("list medicines: %w", err)
		}
		page, err := s.QueryDoses(ctx, DoseFilter{PerPage: -1})
		if err != nil {
			return fmt.Errorf("list doses: %w", err)
		}
		data.Medicines = medicines
		data.Doses = page.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	if data.Medicines == nil {
		data.Medicines = []*models.Medicine{}
	}
	if data.Doses == nil {
		data.Doses = []*models.DoseEvent{}
	}
	return data, nil
}

// ImportData writes an export into repo in a single transaction. IDs and
// timestamps are preserved. Every record is validated before anything is
// written; an invalid record or an existing medicine ID fails the whole import.
func ImportData(ctx context.Context, repo Repository, data *ExportData) (*ImportSummary, error) {
	medicines := make([]*models.Medicine, 0, len(data.Medicines))
	for i, m := range data.Medicines {
		if m == nil {
			return nil, models.NewValidationError(fmt.Sprintf("medicines[%d]", i), "is empty")
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("import medicine %q: %w", m.ID, err)
		}
		spec := models.SpecFromMedicine(m)
		spec.Normalize()
		med := *m
		spec.ApplyTo(&med)
		medicines = append(medicines, &med)
	}

	doses := make([]*models.DoseEvent, 0, len(data.Doses))
	for i, e := range data.Doses {
		if e == nil {
			return nil, models.NewValidationError(fmt.Sprintf("doses[%d]", i), "is empty")
		}
		dose := *e
		dose.MedicineName = ""
		if err := dose.ValidateResolution(); err != nil {
			return nil, fmt.Errorf("import dose %s: %w", e.Key(), err)
		}
		doses = append(doses, &dose)
	}

	var summary ImportSummary
	err := repo.Update(ctx, func(s Store) error {
		summary = ImportSummary{}
		for _, m := range medicines {
			med := *m
			if err := s.CreateMedicine(ctx, &med); err != nil {
				return fmt.Errorf("import medicine %s: %w", m.ID, err)
			}
			summary.Medicines++
		}
		for _, e := range doses {
			dose := *e
			if _, err := s.UpsertDose(ctx, &dose); err != nil {
				return fmt.Errorf("import dose %s: %w", e.Key(), err)
			}
			summary.Doses++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ExportJSON exports all data as JSON.
func ExportJSON(ctx context.Context, repo Repository, exportedAt time.Time) ([]byte, error) {
	data, err := GetAllData(ctx, repo, exportedAt)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all data as YAML, with doses grouped by date.
func ExportYAML(ctx context.Context, repo Repository, exportedAt time.Time) ([]byte, error) {
	data, err := GetAllData(ctx, repo, exportedAt)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version    string                `yaml:"version"`
		ExportedAt string                `yaml:"exported_at"`
		Tool       string                `yaml:"tool"`
		Medicines  []yamlMedicine        `yaml:"medicines"`
		Doses      map[string][]yamlDose `yaml:"doses"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Medicines:  make([]yamlMedicine, 0, len(data.Medicines)),
		Doses:      make(map[string][]yamlDose),
	}

	for _, m := range data.Medicines {
		yamlData.Medicines = append(yamlData.Medicines, yamlMedicine{
			ID:        m.ID,
			Name:      m.Name,
			Dosage:    m.Dosage,
			Window:    fmt.Sprintf("%s %s-%s", m.WindowLabel, m.WindowStart, m.WindowEnd),
			Days:      m.DaysString(),
			WithFood:  m.WithFood,
			Pills:     m.PillsRemaining,
			PerDose:   m.PillsPerDose,
			Threshold: m.LowStockThreshold,
			Active:    m.Active,
			Notes:     m.Notes,
		})
	}

	for _, e := range data.Doses {
		yd := yamlDose{
			Medicine: e.MedicineID,
			Window:   string(e.WindowLabel),
			Status:   string(e.Status()),
			Reason:   string(e.SkipReason),
		}
		switch {
		case e.TakenAt != nil && e.Taken:
			yd.At = e.TakenAt.Format(time.RFC3339)
		case e.SkipAt != nil && e.Skipped:
			yd.At = e.SkipAt.Format(time.RFC3339)
		}
		day := e.Date.String()
		yamlData.Doses[day] = append(yamlData.Doses[day], yd)
	}

	return yaml.Marshal(yamlData)
}

type yamlMedicine struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Dosage    string `yaml:"dosage"`
	Window    string `yaml:"window"`
	Days      string `yaml:"days"`
	WithFood  bool   `yaml:"with_food,omitempty"`
	Pills     int    `yaml:"pills_remaining"`
	PerDose   int    `yaml:"pills_per_dose"`
	Threshold int    `yaml:"low_stock_threshold"`
	Active    bool   `yaml:"active"`
	Notes     string `yaml:"notes,omitempty"`
}

type yamlDose struct {
	Medicine string `yaml:"medicine"`
	Window   string `yaml:"window"`
	Status   string `yaml:"status"`
	At       string `yaml:"at,omitempty"`
	Reason   string `yaml:"reason,omitempty"`
}

// ExportMarkdown exports medicines and dose history as Markdown tables.
// When since is set, only doses on or after that date are listed.
func ExportMarkdown(ctx context.Context, repo Repository, exportedAt time.Time, since *models.Date) (string, error) {
	data, err := GetAllData(ctx, repo, exportedAt)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Medicine Export - %s\n\n", exportedAt.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", exportedAt.Format(time.RFC3339)))

	sb.WriteString("## Medicines\n\n")
	sb.WriteString("| Name | Dosage | Window | Days | Pills | Active |\n")
	sb.WriteString("|------|--------|--------|------|-------|--------|\n")
	for _, m := range data.Medicines {
		active := "yes"
		if !m.Active {
			active = "no"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s %s-%s | %s | %d | %s |\n",
			m.Name, m.Dosage, m.WindowLabel, m.WindowStart, m.WindowEnd,
			m.DaysString(), m.PillsRemaining, active))
	}

	names := make(map[string]string, len(data.Medicines))
	for _, m := range data.Medicines {
		names[m.ID] = m.Name
	}

	var doses []*models.DoseEvent
	for _, e := range data.Doses {
		if since != nil && e.Date.Before(*since) {
			continue
		}
		doses = append(doses, e)
	}

	if len(doses) > 0 {
		sb.WriteString("\n## Dose History\n\n")
		sb.WriteString("| Date | Window | Medicine | Status | Reason |\n")
		sb.WriteString("|------|--------|----------|--------|--------|\n")
		for _, e := range doses {
			name := names[e.MedicineID]
			if name == "" {
				name = e.MedicineID + " (deleted)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				e.Date, e.WindowLabel, name, e.Status(), e.SkipReason))
		}
	}

	return sb.String(), nil
}

// ImportJSON imports data from JSON bytes.
func ImportJSON(ctx context.Context, repo Repository, raw []byte) (*ImportSummary, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return ImportData(ctx, repo, &data)
}
