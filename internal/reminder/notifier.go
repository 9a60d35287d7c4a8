// ABOUTME: Console notifier that prints reminders with colored output.
package reminder

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/harperreed/meds/internal/engine"
	"github.com/harperreed/meds/internal/models"
)

// ConsoleNotifier writes reminders to Out.
type ConsoleNotifier struct {
	Out io.Writer
}

var (
	dueColor  = color.New(color.FgCyan, color.Bold)
	warnColor = color.New(color.FgYellow)
	faint     = color.New(color.Faint)
)

func (n ConsoleNotifier) Due(_ context.Context, date models.Date, pending []engine.PendingMedicine) error {
	if _, err := dueColor.Fprintf(n.Out, "Time to take (%s):\n", date); err != nil {
		return err
	}
	for _, p := range pending {
		m := p.Medicine
		line := fmt.Sprintf("  %s %s  %s %s-%s", m.Name, m.Dosage, m.WindowLabel, m.WindowStart, m.WindowEnd)
		if m.WithFood {
			line += " (with food)"
		}
		if _, err := fmt.Fprintln(n.Out, line); err != nil {
			return err
		}
		if p.LowStock {
			if _, err := warnColor.Fprintf(n.Out, "    only %d left\n", p.PillsRemaining); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n ConsoleNotifier) LowStock(_ context.Context, date models.Date, low []engine.LowStockMedicine) error {
	if _, err := warnColor.Fprintf(n.Out, "Low stock (%s):\n", date); err != nil {
		return err
	}
	for _, l := range low {
		if _, err := fmt.Fprintf(n.Out, "  %s: %d left ", l.Medicine.Name, l.PillsRemaining); err != nil {
			return err
		}
		if _, err := faint.Fprintf(n.Out, "(~%.1f days)\n", l.DaysRemaining); err != nil {
			return err
		}
	}
	return nil
}
