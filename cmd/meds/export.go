// ABOUTME: CLI commands for exporting and importing medicine data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats.
package main

import (
	"fmt"
	"os"

	"github.com/harperreed/meds/internal/models"
	"github.com/harperreed/meds/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export medicine data",
	Long: `Export medicines and dose history in various formats.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable)
  markdown   Markdown tables (for documentation/sharing)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --since        Only include doses since this date (markdown only)

EXAMPLES:

  meds export json                        # Export all data as JSON
  meds export json -o backup.json         # Save to file
  meds export yaml                        # Export as YAML
  meds export markdown --since 2024-01-01 # Doses from 2024 onward`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format := args[0]
		now := clock.Now()

		var data []byte
		var err error

		switch format {
		case "json":
			data, err = storage.ExportJSON(ctx, repo, now)
		case "yaml":
			data, err = storage.ExportYAML(ctx, repo, now)
		case "markdown":
			var since *models.Date
			if exportSince != "" {
				d, err := parseDateFlag("since", exportSince)
				if err != nil {
					return err
				}
				since = &d
			}
			md, err := storage.ExportMarkdown(ctx, repo, now, since)
			if err != nil {
				return err
			}
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			success.Fprintf(out, "✓ Exported to %s\n", exportOutput)
		} else {
			fmt.Fprintln(out, string(data))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import medicine data from JSON",
	Long: `Import medicines and dose history from a JSON backup file.

Duplicate medicine IDs cause an error and nothing is imported.

EXAMPLES:

  meds import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		sum, err := storage.ImportJSON(cmd.Context(), repo, data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		success.Fprintf(cmd.OutOrStdout(), "✓ Imported %d medicines and %d doses from %s\n",
			sum.Medicines, sum.Doses, filename)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include doses since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
