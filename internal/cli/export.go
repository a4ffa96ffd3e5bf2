package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/permit-scraper/internal/calendar"
	"github.com/pfrederiksen/permit-scraper/internal/export"
	"github.com/pfrederiksen/permit-scraper/internal/store"
)

// ExportResult reports what an export wrote.
type ExportResult struct {
	Workbook    string         `json:"workbook,omitempty"`
	XLSX        *export.Result `json:"xlsx,omitempty"`
	Calendar    string         `json:"calendar,omitempty"`
	Expirations int            `json:"expirations"`
}

func newExportCmd() *cobra.Command {
	var (
		opts         store.ListOptions
		xlsx         string
		ics          string
		gate         bool
		reminderDays int
	)

	cmd := &cobra.Command{
		Use:   "export [--xlsx <workbook.xlsx>] [--ics <calendar.ics>]",
		Short: "Export stored permits to a spreadsheet or calendar",
		Long: `Write stored permits to an XLSX workbook (permits and fees sheets)
and/or an iCalendar feed of permit expiration dates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			db, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			var result ExportResult
			if xlsx != "" {
				res, err := writeFile(xlsx, func(w io.Writer) (export.Result, error) {
					return export.WriteXLSX(w, records, export.Options{Gate: gate})
				})
				if err != nil {
					return err
				}
				result.Workbook, result.XLSX = xlsx, &res
			}
			if ics != "" {
				n, err := writeFile(ics, func(w io.Writer) (int, error) {
					return calendar.WriteExpirations(w, records, calendar.Options{
						DetailURL: func(number string) string {
							return fmt.Sprintf(cfg.Portal.DetailURLTemplate, url.QueryEscape(number))
						},
						ReminderDays: reminderDays,
					})
				})
				if err != nil {
					return err
				}
				result.Calendar, result.Expirations = ics, n
			}

			return writeExportResult(cmd.OutOrStdout(), &result, format())
		},
	}
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Workbook to write")
	cmd.Flags().StringVar(&ics, "ics", "", "Expiration calendar to write")
	cmd.Flags().BoolVar(&gate, "gate", false, "Skip permits without a plausible job value in the workbook")
	cmd.Flags().IntVar(&reminderDays, "reminder-days", 14, "Calendar alarm this many days before expiration (0 for none)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Only permits with this status")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "Minimum completeness score")
	cmd.MarkFlagsOneRequired("xlsx", "ics")
	return cmd
}

// writeFile creates path and hands it to write. The file is closed before
// returning.
func writeFile[T any](path string, write func(io.Writer) (T, error)) (T, error) {
	var zero T
	f, err := os.Create(path)
	if err != nil {
		return zero, fmt.Errorf("creating %s: %w", path, err)
	}
	res, err := write(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", path, cerr)
	}
	if err != nil {
		return zero, err
	}
	return res, nil
}

func writeExportResult(w io.Writer, result *ExportResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, result)
	}
	if result.XLSX != nil {
		res := result.XLSX
		fmt.Fprintf(w, "Exported %d permits (%d fees) to %s\n", res.Exported, res.Fees, result.Workbook)
		skipped := make([]string, 0, len(res.Skipped))
		for number := range res.Skipped {
			skipped = append(skipped, number)
		}
		sort.Strings(skipped)
		for _, number := range skipped {
			fmt.Fprintf(w, "  skipped %s: %s\n", number, res.Skipped[number])
		}
	}
	if result.Calendar != "" {
		fmt.Fprintf(w, "Wrote %d expirations to %s\n", result.Expirations, result.Calendar)
	}
	return nil
}
