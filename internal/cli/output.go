package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// PermitResult is the outcome of scraping one permit.
type PermitResult struct {
	Record     permit.Flat     `json:"record"`
	Changes    []permit.Change `json:"changes,omitempty"`
	ExportPath string          `json:"export_path,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ScrapeResult summarizes a scrape run.
type ScrapeResult struct {
	RunID       string         `json:"run_id"`
	CheckedAt   time.Time      `json:"checked_at"`
	Requested   int            `json:"requested"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Permits     []PermitResult `json:"permits"`
	Unattempted []string       `json:"unattempted,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// WriteScrapeResult writes a run summary in the given format.
func WriteScrapeResult(w io.Writer, result *ScrapeResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	for _, p := range result.Permits {
		r := p.Record
		status := "OK"
		if len(r.ExtractionErrors) > 0 {
			status = "ERRORS"
		}
		fmt.Fprintf(w, "%s: %s (completeness %.1f%%)\n", status, r.PermitNumber, r.CompletenessScore)
		for _, e := range r.ExtractionErrors {
			fmt.Fprintf(w, "     error: %s\n", e)
		}
		for _, c := range p.Changes {
			fmt.Fprintf(w, "     %s\n", describeChange(c))
		}
		if verbose {
			if r.Status != nil {
				fmt.Fprintf(w, "     Status: %s\n", *r.Status)
			}
			if r.JobValueValidationFlag != nil {
				fmt.Fprintf(w, "     Job value flag: %s\n", *r.JobValueValidationFlag)
			}
			if p.ExportPath != "" {
				fmt.Fprintf(w, "     Exported: %s\n", p.ExportPath)
			}
		}
	}
	for _, n := range result.Unattempted {
		fmt.Fprintf(w, "SKIPPED: %s\n", n)
	}
	fmt.Fprintf(w, "\nTotal: %d requested, %d succeeded, %d failed\n", result.Requested, result.Succeeded, result.Failed)
	return nil
}

func describeChange(c permit.Change) string {
	if c.Kind == permit.ChangeNew {
		return "new permit"
	}
	return fmt.Sprintf("%s: %q -> %q", c.Field, c.Old, c.New)
}

// WriteRecord writes one permit record.
func WriteRecord(w io.Writer, rec *permit.Record, history []permit.Change, format OutputFormat) error {
	if format == FormatJSON {
		out := struct {
			permit.Flat
			History []permit.Change `json:"history,omitempty"`
		}{permit.ToFlat(rec), history}
		return writeJSON(w, out)
	}
	if format != FormatText {
		return fmt.Errorf("unknown format: %s", format)
	}

	fmt.Fprintf(w, "%s (completeness %.1f%%)\n", rec.PermitNumber, rec.CompletenessScore)
	for _, f := range permit.AllFields[1:] {
		if v := rec.Text(f); v != "" {
			fmt.Fprintf(w, "  %-22s %s\n", string(f)+":", v)
		}
	}
	if days, ok := rec.DaysUntilExpiration(time.Now()); ok {
		if days < 0 {
			fmt.Fprintf(w, "  expired %d days ago\n", -days)
		} else {
			fmt.Fprintf(w, "  expires in %d days\n", days)
		}
	}
	for _, fee := range rec.ItemizedFees {
		fmt.Fprintf(w, "  fee: %-30s $%.2f %s\n", fee.Description, fee.Amount, fee.Status)
	}
	if rec.RelatedPermits.Len() > 0 {
		fmt.Fprintf(w, "  related: %s\n", strings.Join(rec.RelatedPermits.Sorted(), ", "))
	}
	if rec.DataQualityFlags.Len() > 0 {
		fmt.Fprintf(w, "  quality flags: %s\n", strings.Join(rec.DataQualityFlags.Sorted(), ", "))
	}
	for _, e := range rec.ExtractionErrors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	if len(history) > 0 {
		fmt.Fprintln(w, "\nHistory:")
		for _, c := range history {
			fmt.Fprintf(w, "  %s  %s\n", c.DetectedAt.Format(time.RFC3339), describeChange(c))
		}
	}
	return nil
}

// WriteList writes a table of stored permits.
func WriteList(w io.Writer, records []*permit.Record, format OutputFormat) error {
	if format == FormatJSON {
		flat := make([]permit.Flat, len(records))
		for i, r := range records {
			flat[i] = permit.ToFlat(r)
		}
		return writeJSON(w, flat)
	}
	if format != FormatText {
		return fmt.Errorf("unknown format: %s", format)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No permits found.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(w, "%-16s %-12s %6.1f%%  %s\n", r.PermitNumber, orDash(r.Status), r.CompletenessScore, orDash(r.Address))
	}
	fmt.Fprintf(w, "\nTotal: %d permits\n", len(records))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
