// Package export writes permit records to XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
	"github.com/pfrederiksen/permit-scraper/internal/quality"
)

const (
	SheetPermits = "Permits"
	SheetFees    = "Fees"
)

// Options controls an export.
type Options struct {
	// Gate skips records that fail quality.Gate.
	Gate bool
}

// Result summarizes an export.
type Result struct {
	Exported int `json:"exported"`
	Fees     int `json:"fees"`
	// Skipped maps rejected permit numbers to the gate's reason.
	Skipped map[string]string `json:"skipped,omitempty"`
}

type cellKind int

const (
	cellText cellKind = iota
	cellDate
	cellMoney
	cellNumber
)

type column struct {
	header string
	width  float64
	kind   cellKind
	value  func(r *permit.Record) any
}

func text(f permit.Field) func(r *permit.Record) any {
	return func(r *permit.Record) any { return r.Text(f) }
}

func date(f permit.Field) func(r *permit.Record) any {
	return func(r *permit.Record) any {
		raw := r.Text(f)
		if t := permit.ParseDate(raw); !t.IsZero() {
			return t
		}
		return raw
	}
}

func amount(f permit.Field) func(r *permit.Record) any {
	return func(r *permit.Record) any {
		if p := *r.AmountField(f); p != nil {
			return *p
		}
		return nil
	}
}

func count(f permit.Field) func(r *permit.Record) any {
	return func(r *permit.Record) any {
		if p := *r.CountField(f); p != nil {
			return *p
		}
		return nil
	}
}

var permitColumns = []column{
	{"Permit Number", 16, cellText, text(permit.FieldPermitNumber)},
	{"Type", 24, cellText, text(permit.FieldPermitType)},
	{"Subtype", 24, cellText, text(permit.FieldPermitSubtype)},
	{"Status", 14, cellText, text(permit.FieldStatus)},
	{"Address", 40, cellText, text(permit.FieldAddress)},
	{"City", 16, cellText, func(r *permit.Record) any { return r.ParsedAddress.City }},
	{"Zip", 8, cellText, func(r *permit.Record) any { return r.ParsedAddress.Zip }},
	{"Parcel", 16, cellText, text(permit.FieldParcelNumber)},
	{"Owner", 24, cellText, text(permit.FieldOwnerName)},
	{"Contractor", 24, cellText, text(permit.FieldContractorName)},
	{"Applied", 12, cellDate, date(permit.FieldAppliedDate)},
	{"Issued", 12, cellDate, date(permit.FieldIssuedDate)},
	{"Finaled", 12, cellDate, date(permit.FieldFinalDate)},
	{"Expires", 12, cellDate, date(permit.FieldExpirationDate)},
	{"Job Value", 14, cellMoney, amount(permit.FieldJobValue)},
	{"Total Fees", 12, cellMoney, amount(permit.FieldTotalFees)},
	{"Square Feet", 12, cellNumber, count(permit.FieldSquareFootage)},
	{"Inspections", 12, cellNumber, count(permit.FieldInspectionsCount)},
	{"Passed", 8, cellNumber, count(permit.FieldPassedInspections)},
	{"Failed", 8, cellNumber, count(permit.FieldFailedInspections)},
	{"Pending", 8, cellNumber, count(permit.FieldPendingInspections)},
	{"Completeness", 12, cellNumber, func(r *permit.Record) any { return r.CompletenessScore }},
	{"Quality Flags", 28, cellText, func(r *permit.Record) any { return strings.Join(r.DataQualityFlags.Sorted(), ", ") }},
	{"Errors", 40, cellText, func(r *permit.Record) any { return strings.Join(r.ExtractionErrors, "; ") }},
	{"Scraped", 22, cellText, func(r *permit.Record) any { return r.ScrapedTimestamp }},
}

var feeHeaders = []string{"Permit Number", "Description", "Amount", "Status"}

type styles struct {
	header, date, money int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	if s.date, err = f.NewStyle(&excelize.Style{NumFmt: 14}); err != nil {
		return s, err
	}
	money := "$#,##0.00"
	if s.money, err = f.NewStyle(&excelize.Style{CustomNumFmt: &money}); err != nil {
		return s, err
	}
	return s, nil
}

// WriteXLSX writes records to w as a workbook with a Permits sheet and a
// Fees sheet.
func WriteXLSX(w io.Writer, records []*permit.Record, opts Options) (Result, error) {
	start := time.Now()
	res := Result{Skipped: make(map[string]string)}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPermits); err != nil {
		return res, fmt.Errorf("creating sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetFees); err != nil {
		return res, fmt.Errorf("creating sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return res, fmt.Errorf("creating styles: %w", err)
	}

	for i, c := range permitColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetPermits, cell, c.header)
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetPermits, name, name, c.width)
	}
	for i, h := range feeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetFees, cell, h)
	}
	_ = f.SetRowStyle(SheetPermits, 1, 1, st.header)
	_ = f.SetRowStyle(SheetFees, 1, 1, st.header)

	row, feeRow := 2, 2
	for _, r := range records {
		if opts.Gate {
			if ok, reason := quality.Gate(r); !ok {
				logger.Warn("Permit failed export gate", logger.Fields{"permit_number": r.PermitNumber, "reason": reason})
				res.Skipped[r.PermitNumber] = reason
				continue
			}
		}

		for i, c := range permitColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			v := c.value(r)
			if v == nil {
				continue
			}
			if err := f.SetCellValue(SheetPermits, cell, v); err != nil {
				return res, fmt.Errorf("writing %s for %s: %w", c.header, r.PermitNumber, err)
			}
			switch c.kind {
			case cellMoney:
				_ = f.SetCellStyle(SheetPermits, cell, cell, st.money)
			case cellDate:
				if _, ok := v.(time.Time); ok {
					_ = f.SetCellStyle(SheetPermits, cell, cell, st.date)
				}
			}
		}
		row++
		res.Exported++

		for _, fee := range r.ItemizedFees {
			values := []any{r.PermitNumber, fee.Description, fee.Amount, fee.Status}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, feeRow)
				_ = f.SetCellValue(SheetFees, cell, v)
			}
			amountCell, _ := excelize.CoordinatesToCellName(3, feeRow)
			_ = f.SetCellStyle(SheetFees, amountCell, amountCell, st.money)
			feeRow++
			res.Fees++
		}
	}

	_ = f.SetColWidth(SheetFees, "A", "A", 16)
	_ = f.SetColWidth(SheetFees, "B", "B", 32)
	_ = f.SetColWidth(SheetFees, "C", "D", 12)

	if _, err := f.WriteTo(w); err != nil {
		return res, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info("Exported permits", logger.Fields{
		"rows":       res.Exported,
		"fees":       res.Fees,
		"skipped":    len(res.Skipped),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return res, nil
}
