package extract

import (
	"regexp"
	"strings"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/parse"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
	"github.com/pfrederiksen/permit-scraper/internal/quality"
)

// Address validation flags.
const (
	AddressParsed   = "parsed"
	AddressFallback = "fallback"
)

var permitNumberRe = regexp.MustCompile(`^[A-Z]{2,3}-\d{4}-\d+$`)

// Builder accumulates page reads into one record.
type Builder struct {
	rec    *permit.Record
	tagger parse.Tagger
	th     quality.Thresholds
}

// NewBuilder starts a record for number. An empty number leaves the record
// unidentified until a permit number label is assigned.
func NewBuilder(number string, tagger parse.Tagger, th quality.Thresholds) *Builder {
	return &Builder{
		rec:    permit.New(number),
		tagger: tagger,
		th:     th,
	}
}

// Record returns the record being built.
func (b *Builder) Record() *permit.Record {
	return b.rec
}

// Assign maps one label/value pair onto the record. It reports whether a
// rule matched. Values that parse to nothing leave the field untouched.
func (b *Builder) Assign(p browser.Pair) bool {
	rule, ok := Match(p.Label)
	if !ok {
		logger.Debug("Unmapped label", logger.Fields{"label": p.Label})
		return false
	}

	switch rule.Kind {
	case KindCurrency:
		if v := parse.Currency(p.Value); v.OK() {
			*b.rec.AmountField(rule.Field) = v.Ptr()
		}
	case KindInteger:
		if v := parse.Integer(p.Value); v.OK() {
			*b.rec.CountField(rule.Field) = v.Ptr()
		}
	case KindAddress:
		v, ok := parse.Text(p.Value).Get()
		if !ok {
			break
		}
		b.rec.Address = v
		b.rec.ParsedAddress = parse.Address(v, b.tagger)
		if b.rec.ParsedAddress.ParsedType == parse.ParsedTypeFallback {
			b.rec.AddressValidationFlag = AddressFallback
		} else {
			b.rec.AddressValidationFlag = AddressParsed
		}
	case KindDate:
		if v, ok := parse.Date(p.Value).Get(); ok {
			*b.rec.TextField(rule.Field) = v
		}
	default:
		v, ok := parse.Text(p.Value).Get()
		if !ok {
			break
		}
		if rule.Field == permit.FieldPermitNumber {
			if !b.rec.Identified() {
				b.rec.PermitNumber = v
			}
			break
		}
		*b.rec.TextField(rule.Field) = v
	}
	return true
}

// Fees records the itemized fee rows.
func (b *Builder) Fees(rows []browser.Row) {
	b.rec.ItemizedFees = ParseFees(rows)
}

// Related records related permit numbers from link texts.
func (b *Builder) Related(links []string) {
	for _, n := range RelatedPermits(links) {
		b.rec.AddRelated(n)
	}
}

// Inspections records the inspection tally. A table with no data rows
// leaves the counts absent.
func (b *Builder) Inspections(rows []browser.Row) {
	t, ok := TallyInspections(rows)
	if !ok {
		return
	}
	b.rec.InspectionsCount = &t.Total
	b.rec.PassedInspections = &t.Passed
	b.rec.FailedInspections = &t.Failed
	b.rec.PendingInspections = &t.Pending
}

// Build validates and scores the record and returns it.
func (b *Builder) Build() *permit.Record {
	quality.ValidateRecord(b.rec, b.th)
	quality.Rescore(b.rec)
	return b.rec
}

// ParseFees reads fee rows after the header. Rows need at least three
// cells; rows whose amount does not parse are left out.
func ParseFees(rows []browser.Row) []permit.Fee {
	var fees []permit.Fee
	if len(rows) < 2 {
		return fees
	}
	for _, row := range rows[1:] {
		if len(row) < 3 {
			continue
		}
		amount, ok := parse.Currency(row[1]).Get()
		if !ok {
			continue
		}
		fees = append(fees, permit.Fee{
			Description: strings.TrimSpace(row[0]),
			Amount:      amount,
			Status:      strings.TrimSpace(row[2]),
		})
	}
	return fees
}

// RelatedPermits returns the distinct link texts shaped like a permit
// number, in first-seen order.
func RelatedPermits(links []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range links {
		l = strings.TrimSpace(l)
		if !permitNumberRe.MatchString(l) || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Tally counts inspection outcomes.
type Tally struct {
	Total   int
	Passed  int
	Failed  int
	Pending int
}

// TallyInspections counts the rows after the header and classifies every
// cell by keyword: pass, else fail, else pending or scheduled. Cells are
// classified independently, so one row can count toward several outcomes.
// ok is false when the table has no data rows.
func TallyInspections(rows []browser.Row) (t Tally, ok bool) {
	if len(rows) < 2 {
		return Tally{}, false
	}
	t.Total = len(rows) - 1
	for _, row := range rows[1:] {
		for _, cell := range row {
			text := strings.ToLower(cell)
			switch {
			case strings.Contains(text, "pass"):
				t.Passed++
			case strings.Contains(text, "fail"):
				t.Failed++
			case strings.Contains(text, "pending"), strings.Contains(text, "scheduled"):
				t.Pending++
			}
		}
	}
	return t, true
}
