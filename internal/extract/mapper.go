// Package extract turns a permit detail page into a permit.Record.
package extract

import (
	"strings"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// Kind selects the parser a mapped value goes through.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindCurrency
	KindInteger
	KindAddress
)

// Rule assigns labels accepted by Match to Field.
type Rule struct {
	Name  string
	Match func(label string) bool
	Field permit.Field
	Kind  Kind
}

// has reports whether label contains every keyword.
func has(keywords ...string) func(string) bool {
	return func(label string) bool {
		for _, k := range keywords {
			if !strings.Contains(label, k) {
				return false
			}
		}
		return true
	}
}

// hasNot is has(keyword) unless label also contains exclude.
func hasNot(keyword, exclude string) func(string) bool {
	return func(label string) bool {
		return strings.Contains(label, keyword) && !strings.Contains(label, exclude)
	}
}

func anyOf(matchers ...func(string) bool) func(string) bool {
	return func(label string) bool {
		for _, m := range matchers {
			if m(label) {
				return true
			}
		}
		return false
	}
}

// Rules is evaluated top to bottom; the first match wins. Order resolves
// overlapping keywords ("work description" before "description" would never
// be reached, so "description" excludes "work" instead).
var Rules = []Rule{
	{"permit number", anyOf(has("permit number"), has("record number")), permit.FieldPermitNumber, KindText},
	{"permit type", has("permit type"), permit.FieldPermitType, KindText},
	{"sub type", has("sub type"), permit.FieldPermitSubtype, KindText},
	{"status", hasNot("status", "inspection"), permit.FieldStatus, KindText},
	{"description", hasNot("description", "work"), permit.FieldDescription, KindText},
	{"work description", has("work description"), permit.FieldWorkDescription, KindText},
	{"applied", has("applied"), permit.FieldAppliedDate, KindDate},
	{"issued", has("issued"), permit.FieldIssuedDate, KindDate},
	{"final date", has("final", "date"), permit.FieldFinalDate, KindDate},
	{"expire", has("expire"), permit.FieldExpirationDate, KindDate},
	{"last inspection", has("last inspection"), permit.FieldLastInspectionDate, KindDate},
	{"address", hasNot("address", "mail"), permit.FieldAddress, KindAddress},
	{"parcel", has("parcel"), permit.FieldParcelNumber, KindText},
	{"subdivision", has("subdivision"), permit.FieldSubdivision, KindText},
	{"lot", hasNot("lot", "size"), permit.FieldLot, KindText},
	{"lot size", has("lot size"), permit.FieldLotSize, KindText},
	{"block", has("block"), permit.FieldBlock, KindText},
	{"owner", has("owner"), permit.FieldOwnerName, KindText},
	{"contractor", hasNot("contractor", "license"), permit.FieldContractorName, KindText},
	{"license", has("license"), permit.FieldContractorLicense, KindText},
	{"applicant", has("applicant"), permit.FieldApplicantName, KindText},
	{"job value", anyOf(has("job value"), has("valuation")), permit.FieldJobValue, KindCurrency},
	{"total fee", has("total fee"), permit.FieldTotalFees, KindCurrency},
	{"fees paid", has("paid", "fee"), permit.FieldFeesPaid, KindCurrency},
	{"fees due", has("due", "fee"), permit.FieldFeesDue, KindCurrency},
	{"square footage", has("square"), permit.FieldSquareFootage, KindInteger},
	{"dwelling units", anyOf(has("dwelling"), has("unit")), permit.FieldDwellingUnits, KindInteger},
	{"stories", anyOf(has("stories"), has("story")), permit.FieldStories, KindInteger},
	{"construction type", has("construction type"), permit.FieldConstructionType, KindText},
	{"zoning", has("zoning"), permit.FieldZoning, KindText},
	{"use code", has("use code"), permit.FieldUseCode, KindText},
	{"occupancy", has("occupancy"), permit.FieldOccupancyType, KindText},
	{"project name", has("project", "name"), permit.FieldProjectName, KindText},
}

// NormalizeLabel lowercases label, collapses whitespace and drops a trailing
// colon.
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.Join(strings.Fields(label), " "))
	return strings.TrimSpace(strings.TrimSuffix(label, ":"))
}

// Match returns the first rule accepting label.
func Match(label string) (Rule, bool) {
	norm := NormalizeLabel(label)
	if norm == "" {
		return Rule{}, false
	}
	for _, r := range Rules {
		if r.Match(norm) {
			return r, true
		}
	}
	return Rule{}, false
}
