package quality

import (
	"math"
	"strings"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// Weight is the contribution of one populated field.
type Weight struct {
	Field  permit.Field
	Points float64
}

// Weights is the completeness weight table. Its sum is the denominator of
// the score.
var Weights = []Weight{
	{permit.FieldPermitNumber, 10},
	{permit.FieldPermitType, 8},
	{permit.FieldStatus, 8},
	{permit.FieldAddress, 10},
	{permit.FieldAppliedDate, 7},

	{permit.FieldOwnerName, 6},
	{permit.FieldJobValue, 6},
	{permit.FieldDescription, 5},
	{permit.FieldIssuedDate, 5},
	{permit.FieldParcelNumber, 5},

	{permit.FieldContractorName, 3},
	{permit.FieldTotalFees, 3},
	{permit.FieldSquareFootage, 3},
	{permit.FieldZoning, 3},
	{permit.FieldSubdivision, 2},
	{permit.FieldLot, 2},
	{permit.FieldBlock, 2},
	{permit.FieldConstructionType, 2},
	{permit.FieldDwellingUnits, 2},

	{permit.FieldWorkDescription, 2},
	{permit.FieldUseCode, 2},
	{permit.FieldOccupancyType, 2},
	{permit.FieldProjectName, 1},
	{permit.FieldLotSize, 1},
}

// Bonus points on top of the weight table. They are not part of the
// denominator, so a rich record can score above 100.
const (
	BonusStreetName     = 5
	BonusRelatedPermits = 2
	BonusItemizedFees   = 2
)

// TotalWeight returns the sum of the weight table.
func TotalWeight() float64 {
	var total float64
	for _, w := range Weights {
		total += w.Points
	}
	return total
}

func populated(r *permit.Record, f permit.Field) bool {
	return strings.TrimSpace(r.Text(f)) != ""
}

// Score returns the weighted completeness percentage of r, rounded to two
// decimals. It does not modify r.
func Score(r *permit.Record) float64 {
	var achieved float64
	for _, w := range Weights {
		if populated(r, w.Field) {
			achieved += w.Points
		}
	}

	if strings.TrimSpace(r.ParsedAddress.StreetName) != "" {
		achieved += BonusStreetName
	}
	if r.RelatedPermits.Len() > 0 {
		achieved += BonusRelatedPermits
	}
	if len(r.ItemizedFees) > 0 {
		achieved += BonusItemizedFees
	}

	return math.Round(100*achieved/TotalWeight()*100) / 100
}

// PopulatedFields returns how many weighted fields of r are populated.
func PopulatedFields(r *permit.Record) int {
	n := 0
	for _, w := range Weights {
		if populated(r, w.Field) {
			n++
		}
	}
	return n
}

// TotalFields returns the number of weighted fields.
func TotalFields() int {
	return len(Weights)
}

// Rescore recomputes r.CompletenessScore from its current values.
func Rescore(r *permit.Record) float64 {
	r.CompletenessScore = Score(r)
	return r.CompletenessScore
}
