package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByNumber SortOrder = "number"
	SortByIssued SortOrder = "issued"
	SortByScore  SortOrder = "score"
	SortByStatus SortOrder = "status"
)

func parseSortOrder(name string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(name))); o {
	case SortByNumber, SortByIssued, SortByScore, SortByStatus:
		return o, nil
	}
	return "", fmt.Errorf("invalid sort: %s (must be number, issued, score or status)", name)
}

// sortRecords sorts records in place by the given order.
func sortRecords(records []*permit.Record, order SortOrder) {
	switch order {
	case SortByNumber:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].PermitNumber < records[j].PermitNumber
		})
	case SortByIssued:
		sort.SliceStable(records, func(i, j int) bool {
			return compareByIssued(records[i], records[j])
		})
	case SortByScore:
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].CompletenessScore != records[j].CompletenessScore {
				return records[i].CompletenessScore > records[j].CompletenessScore
			}
			return records[i].PermitNumber < records[j].PermitNumber
		})
	case SortByStatus:
		sort.SliceStable(records, func(i, j int) bool {
			si, sj := strings.ToLower(records[i].Status), strings.ToLower(records[j].Status)
			if si != sj {
				return si < sj
			}
			return compareByIssued(records[i], records[j])
		})
	}
}

// compareByIssued orders by issue date, newest first. Records without a
// parseable date go last, by permit number.
func compareByIssued(i, j *permit.Record) bool {
	dateI := permit.ParseDate(i.IssuedDate)
	dateJ := permit.ParseDate(j.IssuedDate)

	if !dateI.IsZero() && !dateJ.IsZero() && !dateI.Equal(dateJ) {
		return dateI.After(dateJ)
	}
	if !dateI.IsZero() && dateJ.IsZero() {
		return true
	}
	if dateI.IsZero() && !dateJ.IsZero() {
		return false
	}
	return i.PermitNumber < j.PermitNumber
}
