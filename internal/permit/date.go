package permit

import (
	"strings"
	"time"
)

// dateLayouts are the renderings the portal uses for permit dates.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"01-02-2006",
}

// ParseDate attempts to parse a permit date string into a time.Time.
// Returns time.Time{} (zero value) if no known layout matches.
func ParseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DaysUntilExpiration returns the number of whole days between now and the
// record's expiration date. ok is false when the date is absent or unparseable.
func (r *Record) DaysUntilExpiration(now time.Time) (days int, ok bool) {
	exp := ParseDate(r.ExpirationDate)
	if exp.IsZero() {
		return 0, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(exp.Sub(today).Hours() / 24), true
}
