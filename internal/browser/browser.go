// Package browser provides the page capability the extractor reads permit
// detail pages through: navigation, labeled pair and table reads, section
// expansion and portal login.
package browser

import (
	"context"
	"errors"
	"time"
)

// Default selectors for the Accela citizen access detail page.
const (
	LabelSelector      = "span.NotBreakWord"
	FeeRowSelector     = "table#tblFees tr, table.fee-table tr"
	InspectionSelector = "table#gvInspection tr, table.inspection-table tr"
	RelatedSelector    = "a[href*='PermitDetail']"
)

// DefaultExpandPhrases are the trigger texts of collapsed detail sections.
var DefaultExpandPhrases = []string{
	"More Details",
	"Show More",
	"View Details",
	"Additional Information",
	"Show All",
	"Fee Details",
	"View More",
}

var (
	// ErrNoDocument is returned by reads before any page has been loaded.
	ErrNoDocument = errors.New("no document loaded")
	// ErrClosed is returned by a page after Close.
	ErrClosed = errors.New("page closed")
)

// Pair is one label and its value as read from the page.
type Pair struct {
	Label string
	Value string
}

// Row holds the trimmed cell texts of one table row.
type Row []string

// Page is a single browsing handle. Implementations are not safe for
// concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL() string
	LabeledPairs(selector string) ([]Pair, error)
	Rows(selector string) ([]Row, error)
	LinkTexts(selector string) ([]string, error)
	// Expand reveals collapsed sections whose trigger text contains any of
	// phrases. It never fails; a section that cannot be revealed stays hidden.
	Expand(ctx context.Context, phrases []string)
	Login(ctx context.Context, username, password string) bool
	Close() error
}

// Sleeper pauses for d. Tests substitute a no-op.
type Sleeper func(d time.Duration)

// NoSleep is a Sleeper that returns immediately.
func NoSleep(time.Duration) {}
