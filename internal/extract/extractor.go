package extract

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/parse"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
	"github.com/pfrederiksen/permit-scraper/internal/quality"
)

// UnknownHash is the structure hash of a page whose labels could not be read.
const UnknownHash = "unknown"

// Extraction error notes.
const (
	ErrNoteLoginFailed = "Login failed"
	errNoteGeneral     = "General extraction error: "
	errNoteInspection  = "Inspection extraction: "
)

var urlPermitRe = regexp.MustCompile(`PermitNumber=([^&]+)`)

// Options configures an Extractor.
type Options struct {
	Username string
	Password string

	LabelSelector      string
	FeeSelector        string
	InspectionSelector string
	RelatedSelector    string
	ExpandPhrases      []string
	LoginMarker        string

	NavigationSettle time.Duration
	ExpansionSettle  time.Duration
	Sleep            browser.Sleeper

	Thresholds quality.Thresholds
	Tagger     parse.Tagger
}

// DefaultOptions returns options for the Accela detail page.
func DefaultOptions() Options {
	return Options{
		LabelSelector:      browser.LabelSelector,
		FeeSelector:        browser.FeeRowSelector,
		InspectionSelector: browser.InspectionSelector,
		RelatedSelector:    browser.RelatedSelector,
		ExpandPhrases:      browser.DefaultExpandPhrases,
		LoginMarker:        browser.LoginMarker,
		NavigationSettle:   2 * time.Second,
		ExpansionSettle:    time.Second,
		Sleep:              time.Sleep,
		Thresholds:         quality.DefaultThresholds(),
		Tagger:             parse.StreetTagger{},
	}
}

// Extractor reads permit detail pages through a Page.
type Extractor struct {
	page browser.Page
	opts Options
}

// New returns an Extractor reading through page.
func New(page browser.Page, opts Options) *Extractor {
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.LoginMarker == "" {
		opts.LoginMarker = browser.LoginMarker
	}
	return &Extractor{page: page, opts: opts}
}

// PermitNumberFromURL returns the PermitNumber query value of rawURL.
func PermitNumberFromURL(rawURL string) (string, bool) {
	m := urlPermitRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	if v, err := url.QueryUnescape(m[1]); err == nil {
		return v, true
	}
	return m[1], true
}

// Extract reads the permit at detailURL. It always returns a record: read
// failures leave fields absent, an expired session that cannot be renewed
// yields a record noting "Login failed", and anything unexpected is recorded
// as a general extraction error on the partial record.
//
// Every returned record is scored except the login-failed one, whose only
// content is the note; its CompletenessScore stays 0.
func (e *Extractor) Extract(ctx context.Context, detailURL string) (rec *permit.Record) {
	b := NewBuilder("", e.opts.Tagger, e.opts.Thresholds)
	rec = b.Record()

	defer func() {
		if p := recover(); p != nil {
			e.fail(rec, fmt.Errorf("%v", p))
		}
	}()

	if err := e.load(ctx, detailURL); err != nil {
		e.fail(rec, err)
		return rec
	}

	if strings.Contains(e.page.CurrentURL(), e.opts.LoginMarker) {
		logger.Info("Session expired, logging in again", logger.Fields{"url": detailURL})
		if !e.page.Login(ctx, e.opts.Username, e.opts.Password) {
			rec.AddError(ErrNoteLoginFailed)
			return rec // unscored
		}
		if err := e.load(ctx, detailURL); err != nil {
			e.fail(rec, err)
			return rec
		}
	}

	e.page.Expand(ctx, e.opts.ExpandPhrases)
	e.opts.Sleep(e.opts.ExpansionSettle)

	pairs := parse.Try(func() ([]browser.Pair, error) {
		return e.page.LabeledPairs(e.opts.LabelSelector)
	})
	list, ok := pairs.Get()
	if !ok {
		rec.PageStructureHash = UnknownHash
		e.fail(rec, fmt.Errorf("reading labels: %s", pairs.Diagnostic()))
		return rec
	}

	labels := make([]string, len(list))
	for i, p := range list {
		labels[i] = p.Label
	}
	rec.PageStructureHash = permit.StructureHash(labels)

	if n, ok := PermitNumberFromURL(detailURL); ok {
		rec.PermitNumber = n
	}
	for _, p := range list {
		b.Assign(p)
	}

	if fees := parse.Try(func() ([]browser.Row, error) { return e.page.Rows(e.opts.FeeSelector) }); fees.OK() {
		b.Fees(fees.Or(nil))
	} else {
		logger.Debug("Could not extract fee table", logger.Fields{"error": fees.Diagnostic()})
	}

	if links := parse.Try(func() ([]string, error) { return e.page.LinkTexts(e.opts.RelatedSelector) }); links.OK() {
		b.Related(links.Or(nil))
	} else {
		logger.Debug("Could not extract related permits", logger.Fields{"error": links.Diagnostic()})
	}

	if rows := parse.Try(func() ([]browser.Row, error) { return e.page.Rows(e.opts.InspectionSelector) }); rows.OK() {
		b.Inspections(rows.Or(nil))
	} else {
		logger.Debug("Could not extract inspection data", logger.Fields{"error": rows.Diagnostic()})
		rec.AddError(errNoteInspection + rows.Diagnostic())
	}

	b.Build()
	logger.Info("Extracted permit", logger.Fields{
		"permit_number": rec.PermitNumber,
		"completeness":  rec.CompletenessScore,
		"errors":        len(rec.ExtractionErrors),
	})
	return rec
}

func (e *Extractor) load(ctx context.Context, detailURL string) error {
	if err := e.page.Navigate(ctx, detailURL); err != nil {
		return err
	}
	e.opts.Sleep(e.opts.NavigationSettle)
	return nil
}

// fail records a general extraction error and rescores what was read.
func (e *Extractor) fail(rec *permit.Record, err error) {
	logger.Error("Error extracting permit details", logger.Fields{"permit_number": rec.PermitNumber}, err)
	rec.AddError(errNoteGeneral + err.Error())
	quality.Rescore(rec)
}
