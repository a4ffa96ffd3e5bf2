package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pfrederiksen/permit-scraper/internal/browser"
	"github.com/pfrederiksen/permit-scraper/internal/extract"
	"github.com/pfrederiksen/permit-scraper/internal/logger"
	"github.com/pfrederiksen/permit-scraper/internal/metrics"
	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

const (
	PortalBaseURL = "https://aca-prod.accela.com/CLARKCO"
	LoginURL      = PortalBaseURL + "/Login.aspx"
	// DetailURLTemplate takes the query-escaped permit number.
	DetailURLTemplate = PortalBaseURL + "/Cap/CapDetail.aspx?Module=Building&TabName=Building&PermitNumber=%s"
	LoginSettle       = 5 * time.Second
)

var (
	ErrLoginFailed   = errors.New("login failed")
	ErrClosed        = errors.New("scraper closed")
	ErrNoPermit      = errors.New("permit number is required")
	ErrNoCredentials = errors.New("portal credentials are required")
)

// Options configures a Scraper.
type Options struct {
	DetailURLTemplate string
	Extract           extract.Options
	Metrics           metrics.Recorder
}

// Scraper scrapes permits through a logged-in page.
type Scraper struct {
	page    browser.Page
	ext     *extract.Extractor
	opts    Options
	metrics metrics.Recorder
	closed  bool
}

// Open takes ownership of page and logs in. On error the page has already
// been closed and nothing can be scraped.
func Open(ctx context.Context, page browser.Page, opts Options) (*Scraper, error) {
	if opts.DetailURLTemplate == "" {
		opts.DetailURLTemplate = DetailURLTemplate
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	s := &Scraper{
		page:    page,
		ext:     extract.New(page, opts.Extract),
		opts:    opts,
		metrics: rec,
	}

	if opts.Extract.Username == "" || opts.Extract.Password == "" {
		s.Close()
		return nil, ErrNoCredentials
	}

	logger.Info("Logging in to permit portal", logger.Fields{"username": opts.Extract.Username})
	if !page.Login(ctx, opts.Extract.Username, opts.Extract.Password) {
		s.Close()
		return nil, ErrLoginFailed
	}
	return s, nil
}

// PermitURL returns the detail page URL for number.
func (s *Scraper) PermitURL(number string) string {
	return fmt.Sprintf(s.opts.DetailURLTemplate, url.QueryEscape(number))
}

// ScrapePermit extracts one permit. Extraction problems are recorded on the
// returned record; an error means nothing could be attempted.
func (s *Scraper) ScrapePermit(ctx context.Context, number string) (*permit.Record, error) {
	number = strings.TrimSpace(number)
	start := time.Now()
	dims := metrics.Dims{metrics.DimPermit: number}
	errorCount := 0

	defer func() {
		s.metrics.Record(metrics.ScrapeDuration, time.Since(start).Seconds(), metrics.UnitSeconds, dims)
		if errorCount > 0 {
			s.metrics.Record(metrics.ScrapeErrorCount, float64(errorCount), metrics.UnitCount, dims)
		}
	}()

	if err := s.check(number); err != nil {
		logger.Error("Scrape failed", logger.Fields{"permit_number": number}, err)
		s.metrics.Record(metrics.ScrapeFailure, 1, metrics.UnitCount, dims)
		errorCount = 1
		return nil, err
	}

	logger.Info("Scraping permit", logger.Fields{"permit_number": number})
	rec := s.ext.Extract(ctx, s.PermitURL(number))

	if len(rec.ExtractionErrors) == 0 {
		s.metrics.Record(metrics.ScrapeSuccess, 1, metrics.UnitCount, dims)
	} else {
		s.metrics.Record(metrics.ScrapeFailure, 1, metrics.UnitCount, dims)
		errorCount = len(rec.ExtractionErrors)
	}
	s.metrics.Record(metrics.CompletenessScore, rec.CompletenessScore, metrics.UnitPercent, dims)

	return rec, nil
}

func (s *Scraper) check(number string) error {
	if s.closed {
		return ErrClosed
	}
	if number == "" {
		return ErrNoPermit
	}
	return nil
}

// Close releases the page. It is safe to call more than once.
func (s *Scraper) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.page.Close(); err != nil {
		return fmt.Errorf("closing page: %w", err)
	}
	logger.Info("Browser closed", nil)
	return nil
}
