package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
	"github.com/pfrederiksen/permit-scraper/internal/quality"
)

// DefaultSubject is used for alerts without a subject.
const DefaultSubject = "Permit Scraper Alert"

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one operational notification.
type Alert struct {
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (a Alert) subject() string {
	if strings.TrimSpace(a.Subject) == "" {
		return DefaultSubject
	}
	return a.Subject
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Multi delivers each alert to every notifier, even when one fails.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ScrapeFailed reports a permit that could not be scraped cleanly.
func ScrapeFailed(number string, problems []string) Alert {
	return Alert{
		Subject:  fmt.Sprintf("Scrape failed: %s", number),
		Message:  strings.Join(problems, "\n"),
		Severity: SeverityCritical,
	}
}

// JobValueFlagged reports a job value outside the plausible range. It
// returns false for findings that do not warrant an alert.
func JobValueFlagged(rec *permit.Record, f quality.Finding) (Alert, bool) {
	var sev Severity
	switch f.Flag {
	case quality.FlagTooHigh:
		sev = SeverityCritical
	case quality.FlagHighWarning:
		sev = SeverityWarning
	default:
		return Alert{}, false
	}
	return Alert{
		Subject:  fmt.Sprintf("Job value flagged: %s", rec.PermitNumber),
		Message:  fmt.Sprintf("Permit %s reports a job value of $%.2f (%s)", rec.PermitNumber, f.Value, f.Quality),
		Severity: sev,
	}, true
}

// StatusChanged reports a permit status transition.
func StatusChanged(c permit.Change) Alert {
	msg := fmt.Sprintf("Permit %s status changed from %q to %q", c.PermitNumber, c.Old, c.New)
	if c.Kind == permit.ChangeNew {
		msg = fmt.Sprintf("Permit %s first seen with status %q", c.PermitNumber, c.New)
	}
	return Alert{
		Subject:  fmt.Sprintf("Status change: %s", c.PermitNumber),
		Message:  msg,
		Severity: SeverityInfo,
	}
}
