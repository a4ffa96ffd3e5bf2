// Package calendar renders permit expiration dates as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// Options controls the generated feed.
type Options struct {
	// DetailURL returns the portal link for a permit number. Optional.
	DetailURL func(number string) string
	// ReminderDays adds an alarm this many days before each expiration.
	// Zero disables alarms.
	ReminderDays int
	// Now stamps the entries. Defaults to the current time.
	Now time.Time
}

// WriteExpirations writes one all-day event per permit with a parseable
// expiration date and returns how many were written.
func WriteExpirations(w io.Writer, records []*permit.Record, opts Options) (int, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var ics strings.Builder
	writeLine(&ics, "BEGIN:VCALENDAR")
	writeLine(&ics, "VERSION:2.0")
	writeLine(&ics, "PRODID:-//permit-scraper//permit expirations//EN")
	writeLine(&ics, "CALSCALE:GREGORIAN")
	writeLine(&ics, "METHOD:PUBLISH")

	written := 0
	for _, rec := range records {
		expires := permit.ParseDate(rec.ExpirationDate)
		if expires.IsZero() {
			continue
		}
		writeEvent(&ics, rec, expires, opts)
		written++
	}

	writeLine(&ics, "END:VCALENDAR")
	if _, err := io.WriteString(w, ics.String()); err != nil {
		return 0, fmt.Errorf("writing calendar: %w", err)
	}
	return written, nil
}

func writeEvent(ics *strings.Builder, rec *permit.Record, expires time.Time, opts Options) {
	writeLine(ics, "BEGIN:VEVENT")
	writeLine(ics, "UID:"+escapeICS(rec.PermitNumber)+"-expiration@permit-scraper")
	writeLine(ics, "DTSTAMP:"+formatICSTime(opts.Now))
	writeLine(ics, "DTSTART;VALUE=DATE:"+expires.Format("20060102"))
	writeLine(ics, "DTEND;VALUE=DATE:"+expires.AddDate(0, 0, 1).Format("20060102"))
	writeLine(ics, "SUMMARY:"+escapeICS("Permit "+rec.PermitNumber+" expires"))

	var desc []string
	if rec.PermitType != "" {
		desc = append(desc, "Type: "+rec.PermitType)
	}
	if rec.Status != "" {
		desc = append(desc, "Status: "+rec.Status)
	}
	if rec.Description != "" {
		desc = append(desc, rec.Description)
	}
	if len(desc) > 0 {
		writeLine(ics, "DESCRIPTION:"+escapeICS(strings.Join(desc, "\n")))
	}
	if rec.Address != "" {
		writeLine(ics, "LOCATION:"+escapeICS(rec.Address))
	}
	if opts.DetailURL != nil {
		writeLine(ics, "URL:"+opts.DetailURL(rec.PermitNumber))
	}
	writeLine(ics, "TRANSP:TRANSPARENT")

	if opts.ReminderDays > 0 {
		writeLine(ics, "BEGIN:VALARM")
		writeLine(ics, "ACTION:DISPLAY")
		writeLine(ics, "DESCRIPTION:"+escapeICS(fmt.Sprintf("Permit %s expires in %d days", rec.PermitNumber, opts.ReminderDays)))
		writeLine(ics, fmt.Sprintf("TRIGGER:-P%dD", opts.ReminderDays))
		writeLine(ics, "END:VALARM")
	}
	writeLine(ics, "END:VEVENT")
}

// maxLineOctets is the RFC 5545 content line limit, excluding CRLF.
const maxLineOctets = 75

// writeLine writes a content line, folding it into continuation lines that
// start with a space. Folds never split a UTF-8 sequence.
func writeLine(ics *strings.Builder, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes text values per RFC 5545.
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
