package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

func TestWriteExpirations(t *testing.T) {
	expiring := permit.New("BD25-1")
	expiring.PermitType = "Residential"
	expiring.Status = "Issued"
	expiring.Address = "123 Main St, Las Vegas, NV 89101"
	expiring.ExpirationDate = "03/15/2026"

	undated := permit.New("BD25-2")
	undated.ExpirationDate = "pending"

	var buf bytes.Buffer
	n, err := WriteExpirations(&buf, []*permit.Record{expiring, undated, permit.New("BD25-3")}, Options{
		DetailURL:    func(number string) string { return "https://portal.example/detail?PermitNumber=" + number },
		ReminderDays: 14,
		Now:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("WriteExpirations() error = %v", err)
	}
	if n != 1 {
		t.Errorf("WriteExpirations() = %d events, want 1", n)
	}

	ics := buf.String()
	for _, field := range []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"UID:BD25-1-expiration@permit-scraper",
		"DTSTAMP:20260102T030405Z",
		"DTSTART;VALUE=DATE:20260315",
		"DTEND;VALUE=DATE:20260316",
		"SUMMARY:Permit BD25-1 expires",
		"DESCRIPTION:Type: Residential\\nStatus: Issued",
		"LOCATION:123 Main St\\, Las Vegas\\, NV 89101",
		"URL:https://portal.example/detail?PermitNumber=BD25-1",
		"TRIGGER:-P14D",
		"END:VCALENDAR",
	} {
		if !strings.Contains(ics, field) {
			t.Errorf("ICS missing %q", field)
		}
	}
	if strings.Contains(ics, "BD25-2") || strings.Contains(ics, "BD25-3") {
		t.Error("permits without a parseable expiration date should be skipped")
	}
	if strings.Count(ics, "BEGIN:VEVENT") != strings.Count(ics, "END:VEVENT") {
		t.Error("unbalanced VEVENT blocks")
	}
	if !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Error("ICS should use \\r\\n line endings")
	}
}

func TestWriteExpirations_NoAlarm(t *testing.T) {
	rec := permit.New("BD25-1")
	rec.ExpirationDate = "2026-03-15"

	var buf bytes.Buffer
	if _, err := WriteExpirations(&buf, []*permit.Record{rec}, Options{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "VALARM") || strings.Contains(buf.String(), "URL:") {
		t.Errorf("unexpected optional properties:\n%s", buf.String())
	}
}

func TestWriteExpirations_FoldsLongLines(t *testing.T) {
	rec := permit.New("BD25-1")
	rec.ExpirationDate = "2026-03-15"
	rec.Description = strings.Repeat("Tenant improvement café façade ", 12)
	rec.Address = "10000 W Charleston Blvd Building 4 Suite 200, Las Vegas, NV 89135"

	var buf bytes.Buffer
	if _, err := WriteExpirations(&buf, []*permit.Record{rec}, Options{}); err != nil {
		t.Fatal(err)
	}

	raw := buf.String()
	for _, line := range strings.Split(strings.TrimSuffix(raw, "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Errorf("line is %d octets: %q", len(line), line)
		}
		if !utf8.ValidString(line) {
			t.Errorf("fold split a character: %q", line)
		}
	}

	unfolded := strings.ReplaceAll(raw, "\r\n ", "")
	want := "DESCRIPTION:" + escapeICS(rec.Description) + "\r\n"
	if !strings.Contains(unfolded, want) {
		t.Errorf("unfolded feed lost the description:\n%s", unfolded)
	}
	if !strings.Contains(unfolded, "LOCATION:"+escapeICS(rec.Address)+"\r\n") {
		t.Error("unfolded feed lost the location")
	}
}

func TestWriteLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "SUMMARY:x", "SUMMARY:x\r\n"},
		{"exactly 75", strings.Repeat("a", 75), strings.Repeat("a", 75) + "\r\n"},
		{"76", strings.Repeat("a", 76), strings.Repeat("a", 75) + "\r\n a\r\n"},
		{"continuation holds 74", strings.Repeat("a", 150),
			strings.Repeat("a", 75) + "\r\n " + strings.Repeat("a", 74) + "\r\n a\r\n"},
		{"no split inside rune", strings.Repeat("a", 74) + "é", strings.Repeat("a", 74) + "\r\n é\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			writeLine(&b, tt.in)
			if b.String() != tt.want {
				t.Errorf("writeLine() = %q, want %q", b.String(), tt.want)
			}
		})
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a,b;c", "a\\,b\\;c"},
		{"line\nbreak", "line\\nbreak"},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeICS(tt.in); got != tt.want {
			t.Errorf("escapeICS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
