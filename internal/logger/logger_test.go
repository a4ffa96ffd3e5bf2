package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLogger_MinLevel(t *testing.T) {
	tests := []struct {
		min   Level
		level Level
		want  bool
	}{
		{LevelInfo, LevelDebug, false},
		{LevelInfo, LevelInfo, true},
		{LevelInfo, LevelError, true},
		{LevelWarn, LevelInfo, false},
		{LevelDebug, LevelDebug, true},
		{LevelError, LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.min)+"/"+string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			New(tt.min, &buf).Log(tt.level, "msg", nil, nil)
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("logged = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger_Entry(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelDebug, &buf)
	l.out.now = func() time.Time { return time.Date(2025, 6, 1, 10, 4, 5, 123e6, time.FixedZone("PDT", -7*3600)) }

	l.Error("Saving permit failed", Fields{"permit_number": "BD25-1"}, errors.New("locked"))

	want := []LogEntry{{
		Timestamp: "2025-06-01T17:04:05.123Z",
		Level:     "ERROR",
		Message:   "Saving permit failed",
		Fields:    Fields{"permit_number": "BD25-1"},
		Error:     "locked",
	}}
	if diff := cmp.Diff(want, decodeLines(t, &buf)); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	root := New(LevelInfo, &buf)
	run := root.With(Fields{"run_id": "r1", "stage": "login"})
	permit := run.With(Fields{"permit_number": "BD25-23553"})

	permit.Info("Scraping permit", Fields{"stage": "extract"})
	root.Info("Done", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	want := Fields{"run_id": "r1", "stage": "extract", "permit_number": "BD25-23553"}
	if diff := cmp.Diff(want, entries[0].Fields); diff != "" {
		t.Errorf("child fields mismatch (-want +got):\n%s", diff)
	}
	if entries[1].Fields != nil {
		t.Errorf("parent picked up child fields: %v", entries[1].Fields)
	}
	if run.base["stage"] != "login" {
		t.Errorf("call-site fields leaked into parent: %v", run.base)
	}
}

func TestLogger_UnencodableFields(t *testing.T) {
	var buf bytes.Buffer
	New(LevelInfo, &buf).Info("bad", Fields{"ch": make(chan int)})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || !strings.Contains(entries[0].Error, "unencodable") {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLogger_ConcurrentChildren(t *testing.T) {
	var buf bytes.Buffer
	root := New(LevelInfo, &buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			child := root.With(Fields{"worker": n})
			for j := 0; j < 20; j++ {
				child.Info("tick", nil)
			}
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 160 {
		t.Errorf("got %d lines, want 160", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   Level
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{" INFO ", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"trace", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPackageLevel(t *testing.T) {
	var buf bytes.Buffer
	previous := Default()
	SetDefault(New(LevelDebug, &buf))
	t.Cleanup(func() { SetDefault(previous) })

	Debug("d", nil)
	Info("i", Fields{"key": "value"})
	Warn("w", nil)
	Error("e", nil, errors.New("boom"))
	Log(LevelWarn, "l", nil, nil)
	With(Fields{"permit_number": "BD25-1"}).Info("child", nil)

	entries := decodeLines(t, &buf)
	var levels []string
	for _, e := range entries {
		levels = append(levels, e.Level)
	}
	want := []string{"DEBUG", "INFO", "WARN", "ERROR", "WARN", "INFO"}
	if diff := cmp.Diff(want, levels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	if entries[5].Fields["permit_number"] != "BD25-1" {
		t.Errorf("child entry = %+v", entries[5])
	}
}
