// Package logger writes structured JSON log lines and keeps in-process
// metrics for the permit scraper.
//
// Each line is a single JSON object:
//
//	{"timestamp":"2025-06-01T17:04:05.123Z","level":"INFO","message":"Scraping permit","fields":{"permit_number":"BD25-23553"}}
//
// Loggers derived with With carry their fields into every line they write
// and share the parent's output, so lines from concurrent children never
// interleave.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}
	return -1
}

// ParseLevel accepts a level name in any case ("warning" is read as WARN).
// Unknown names report ok=false and yield LevelInfo.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// Fields are structured values attached to a log line.
type Fields map[string]interface{}

// LogEntry is the JSON shape of one log line.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
	Error     string `json:"error,omitempty"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger writes entries at or above its minimum level.
type Logger struct {
	out  *output
	min  Level
	base Fields
}

type output struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// New returns a logger writing to w that drops entries below level.
func New(level Level, w io.Writer) *Logger {
	return &Logger{
		out: &output{w: w, now: time.Now},
		min: level,
	}
}

// With returns a child logger that adds fields to every entry. Fields passed
// at the call site win over inherited ones.
func (l *Logger) With(fields Fields) *Logger {
	base := make(Fields, len(l.base)+len(fields))
	for k, v := range merge(l.base, fields) {
		base[k] = v
	}
	return &Logger{out: l.out, min: l.min, base: base}
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level Level) bool {
	return level.rank() >= l.min.rank()
}

func merge(base, extra Fields) Fields {
	if len(base) == 0 {
		return extra
	}
	out := make(Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Log writes one entry at level. err may be nil.
func (l *Logger) Log(level Level, message string, fields Fields, err error) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: l.out.now().UTC().Format(timestampLayout),
		Level:     string(level),
		Message:   message,
		Fields:    merge(l.base, fields),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	line, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		line = []byte(fmt.Sprintf(`{"timestamp":%q,"level":%q,"message":%q,"error":%q}`,
			entry.Timestamp, entry.Level, entry.Message, "unencodable fields: "+marshalErr.Error()))
	}
	line = append(line, '\n')

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w.Write(line)
}

func (l *Logger) Debug(message string, fields Fields) { l.Log(LevelDebug, message, fields, nil) }
func (l *Logger) Info(message string, fields Fields)  { l.Log(LevelInfo, message, fields, nil) }
func (l *Logger) Warn(message string, fields Fields)  { l.Log(LevelWarn, message, fields, nil) }

func (l *Logger) Error(message string, fields Fields, err error) {
	l.Log(LevelError, message, fields, err)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(LevelInfo, os.Stderr)
)

// SetDefault replaces the logger behind the package-level functions.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the logger behind the package-level functions.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// With derives a child of the default logger.
func With(fields Fields) *Logger { return Default().With(fields) }

func Log(level Level, message string, fields Fields, err error) {
	Default().Log(level, message, fields, err)
}

func Debug(message string, fields Fields) { Default().Debug(message, fields) }
func Info(message string, fields Fields)  { Default().Info(message, fields) }
func Warn(message string, fields Fields)  { Default().Warn(message, fields) }

func Error(message string, fields Fields, err error) { Default().Error(message, fields, err) }
