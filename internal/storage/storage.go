package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/permit-scraper/internal/permit"
)

// DefaultDir is the export directory used when none is configured.
const DefaultDir = "~/.local/share/permit-scraper/exports"

const fileTimeLayout = "20060102T150405Z"

// Storage writes one JSON file per exported permit snapshot.
type Storage struct {
	dir string
}

// New opens dir, creating it if needed. A leading "~/" is expanded to the
// user's home directory and an empty dir means DefaultDir.
func New(dir string) (*Storage, error) {
	if dir == "" {
		dir = DefaultDir
	}
	dir, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("preparing export dir %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

func expandHome(dir string) (string, error) {
	rest, ok := strings.CutPrefix(dir, "~/")
	if !ok {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving ~: %w", err)
	}
	return filepath.Join(home, rest), nil
}

// Dir returns the export directory.
func (s *Storage) Dir() string { return s.dir }

// safeName replaces characters that cannot appear in a file name.
func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '[', ']':
			return '_'
		}
		return r
	}, s)
}

// fileName returns the export file name for rec.
func fileName(rec *permit.Record) string {
	stamp := safeName(rec.ScrapedTimestamp)
	if t, err := time.Parse(time.RFC3339, rec.ScrapedTimestamp); err == nil {
		stamp = t.UTC().Format(fileTimeLayout)
	}
	return fmt.Sprintf("permit_%s_%s.json", safeName(rec.PermitNumber), stamp)
}

// Export writes rec to a new file named after its permit number and scrape
// time and returns the path. The file appears only once fully written.
func (s *Storage) Export(rec *permit.Record) (string, error) {
	raw, err := permit.MarshalFlat(rec)
	if err != nil {
		return "", err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return "", fmt.Errorf("indenting %s: %w", rec.PermitNumber, err)
	}
	pretty.WriteByte('\n')

	path := filepath.Join(s.dir, fileName(rec))
	tmp, err := os.CreateTemp(s.dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("exporting %s: %w", rec.PermitNumber, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(pretty.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("exporting %s: %w", rec.PermitNumber, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("exporting %s: %w", rec.PermitNumber, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("exporting %s: %w", rec.PermitNumber, err)
	}
	return path, nil
}

// Load reads one export file back into a record.
func Load(path string) (*permit.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec, err := permit.UnmarshalFlat(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}

// Files returns the export files of a permit, oldest first.
func (s *Storage) Files(number string) ([]string, error) {
	pattern := filepath.Join(s.dir, "permit_"+safeName(number)+"_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Latest loads the newest export of a permit. It returns nil without an
// error when the permit has never been exported.
func (s *Storage) Latest(number string) (*permit.Record, error) {
	files, err := s.Files(number)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return Load(files[len(files)-1])
}
