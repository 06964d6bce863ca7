// Package datasource reads and writes catalog snapshots. A snapshot is one
// catalog.Forest stored as JSON, YAML or a SQLite database; the format is
// picked from the file extension.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrUnknownFormat is returned for paths whose extension names no supported
// snapshot format.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// SourceType identifies the snapshot format.
type SourceType string

const (
	SourceTypeJSON   SourceType = "json"
	SourceTypeYAML   SourceType = "yaml"
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSON   = 80
	PriorityYAML   = 50
)

// Priority returns how authoritative a source of this type is when two
// snapshots are equally fresh.
func (t SourceType) Priority() int {
	switch t {
	case SourceTypeSQLite:
		return PrioritySQLite
	case SourceTypeJSON:
		return PriorityJSON
	case SourceTypeYAML:
		return PriorityYAML
	}
	return 0
}

// Detect returns the snapshot format of path from its extension.
func Detect(path string) (SourceType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SourceTypeJSON, nil
	case ".yaml", ".yml":
		return SourceTypeYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return SourceTypeSQLite, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// DataSource describes one snapshot file on disk.
type DataSource struct {
	Type    SourceType `json:"type"`
	Path    string     `json:"path"`
	ModTime time.Time  `json:"mod_time"`
	Size    int64      `json:"size"`
	// Valid is set by ValidateSource.
	Valid           bool   `json:"valid"`
	ValidationError string `json:"validation_error,omitempty"`
	// EntityCount is the number of catalog entities, set by ValidateSource.
	EntityCount int `json:"entity_count"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, mod=%s, entities=%d, %s)",
		s.Path, s.Type, s.ModTime.Format(time.RFC3339), s.EntityCount, status)
}

// Inspect stats path and returns its description. The snapshot is not read.
func Inspect(path string) (DataSource, error) {
	typ, err := Detect(path)
	if err != nil {
		return DataSource{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("stat snapshot: %w", err)
	}
	return DataSource{Type: typ, Path: path, ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Discover lists the snapshot files directly inside dir, freshest first.
// Equally fresh snapshots are ordered by type priority. Editor backups and
// hidden files are skipped.
func Discover(dir string) ([]DataSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
			strings.Contains(name, ".backup") || strings.Contains(name, ".orig") {
			continue
		}
		typ, err := Detect(name)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sources = append(sources, DataSource{
			Type:    typ,
			Path:    filepath.Join(dir, name),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Type.Priority() > sources[j].Type.Priority()
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}

// ValidateSource loads the snapshot and checks it with catalog.Validate,
// recording the outcome on s.
func ValidateSource(s *DataSource) error {
	f, err := Load(s.Path)
	if err == nil {
		err = validate(f)
	}
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.EntityCount = f.Size()
	return nil
}

// SelectBest validates sources in order and returns the first valid one.
func SelectBest(sources []DataSource) (DataSource, error) {
	var errs []error
	for i := range sources {
		if err := ValidateSource(&sources[i]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sources[i].Path, err))
			continue
		}
		return sources[i], nil
	}
	if len(errs) == 0 {
		return DataSource{}, errors.New("no snapshot sources")
	}
	return DataSource{}, fmt.Errorf("no valid snapshot source: %w", errors.Join(errs...))
}
