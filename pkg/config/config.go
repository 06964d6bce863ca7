// Package config handles loading and saving catalogtree configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/catalogtree/config.yaml
//   - Data:    ~/.local/share/catalogtree/ (default snapshot location)
//   - State:   ~/.local/state/catalogtree/ (persisted expansion state)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/dragdrop"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/treestate"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/watcher"
)

const appName = "catalogtree"

// Duration is a time.Duration written as a string ("300ms", "2s") in YAML.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// DataConfig locates the catalog snapshot.
type DataConfig struct {
	Path      string `yaml:"path,omitempty"`       // .json, .yaml, .yml, .db or .sqlite
	Lazy      bool   `yaml:"lazy,omitempty"`       // Fetch folder contents on first expand
	LoadLimit int    `yaml:"load_limit,omitempty"` // Concurrent folder fetches
}

// DragConfig tunes the drag/drop controller.
type DragConfig struct {
	HoverExpandDelay Duration `yaml:"hover_expand_delay,omitempty"`
	AutoscrollEdge   float64  `yaml:"autoscroll_edge,omitempty"`
	AutoscrollStep   float64  `yaml:"autoscroll_step,omitempty"`
	InsideLow        float64  `yaml:"inside_low,omitempty"`
	InsideHigh       float64  `yaml:"inside_high,omitempty"`
}

// FilterConfig tunes the filter engine.
type FilterConfig struct {
	AutoExpandLimit int    `yaml:"auto_expand_limit,omitempty"`
	CRS             string `yaml:"crs,omitempty"` // Default CRS filter, e.g. EPSG:28992
}

// WatchConfig tunes snapshot reloading.
type WatchConfig struct {
	Enabled   bool     `yaml:"enabled,omitempty"`
	Debounce  Duration `yaml:"debounce,omitempty"`
	Poll      Duration `yaml:"poll,omitempty"`
	ForcePoll bool     `yaml:"force_poll,omitempty"`
}

// UIConfig holds terminal view preferences.
type UIConfig struct {
	Radio            bool `yaml:"radio,omitempty"`   // One checked leaf at a time
	PersistExpansion bool `yaml:"persist_expansion"` // Restore expanded folders across runs
	ShowRoot         bool `yaml:"show_root,omitempty"`
	Checkable        bool `yaml:"checkable"`
}

// Config is the top-level configuration.
type Config struct {
	Data   DataConfig   `yaml:"data,omitempty"`
	Drag   DragConfig   `yaml:"drag,omitempty"`
	Filter FilterConfig `yaml:"filter,omitempty"`
	Watch  WatchConfig  `yaml:"watch,omitempty"`
	UI     UIConfig     `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	drag := dragdrop.DefaultOptions()
	return Config{
		Data: DataConfig{
			LoadLimit: 8,
		},
		Drag: DragConfig{
			HoverExpandDelay: Duration(drag.HoverExpandDelay),
			AutoscrollEdge:   drag.AutoscrollEdge,
			AutoscrollStep:   drag.AutoscrollStep,
			InsideLow:        drag.InsideLow,
			InsideHigh:       drag.InsideHigh,
		},
		Filter: FilterConfig{
			AutoExpandLimit: catalog.DefaultAutoExpandLimit,
		},
		Watch: WatchConfig{
			Debounce: Duration(watcher.DefaultDebounceDuration),
			Poll:     Duration(watcher.DefaultPollInterval),
		},
		UI: UIConfig{
			PersistExpansion: true,
			Checkable:        true,
		},
	}
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	if c.Data.LoadLimit < 0 {
		errs = append(errs, fmt.Errorf("data.load_limit must not be negative, got %d", c.Data.LoadLimit))
	}
	if c.Drag.HoverExpandDelay < 0 {
		errs = append(errs, fmt.Errorf("drag.hover_expand_delay must not be negative, got %s", c.Drag.HoverExpandDelay))
	}
	if c.Drag.AutoscrollEdge < 0 || c.Drag.AutoscrollEdge >= 0.5 {
		errs = append(errs, fmt.Errorf("drag.autoscroll_edge must be in [0, 0.5), got %g", c.Drag.AutoscrollEdge))
	}
	if c.Drag.AutoscrollStep < 0 {
		errs = append(errs, fmt.Errorf("drag.autoscroll_step must not be negative, got %g", c.Drag.AutoscrollStep))
	}
	if c.Drag.InsideLow != 0 || c.Drag.InsideHigh != 0 {
		if c.Drag.InsideLow <= 0 || c.Drag.InsideHigh <= c.Drag.InsideLow || c.Drag.InsideHigh > 1 {
			errs = append(errs, fmt.Errorf("drag inside band must satisfy 0 < inside_low < inside_high <= 1, got %g..%g",
				c.Drag.InsideLow, c.Drag.InsideHigh))
		}
	}
	if c.Filter.AutoExpandLimit < 0 {
		errs = append(errs, fmt.Errorf("filter.auto_expand_limit must not be negative, got %d", c.Filter.AutoExpandLimit))
	}
	if c.Watch.Debounce < 0 || c.Watch.Poll < 0 {
		errs = append(errs, fmt.Errorf("watch durations must not be negative, got debounce %s poll %s", c.Watch.Debounce, c.Watch.Poll))
	}
	return errors.Join(errs...)
}

// DragOptions returns controller options for the drag settings. Zero
// settings fall back to the controller defaults.
func (c Config) DragOptions() dragdrop.Options {
	return dragdrop.Options{
		HoverExpandDelay: c.Drag.HoverExpandDelay.D(),
		AutoscrollEdge:   c.Drag.AutoscrollEdge,
		AutoscrollStep:   c.Drag.AutoscrollStep,
		InsideLow:        c.Drag.InsideLow,
		InsideHigh:       c.Drag.InsideHigh,
	}
}

// FilterOptions returns filter options for a search term. An empty crs
// uses the configured default.
func (c Config) FilterOptions(term, crs string) catalog.FilterOptions {
	if crs == "" {
		crs = c.Filter.CRS
	}
	return catalog.FilterOptions{Term: term, CRS: crs, AutoExpandLimit: c.Filter.AutoExpandLimit}
}

// WatchOptions returns watcher options for the watch settings.
func (c Config) WatchOptions() []watcher.Option {
	return []watcher.Option{
		watcher.WithDebounceDuration(c.Watch.Debounce.D()),
		watcher.WithPollInterval(c.Watch.Poll.D()),
		watcher.WithForcePoll(c.Watch.ForcePoll),
	}
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// ExpansionStatePath returns where expanded folders are persisted.
func ExpansionStatePath() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, treestate.ExpansionStateFile)
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Data.Path = expandHome(cfg.Data.Path)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
