package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Drag.HoverExpandDelay.D() != 300*time.Millisecond {
		t.Errorf("expected hover delay 300ms, got %s", cfg.Drag.HoverExpandDelay)
	}
	if cfg.Drag.AutoscrollEdge != 0.2 || cfg.Drag.AutoscrollStep != 10 {
		t.Errorf("expected autoscroll 0.2/10, got %g/%g", cfg.Drag.AutoscrollEdge, cfg.Drag.AutoscrollStep)
	}
	if cfg.Drag.InsideLow != 0.25 || cfg.Drag.InsideHigh != 0.75 {
		t.Errorf("expected inside band 0.25..0.75, got %g..%g", cfg.Drag.InsideLow, cfg.Drag.InsideHigh)
	}
	if cfg.Filter.AutoExpandLimit != 30 {
		t.Errorf("expected auto expand limit 30, got %d", cfg.Filter.AutoExpandLimit)
	}
	if cfg.Watch.Debounce.D() != 200*time.Millisecond || cfg.Watch.Poll.D() != 2*time.Second {
		t.Errorf("expected watch 200ms/2s, got %s/%s", cfg.Watch.Debounce, cfg.Watch.Poll)
	}
	if !cfg.UI.PersistExpansion || !cfg.UI.Checkable {
		t.Error("expected expansion persistence and checkboxes on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Filter.AutoExpandLimit != 30 {
		t.Errorf("expected default config, got limit %d", cfg.Filter.AutoExpandLimit)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
data:
  path: ~/catalogs/prod.json
  lazy: true
drag:
  hover_expand_delay: 500ms
  inside_low: 0.3
  inside_high: 0.7
filter:
  auto_expand_limit: 10
  crs: EPSG:28992
watch:
  enabled: true
  debounce: 1s
ui:
  radio: true
  persist_expansion: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "catalogs/prod.json"); cfg.Data.Path != want {
		t.Errorf("expected expanded path %q, got %q", want, cfg.Data.Path)
	}
	if !cfg.Data.Lazy {
		t.Error("expected lazy loading")
	}
	if cfg.Drag.HoverExpandDelay.D() != 500*time.Millisecond {
		t.Errorf("expected hover delay 500ms, got %s", cfg.Drag.HoverExpandDelay)
	}
	// Unset keys keep their defaults.
	if cfg.Drag.AutoscrollStep != 10 {
		t.Errorf("expected default autoscroll step, got %g", cfg.Drag.AutoscrollStep)
	}
	if cfg.Filter.CRS != "EPSG:28992" || cfg.Filter.AutoExpandLimit != 10 {
		t.Errorf("unexpected filter config %+v", cfg.Filter)
	}
	if !cfg.Watch.Enabled || cfg.Watch.Debounce.D() != time.Second || cfg.Watch.Poll.D() != 2*time.Second {
		t.Errorf("unexpected watch config %+v", cfg.Watch)
	}
	if !cfg.UI.Radio || cfg.UI.PersistExpansion {
		t.Errorf("unexpected ui config %+v", cfg.UI)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFrom_BadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("watch:\n  debounce: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected duration error on line 2, got %v", err)
	}
}

func TestLoadFrom_OutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "drag:\n  autoscroll_edge: 0.9\n  inside_low: 0.8\n  inside_high: 0.6\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"autoscroll_edge", "inside band"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Data.Path = "/srv/catalog.db"
	cfg.Drag.HoverExpandDelay = Duration(750 * time.Millisecond)
	cfg.Filter.CRS = "EPSG:3857"
	cfg.UI.Checkable = false

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hover_expand_delay: 750ms") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load after save failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestDragOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Drag.HoverExpandDelay = Duration(time.Second)
	opts := cfg.DragOptions()
	if opts.HoverExpandDelay != time.Second || opts.InsideLow != 0.25 || opts.InsideHigh != 0.75 {
		t.Errorf("unexpected drag options %+v", opts)
	}
}

func TestFilterOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter.CRS = "EPSG:28992"

	opts := cfg.FilterOptions("roads", "")
	if opts.Term != "roads" || opts.CRS != "EPSG:28992" || opts.AutoExpandLimit != 30 {
		t.Errorf("unexpected filter options %+v", opts)
	}
	if opts := cfg.FilterOptions("", "EPSG:3857"); opts.CRS != "EPSG:3857" {
		t.Errorf("explicit crs should win, got %q", opts.CRS)
	}
}

func TestWatchOptions(t *testing.T) {
	if n := len(DefaultConfig().WatchOptions()); n != 3 {
		t.Errorf("expected 3 watcher options, got %d", n)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"~/foo", filepath.Join(home, "foo")},
		{"~/", filepath.Join(home, "")},
		{"/absolute", "/absolute"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := expandHome(tt.input)
		if got != tt.expected {
			t.Errorf("expandHome(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestXDGOverrides(t *testing.T) {
	tests := []struct {
		env string
		fn  func() string
	}{
		{"XDG_CONFIG_HOME", ConfigDir},
		{"XDG_DATA_HOME", DataDir},
		{"XDG_STATE_HOME", StateDir},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv(tt.env, dir)
			if got, want := tt.fn(), filepath.Join(dir, "catalogtree"); got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)

	if got, want := ConfigPath(), filepath.Join(dir, "catalogtree", "config.yaml"); got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
	if got, want := ExpansionStatePath(), filepath.Join(dir, "catalogtree", "tree-state.json"); got != want {
		t.Errorf("ExpansionStatePath = %q, want %q", got, want)
	}
}
