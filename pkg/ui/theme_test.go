package ui

import (
	"testing"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/dragdrop"
)

func TestDefaultTheme(t *testing.T) {
	renderer := lipgloss.NewRenderer(nil)
	theme := DefaultTheme(renderer)

	if theme.Renderer != renderer {
		t.Error("DefaultTheme renderer mismatch")
	}
	for name, c := range map[string]lipgloss.AdaptiveColor{
		"Primary": theme.Primary,
		"Folder":  theme.Folder,
		"Service": theme.Service,
		"Layer":   theme.Layer,
	} {
		if isColorEmpty(c) {
			t.Errorf("DefaultTheme %s color is empty", name)
		}
	}
}

func isColorEmpty(c lipgloss.AdaptiveColor) bool {
	return c.Light == "" && c.Dark == ""
}

func TestKindIcon(t *testing.T) {
	theme := DefaultTheme(lipgloss.NewRenderer(nil))

	tests := []struct {
		kind     catalog.EntityKind
		wantIcon string
		wantCol  lipgloss.AdaptiveColor
	}{
		{catalog.EntityNode, "D", theme.Folder},
		{catalog.EntityService, "S", theme.Service},
		{catalog.EntityLayer, "L", theme.Layer},
		{catalog.EntityFeatureSource, "F", theme.FeatureSource},
		{catalog.EntityFeatureType, "T", theme.FeatureType},
		{catalog.EntityLoading, "·", theme.Subtext},
	}

	for _, tt := range tests {
		icon, col := theme.KindIcon(tt.kind)
		if icon != tt.wantIcon {
			t.Errorf("KindIcon(%q) icon = %q, want %q", tt.kind, icon, tt.wantIcon)
		}
		if col != tt.wantCol {
			t.Errorf("KindIcon(%q) color = %v, want %v", tt.kind, col, tt.wantCol)
		}
	}
}

func TestMarkerGlyph(t *testing.T) {
	tests := []struct {
		marker dragdrop.Marker
		want   string
	}{
		{dragdrop.MarkerBefore, "⤒ before"},
		{dragdrop.MarkerAfter, "⤓ after"},
		{dragdrop.MarkerInside, "↳ inside"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MarkerGlyph(tt.marker); got != tt.want {
			t.Errorf("MarkerGlyph(%q) = %q, want %q", tt.marker, got, tt.want)
		}
	}
}

// ── Color profile detection ─────────────────────────────────────────────

func TestColorProfile_Detection(t *testing.T) {
	// TermProfile is set at init(); just verify it's a valid value
	valid := map[colorprofile.Profile]bool{
		colorprofile.Unknown:   true,
		colorprofile.NoTTY:     true,
		colorprofile.ASCII:     true,
		colorprofile.ANSI:      true,
		colorprofile.ANSI256:   true,
		colorprofile.TrueColor: true,
	}
	if !valid[TermProfile] {
		t.Errorf("TermProfile has unexpected value: %d", TermProfile)
	}
}

func TestThemeBg_TrueColor(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.TrueColor

	got := ThemeBg("#282A36")
	if _, ok := got.(lipgloss.NoColor); ok {
		t.Error("ThemeBg should return hex color in TrueColor mode, got NoColor")
	}
}

func TestThemeBg_ANSI(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.ANSI

	got := ThemeBg("#282A36")
	if _, ok := got.(lipgloss.NoColor); !ok {
		t.Errorf("ThemeBg should return NoColor in ANSI mode, got %T", got)
	}
}

func TestThemeBg_ANSI256(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.ANSI256

	got := ThemeBg("#282A36")
	if _, ok := got.(lipgloss.NoColor); !ok {
		t.Errorf("ThemeBg should return NoColor in ANSI256 mode (only TrueColor gets hex bg), got %T", got)
	}
}

func TestThemeFg_TrueColor(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.TrueColor

	got := ThemeFg("#FF6B6B")
	if _, ok := got.(lipgloss.ANSIColor); ok {
		t.Error("ThemeFg should return hex color in TrueColor mode, got ANSIColor")
	}
}

func TestThemeFg_ANSI256(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.ANSI256

	got := ThemeFg("#FF6B6B")
	if _, ok := got.(lipgloss.ANSIColor); ok {
		t.Error("ThemeFg should return hex color in ANSI256 mode, got ANSIColor")
	}
}

func TestThemeFg_ANSI(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.ANSI

	got := ThemeFg("#FF6B6B")
	ansiColor, ok := got.(lipgloss.ANSIColor)
	if !ok {
		t.Errorf("ThemeFg should return ANSIColor in ANSI mode, got %T", got)
	} else if ansiColor != 7 {
		t.Errorf("ThemeFg should return ANSI white (7) in ANSI mode, got %d", ansiColor)
	}
}

func TestThemeFg_NoTTY(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.NoTTY

	got := ThemeFg("#FF6B6B")
	if _, ok := got.(lipgloss.ANSIColor); !ok {
		t.Errorf("ThemeFg should return ANSIColor in NoTTY mode, got %T", got)
	}
}
