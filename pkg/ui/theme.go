package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/dragdrop"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and ANSI white
// (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Entity kinds
	Folder        lipgloss.AdaptiveColor
	Service       lipgloss.AdaptiveColor
	Layer         lipgloss.AdaptiveColor
	FeatureSource lipgloss.AdaptiveColor
	FeatureType   lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Pre-computed row styles, created once instead of per frame.
	MutedText   lipgloss.Style
	TreeLines   lipgloss.Style
	Checkbox    lipgloss.Style
	Placeholder lipgloss.Style
	Dragged     lipgloss.Style
	DropMarker  lipgloss.Style
	DropRow     lipgloss.Style
	StatusText  lipgloss.Style
	StatusError lipgloss.Style
	Dirty       lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"}, // Dim

		Folder:        lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}, // Orange
		Service:       lipgloss.AdaptiveColor{Light: "#2684FF", Dark: "#4C9AFF"}, // Blue
		Layer:         lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}, // Green
		FeatureSource: lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		FeatureType:   lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}, // Cyan

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(ColorText)

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(ColorMuted)
	t.TreeLines = r.NewStyle().Foreground(t.Muted)
	t.Checkbox = r.NewStyle().Foreground(t.Primary)
	t.Placeholder = r.NewStyle().Foreground(t.Muted).Italic(true)
	t.Dragged = r.NewStyle().Foreground(t.Muted).Faint(true).Strikethrough(true)
	t.DropMarker = r.NewStyle().Foreground(ThemeFg("#FFD700")).Bold(true)
	t.DropRow = r.NewStyle().Background(ThemeBg("#3D3D1A"))
	t.StatusText = r.NewStyle().Foreground(ColorInfo)
	t.StatusError = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.Dirty = r.NewStyle().Foreground(ColorWarning).Bold(true)

	return t
}

// KindIcon returns the one-letter badge and color of an entity kind.
func (t Theme) KindIcon(kind catalog.EntityKind) (string, lipgloss.AdaptiveColor) {
	switch kind {
	case catalog.EntityNode:
		return "D", t.Folder
	case catalog.EntityService:
		return "S", t.Service
	case catalog.EntityLayer:
		return "L", t.Layer
	case catalog.EntityFeatureSource:
		return "F", t.FeatureSource
	case catalog.EntityFeatureType:
		return "T", t.FeatureType
	default:
		return "·", t.Subtext
	}
}

// MarkerGlyph returns the indicator drawn next to a drop target.
func MarkerGlyph(m dragdrop.Marker) string {
	switch m {
	case dragdrop.MarkerBefore:
		return "⤒ before"
	case dragdrop.MarkerAfter:
		return "⤓ after"
	case dragdrop.MarkerInside:
		return "↳ inside"
	}
	return ""
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
