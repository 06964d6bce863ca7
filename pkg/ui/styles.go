package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR PALETTE - Adaptive colors for light and dark terminals
// Light mode colors tuned for WCAG AA compliance (contrast ratio >= 4.5:1)
// ══════════════════════════════════════════════════════════════════════════════

var (
	ColorBg          = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
	ColorBgSubtle    = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#363949"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	// Kind badge text color (white on colored background)
	ColorKindBadgeText = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}

	ColorKindFolderBg        = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#C77C2E"}
	ColorKindServiceBg       = lipgloss.AdaptiveColor{Light: "#2684FF", Dark: "#4C9AFF"}
	ColorKindLayerBg         = lipgloss.AdaptiveColor{Light: "#36B37E", Dark: "#36B37E"}
	ColorKindFeatureSourceBg = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#904EE2"}
	ColorKindFeatureTypeBg   = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#2A8FA8"}
)

// RenderKindBadge returns a colored one-cell badge for an entity kind.
func RenderKindBadge(kind catalog.EntityKind) string {
	var bg lipgloss.AdaptiveColor
	var label string

	switch kind {
	case catalog.EntityNode:
		bg, label = ColorKindFolderBg, "D"
	case catalog.EntityService:
		bg, label = ColorKindServiceBg, "S"
	case catalog.EntityLayer:
		bg, label = ColorKindLayerBg, "L"
	case catalog.EntityFeatureSource:
		bg, label = ColorKindFeatureSourceBg, "F"
	case catalog.EntityFeatureType:
		bg, label = ColorKindFeatureTypeBg, "T"
	default:
		bg, label = ColorBgSubtle, "·"
	}

	return lipgloss.NewStyle().
		Foreground(ColorKindBadgeText).
		Background(bg).
		Bold(true).
		Render(label)
}

// RenderCountBadge renders "n/total" in a color that tracks the fraction
// kept, used for the filter summary.
func RenderCountBadge(n, total int) string {
	color := ColorMuted
	switch {
	case total == 0:
	case n == total:
		color = ColorSuccess
	case n*4 >= total:
		color = ColorInfo
	default:
		color = ColorWarning
	}
	return lipgloss.NewStyle().
		Foreground(color).
		Render(fmt.Sprintf("%d/%d", n, total))
}

// RenderDivider renders a horizontal divider line
func RenderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorBgHighlight).
		Render(strings.Repeat("─", width))
}
