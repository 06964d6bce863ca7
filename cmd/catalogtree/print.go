package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/flattree"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/ui"
)

// printOptions control printTree.
type printOptions struct {
	// All prints every row, ignoring expansion.
	All bool
	// IDs appends the tree id of each row, for use with -move and -to.
	IDs bool
	// Styled colours the kind tags; plain output is used for pipes.
	Styled bool
	// Width truncates labels; zero disables truncation.
	Width int
}

// printTree writes the visible rows of f, one per line, indented by level.
func printTree(w io.Writer, f catalog.Forest, build catalog.BuildOptions, opts printOptions) error {
	forest := catalog.Build(f, build)
	list := flattree.Flatten(forest)
	if !opts.All {
		list = list.Visible()
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "(empty catalog)")
		return err
	}

	var theme ui.Theme
	if opts.Styled {
		theme = ui.DefaultTheme(lipgloss.DefaultRenderer())
	}
	for _, n := range list {
		if _, err := fmt.Fprintln(w, formatRow(n, theme, opts)); err != nil {
			return err
		}
	}
	return nil
}

func formatRow(n *flattree.FlatNode[catalog.Meta], theme ui.Theme, opts printOptions) string {
	indent := strings.Repeat("  ", n.Level)
	marker := "-"
	switch {
	case n.Placeholder:
		marker = "…"
	case n.Expandable && n.Expanded:
		marker = "▾"
	case n.Expandable:
		marker = "▸"
	}

	tag := kindTag(n.Metadata.Kind)
	label := n.Label
	suffix := ""
	if opts.IDs && !n.Placeholder {
		suffix = "  [" + n.ID + "]"
	}
	if opts.Width > 0 {
		used := runewidth.StringWidth(indent+marker+" "+tag+" ") + runewidth.StringWidth(suffix)
		label = runewidth.Truncate(label, max(1, opts.Width-used), "…")
	}

	if opts.Styled && theme.Renderer != nil {
		_, color := theme.KindIcon(n.Metadata.Kind)
		tag = theme.Renderer.NewStyle().Foreground(color).Bold(true).Render(tag)
		marker = theme.TreeLines.Render(marker)
		if suffix != "" {
			suffix = theme.MutedText.Render(suffix)
		}
	}
	return indent + marker + " " + tag + " " + label + suffix
}

// kindTag is a fixed-width tag for the entity kind.
func kindTag(k catalog.EntityKind) string {
	switch k {
	case catalog.EntityNode:
		return "[D]"
	case catalog.EntityService:
		return "[S]"
	case catalog.EntityLayer:
		return "[L]"
	case catalog.EntityFeatureSource:
		return "[F]"
	case catalog.EntityFeatureType:
		return "[T]"
	}
	return "   "
}
