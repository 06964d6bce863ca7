package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/flattree"
)

// View renders the header, the breadcrumb or root drop row, the windowed
// tree body and the footer. Only rows inside the viewport are rendered.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.renderCrumb())
	sb.WriteString("\n")

	v := m.v
	body := m.bodyHeight()
	if len(v.visible) == 0 {
		empty := m.renderEmptyState()
		sb.WriteString(empty)
		body -= strings.Count(empty, "\n")
	} else {
		prefixes := treePrefixes(v.visible)
		start := v.canvas.offset
		end := min(start+body, len(v.visible))
		for i := start; i < end; i++ {
			sb.WriteString(m.renderRow(i, v.visible[i], prefixes[i]))
			sb.WriteString("\n")
		}
		body -= end - start
	}
	for ; body > 0; body-- {
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderFooter())
	return sb.String()
}

func (m Model) renderHeader() string {
	title := "Catalog"
	if m.session != nil {
		title += "  " + filepath.Base(m.session.Path())
	}
	if m.v.dirty {
		title += "  " + m.theme.Dirty.Render("● modified")
	}
	if m.v.filter.Active() {
		title += "  " + RenderCountBadge(m.v.shown.Size(), m.v.full.Size())
	}
	return m.theme.Header.Width(max(1, m.width)).Render(title)
}

// renderCrumb shows the root drop row while dragging and the path of the
// selected node otherwise.
func (m Model) renderCrumb() string {
	v := m.v
	if v.dragging() {
		line := "⌂ catalog root"
		if mk, ok := v.canvas.markers[rootElement]; ok {
			line += "  " + m.theme.DropMarker.Render(MarkerGlyph(mk))
		}
		if v.hover < 0 {
			return m.theme.DropRow.Render(line)
		}
		return m.theme.MutedText.Render(line)
	}

	n, ok := v.current()
	if !ok {
		return ""
	}
	parts := []string{n.Label}
	for id := n.ID; ; {
		p, ok := v.store.Parent(id)
		if !ok {
			break
		}
		parts = append(parts, p.Label)
		id = p.ID
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	crumb := strings.Join(parts, " › ")
	return m.theme.MutedText.Render(runewidth.Truncate(crumb, max(1, m.width-1), "…"))
}

// renderRow draws one visible row:
// [tree-prefix] [expand] [checkbox] [kind] [label] [drop marker]
func (m Model) renderRow(i int, n *flattree.FlatNode[catalog.Meta], prefix string) string {
	v := m.v
	t := m.theme
	width := max(20, m.width) - 1

	var left strings.Builder
	left.WriteString(t.TreeLines.Render(prefix))
	left.WriteString(expandIndicator(n))
	left.WriteString(" ")

	if n.Placeholder {
		left.WriteString(t.Placeholder.Render(n.Label))
		return left.String()
	}

	if v.build.Checkable {
		left.WriteString(t.Checkbox.Render(m.checkbox(n)))
		left.WriteString(" ")
	}
	icon, color := t.KindIcon(n.Metadata.Kind)
	left.WriteString(t.Renderer.NewStyle().Foreground(color).Bold(true).Render(icon))
	left.WriteString(" ")

	var suffix string
	dragging := v.dragging()
	if mk, ok := v.canvas.markers[n.ID]; ok && dragging {
		suffix = "  " + t.DropMarker.Render(MarkerGlyph(mk))
	}

	selected := !dragging && n.ID == v.store.Selected()
	budget := width - lipgloss.Width(left.String()) - lipgloss.Width(suffix)
	if selected {
		budget -= 2 // border and padding of the selection style
	}
	label := runewidth.Truncate(n.Label, max(1, budget), "…")

	switch {
	case dragging && n.ID == v.drag.Dragged():
		label = t.Dragged.Render(label)
	case selected:
		return t.Selected.Render(left.String() + label + suffix)
	}
	row := left.String() + label + suffix
	if dragging && i == v.hover {
		row = t.DropRow.Render(row)
	}
	return row
}

func expandIndicator(n *flattree.FlatNode[catalog.Meta]) string {
	switch {
	case n.Placeholder:
		return "…"
	case !n.Expandable:
		return "•"
	case n.Expanded:
		return "▾"
	default:
		return "▸"
	}
}

// checkbox renders the check state. Groups show their descendant aggregate.
func (m Model) checkbox(n *flattree.FlatNode[catalog.Meta]) string {
	store := m.v.store
	switch {
	case n.Checkbox && m.cfg.UI.Radio && !n.Expandable:
		if store.IsChecked(n.ID) {
			return "(•)"
		}
		return "( )"
	case n.Checkbox || n.Expandable:
		if store.IsIndeterminate(n.ID) {
			return "[-]"
		}
		if store.IsChecked(n.ID) {
			return "[x]"
		}
		return "[ ]"
	}
	return "   "
}

func (m Model) renderFooter() string {
	if m.filtering {
		return m.filterInput.View()
	}
	right := m.renderPositionIndicator()
	room := max(1, m.width-lipgloss.Width(right)-1)

	style := m.theme.MutedText
	text := "↑↓ move • ←→ fold • space check • / filter • m move • s save • q quit"
	switch {
	case m.statusMsg != "" && m.statusIsError:
		style, text = m.theme.StatusError, m.statusMsg
	case m.statusMsg != "":
		style, text = m.theme.StatusText, m.statusMsg
	case m.v.dragging():
		text = "j/k target • tab position • enter drop • esc cancel"
	}
	left := style.Render(runewidth.Truncate(text, room, "…"))
	if right == "" {
		return left
	}
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

// renderPositionIndicator renders "Page X/Y (a-b of n)" when the tree does
// not fit the body.
func (m Model) renderPositionIndicator() string {
	total := len(m.v.visible)
	pageSize := m.bodyHeight()
	if total <= pageSize {
		return ""
	}
	start := m.v.canvas.offset
	end := min(start+pageSize, total)
	totalPages := (total + pageSize - 1) / pageSize
	currentPage := min(start/pageSize+1, totalPages)
	if end == total {
		currentPage = totalPages
	}
	indicator := fmt.Sprintf(" Page %d/%d (%d-%d of %d)", currentPage, totalPages, start+1, end, total)
	return m.theme.MutedText.Render(indicator)
}

func (m Model) renderEmptyState() string {
	r := m.theme.Renderer
	titleStyle := r.NewStyle().Foreground(m.theme.Primary).Bold(true)
	mutedStyle := r.NewStyle().Foreground(m.theme.Muted)

	var sb strings.Builder
	if m.v.filter.Active() {
		sb.WriteString(titleStyle.Render("No matches"))
		sb.WriteString("\n")
		sb.WriteString(mutedStyle.Render("Press esc to clear the filter."))
	} else {
		sb.WriteString(titleStyle.Render("Empty catalog"))
		sb.WriteString("\n")
		sb.WriteString(mutedStyle.Render("The snapshot has no root folder."))
	}
	sb.WriteString("\n")
	return sb.String()
}
