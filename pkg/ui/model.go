package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tailormap/tailormap-viewer-sub000/internal/datasource"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/config"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/treestate"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/watcher"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// header, breadcrumb and footer rows
	chromeRows = 3
)

// FileChangedMsg is sent when the snapshot file changes on disk
type FileChangedMsg struct {
	Path string
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		path, ok := <-w.Changed()
		if !ok {
			return nil
		}
		return FileChangedMsg{Path: path}
	}
}

// Options configure NewModel.
type Options struct {
	Config config.Config
	// Session reads and writes the snapshot. Without one the tree is
	// browse-only: saving and reloading are disabled.
	Session *datasource.Session
	Watcher *watcher.Watcher
	// StatePath is where expansion state is persisted; empty disables it.
	StatePath string
	Filter    string
	CRS       string
	Theme     *Theme
}

// Model is the catalog tree browser.
type Model struct {
	theme Theme
	cfg   config.Config
	v     *treeView

	session   *datasource.Session
	watcher   *watcher.Watcher
	statePath string
	crs       string

	width  int
	height int

	filterInput textinput.Model
	filtering   bool

	statusMsg     string
	statusIsError bool
	confirmQuit   bool
	quitting      bool
}

// NewModel builds the browser over f. fetcher serves lazily loaded folders
// and may be nil.
func NewModel(f catalog.Forest, fetcher loader.Fetcher, opts Options) Model {
	cfg := opts.Config
	var theme Theme
	if opts.Theme != nil {
		theme = *opts.Theme
	} else {
		theme = DefaultTheme(lipgloss.DefaultRenderer())
	}

	build := catalog.BuildOptions{ShowRoot: cfg.UI.ShowRoot, Checkable: cfg.UI.Checkable}
	v := newTreeView(f, fetcher, cfg.UI.Radio, build, cfg.DragOptions())
	if v.loader != nil {
		v.loader.SetLimit(cfg.Data.LoadLimit)
	}

	ti := textinput.New()
	ti.Placeholder = "title words…"
	ti.Prompt = "/ "
	ti.PromptStyle = theme.Renderer.NewStyle().Foreground(theme.Primary)
	ti.CharLimit = 120
	ti.SetValue(opts.Filter)

	m := Model{
		theme:       theme,
		cfg:         cfg,
		v:           v,
		session:     opts.Session,
		watcher:     opts.Watcher,
		statePath:   opts.StatePath,
		crs:         opts.CRS,
		width:       defaultWidth,
		height:      defaultHeight,
		filterInput: ti,
	}

	if m.statePath != "" && cfg.UI.PersistExpansion {
		state, err := treestate.LoadExpansion(m.statePath)
		if err != nil {
			debug.Log("ui: %v", err)
		}
		v.expansion = state
	}
	v.canvas.resize(m.bodyHeight())
	v.filter = cfg.FilterOptions(opts.Filter, opts.CRS)
	v.rebuild()
	return m
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	cmds = append(cmds, m.v.drainLoads()...)
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.v.width = msg.Width
		m.v.canvas.resize(m.bodyHeight())
		m.v.canvas.reveal(m.v.cursor)
		m.filterInput.Width = max(10, msg.Width-4)

	case timerFiredMsg:
		m.v.sched.fire(msg.id)

	case subtreeLoadedMsg:
		if err := m.v.applySubtree(msg); err != nil {
			m.setStatus(fmt.Sprintf("Load of folder %s failed: %v", msg.folder, err), true)
		}

	case FileChangedMsg:
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}
		if m.v.dirty {
			m.setStatus("Snapshot changed on disk; unsaved moves kept (R reloads)", true)
			break
		}
		m.reload(false)

	case tea.KeyMsg:
		var cmd tea.Cmd
		switch {
		case m.filtering:
			m, cmd = m.handleFilterKeys(msg)
		case m.v.dragging():
			m = m.handleDragKeys(msg)
		default:
			m, cmd = m.handleTreeKeys(msg)
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	cmds = append(cmds, m.v.sched.drain()...)
	cmds = append(cmds, m.v.drainLoads()...)
	return m, tea.Batch(cmds...)
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsError = isErr
}

func (m Model) bodyHeight() int {
	return max(1, m.height-chromeRows)
}

func (m Model) handleTreeKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()
	if key != "q" {
		m.confirmQuit = false
	}

	switch key {
	case "ctrl+c":
		return m.quit()
	case "q":
		if m.v.dirty && !m.confirmQuit {
			m.confirmQuit = true
			m.setStatus("Unsaved moves: press q again to discard, s to save", true)
			return m, nil
		}
		return m.quit()
	case "j", "down":
		m.v.moveBy(1)
	case "k", "up":
		m.v.moveBy(-1)
	case "g", "home":
		m.v.moveTo(0)
	case "G", "end":
		m.v.moveTo(len(m.v.visible) - 1)
	case "ctrl+d", "pgdown":
		m.v.moveBy(m.bodyHeight())
	case "ctrl+u", "pgup":
		m.v.moveBy(-m.bodyHeight())
	case "l", "right":
		m.v.expandOrDescend()
	case "h", "left":
		m.v.collapseOrAscend()
	case "enter":
		m.v.toggleExpanded()
	case " ", "space":
		if !m.cfg.UI.Checkable {
			m.setStatus("Checkboxes are disabled", false)
		} else if !m.v.toggleChecked(m.cfg.UI.Radio) && m.cfg.UI.Radio {
			m.setStatus("Radio mode: pick a single layer", false)
		}
	case "/":
		m.filtering = true
		return m, m.filterInput.Focus()
	case "esc":
		if m.v.filter.Active() {
			m.filterInput.SetValue("")
			m.v.setFilter(m.cfg.FilterOptions("", m.crs))
			m.setStatus("Filter cleared", false)
		}
	case "m":
		if n, ok := m.v.current(); ok {
			if m.v.startDrag() {
				m.setStatus(fmt.Sprintf("Moving %s: j/k pick target, tab before/inside/after, enter drops, esc cancels", n.Label), false)
			} else {
				m.setStatus(fmt.Sprintf("%s cannot be moved", n.Label), true)
			}
		}
	case "y":
		if n, ok := m.v.current(); ok && !n.Placeholder {
			if err := clipboard.WriteAll(n.Metadata.ID); err != nil {
				m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
			} else {
				m.setStatus(fmt.Sprintf("Copied %s to clipboard", n.Metadata.ID), false)
			}
		}
	case "s":
		m.save()
	case "R":
		m.reload(true)
	}
	return m, nil
}

func (m Model) handleDragKeys(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "j", "down":
		m.v.hoverBy(1)
	case "k", "up":
		m.v.hoverBy(-1)
	case "tab":
		m.v.cycleGrab(1)
	case "shift+tab":
		m.v.cycleGrab(-1)
	case "enter", " ", "space":
		res := m.v.drop()
		switch {
		case !res.dropped:
			m.setStatus("Dropped outside a target; nothing moved", false)
		case !res.moved:
			m.setStatus("Move not allowed there", true)
		default:
			ev := res.event
			m.setStatus(fmt.Sprintf("Moved %s %s %s", labelOf(ev.NodeID), ev.Position, labelOf(ev.Sibling)), false)
		}
	case "esc", "q", "ctrl+c":
		m.v.cancelDrag()
		m.setStatus("Move cancelled", false)
	}
	return m
}

func (m Model) handleFilterKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filterInput.Blur()
		return m, nil
	case "esc":
		m.filtering = false
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		m.v.setFilter(m.cfg.FilterOptions("", m.crs))
		return m, nil
	}
	var cmd tea.Cmd
	before := m.filterInput.Value()
	m.filterInput, cmd = m.filterInput.Update(msg)
	if term := m.filterInput.Value(); term != before {
		m.v.setFilter(m.cfg.FilterOptions(term, m.crs))
	}
	return m, cmd
}

func (m Model) quit() (Model, tea.Cmd) {
	m.persistExpansion()
	m.quitting = true
	return m, tea.Quit
}

func (m Model) persistExpansion() {
	if m.statePath == "" || !m.cfg.UI.PersistExpansion {
		return
	}
	if err := treestate.SaveExpansion(m.statePath, m.v.expansionSnapshot()); err != nil {
		debug.Log("ui: %v", err)
	}
}

func (m *Model) save() {
	if m.session == nil {
		m.setStatus("Nothing to save to", true)
		return
	}
	if !m.v.dirty {
		m.setStatus("No unsaved moves", false)
		return
	}
	start := time.Now()
	n, err := m.session.Save(context.Background(), m.v.full)
	if err != nil {
		m.setStatus(fmt.Sprintf("Save failed: %v", err), true)
		return
	}
	debug.LogTiming("ui.save", time.Since(start))
	m.v.dirty = false
	m.setStatus(fmt.Sprintf("Saved %s (%d entit(ies) written)", m.session.Path(), n), false)
}

// reload reads the snapshot again. Unless forced, an unchanged snapshot
// leaves the tree and status alone.
func (m *Model) reload(force bool) {
	if m.session == nil {
		return
	}
	f, fetcher, err := m.session.Load(context.Background())
	if err != nil {
		m.setStatus(fmt.Sprintf("Reload error: %v", err), true)
		return
	}
	from, to := m.v.full, f
	if m.session.Lazy() {
		from, to = catalog.Forest{Nodes: from.Nodes}, catalog.Forest{Nodes: to.Nodes}
	}
	d := datasource.Diff(from, to)
	if !d.HasChanges() && !force {
		return
	}
	m.v.replace(f, fetcher)
	if m.v.loader != nil {
		m.v.loader.SetLimit(m.cfg.Data.LoadLimit)
	}
	m.setStatus("Reloaded: "+summaryLine(d.Summary()), false)
}

// summaryLine folds a diff summary onto one line.
func summaryLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 1 {
		return lines[0]
	}
	parts := make([]string, 0, len(lines)-1)
	for _, l := range lines[1:] {
		if t := strings.TrimSpace(l); strings.HasPrefix(t, "- ") && !strings.HasPrefix(l, "    ") {
			parts = append(parts, strings.TrimPrefix(t, "- "))
		}
	}
	return strings.Join(parts, ", ")
}

// labelOf shortens a tree id to its entity id for status messages.
func labelOf(treeID string) string {
	if _, id, ok := catalog.ParseTreeID(treeID); ok {
		return id
	}
	return treeID
}

// Close persists expansion state and stops the watcher.
func (m Model) Close() error {
	m.persistExpansion()
	if m.watcher != nil {
		m.watcher.Stop()
	}
	return nil
}

// Forest returns the current snapshot, including unsaved moves.
func (m Model) Forest() catalog.Forest { return m.v.full }

// Dirty reports whether there are unsaved moves.
func (m Model) Dirty() bool { return m.v.dirty }
