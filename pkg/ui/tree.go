package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/dragdrop"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/flattree"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/treestate"
)

// rootElement is the drop row standing for the root folder.
const rootElement = "catalog-root"

// grabOffsets are the pointer offsets inside a row, in drag units, that the
// keyboard drag cycles through: near the top, the middle and near the bottom.
var grabOffsets = [...]float64{1, 5, 9}

// subtreeLoadedMsg carries the result of a lazy folder fetch.
type subtreeLoadedMsg struct {
	folder  string
	subtree loader.Subtree
	err     error
}

// treeView owns the catalog snapshot behind the TUI and everything derived
// from it. Model values share one treeView.
type treeView struct {
	full   catalog.Forest
	shown  catalog.Forest
	filter catalog.FilterOptions
	build  catalog.BuildOptions

	store  *treestate.Store[catalog.Meta]
	target *catalog.DropTarget
	drag   *dragdrop.Controller
	canvas *canvas
	sched  *teaScheduler

	expansion *treestate.ExpansionState
	checked   map[string]bool

	loader    *loader.Loader
	loading   map[string]bool
	fetched   map[string]bool
	loadQueue []string

	visible  flattree.List[catalog.Meta]
	cursor   int
	cursorID string
	width    int

	// keyboard drag
	hover int
	grab  int

	moves int
	dirty bool
}

func newTreeView(f catalog.Forest, fetcher loader.Fetcher, radio bool, build catalog.BuildOptions, drag dragdrop.Options) *treeView {
	v := &treeView{
		full:      f,
		build:     build,
		store:     treestate.New[catalog.Meta](radio),
		canvas:    newCanvas(),
		sched:     newTeaScheduler(),
		expansion: treestate.NewExpansionState(),
		checked:   make(map[string]bool),
		loading:   make(map[string]bool),
		fetched:   make(map[string]bool),
		width:     80,
	}
	v.build.Loaded = v.folderLoaded
	v.setFetcher(fetcher)

	drag.Scheduler = v.sched
	v.drag = dragdrop.NewController(v.canvas, drag)
	v.target = catalog.NewDropTarget(v.store, func() catalog.Forest { return v.full }, v.applyMove)
	v.target.SetRootElement(rootElement)
	v.target.SetViewport(func() dragdrop.Rect { return v.canvas.viewport(v.width) })

	v.store.OnExpanded(v.onExpanded)
	v.store.OnChecked(v.onChecked)
	return v
}

func (v *treeView) setFetcher(fetcher loader.Fetcher) {
	v.loader = nil
	if fetcher != nil {
		v.loader = loader.New(fetcher)
	}
	clear(v.loading)
	clear(v.fetched)
	v.loadQueue = nil
}

// folderLoaded reports whether a folder's items are complete. Without a
// loader the snapshot is eager and every folder is.
func (v *treeView) folderLoaded(id string) bool {
	return v.loader == nil || v.fetched[id]
}

// replace swaps in a freshly loaded snapshot and drops local edits.
func (v *treeView) replace(f catalog.Forest, fetcher loader.Fetcher) {
	if v.drag.Active() {
		v.drag.Cancel()
	}
	v.full = f
	v.dirty = false
	v.setFetcher(fetcher)
	v.rebuild()
}

func (v *treeView) applyMove(next catalog.Forest, in catalog.MoveIntent) {
	debug.Log("ui: moved %s %s %s", in.NodeID, in.Position, in.SiblingID)
	v.full = next
	v.moves++
	v.dirty = true
	v.rebuild()
}

func (v *treeView) setFilter(opts catalog.FilterOptions) {
	v.filter = opts
	v.rebuild()
}

// rebuild derives the tree from the full snapshot. Expansion and check
// choices made by the user survive; while filtering, saved collapses do not
// override the filter's own expansion.
func (v *treeView) rebuild() {
	v.shown = catalog.Filter(v.full, v.filter)
	nodes := catalog.Build(v.shown, v.build)
	state := v.expansion
	if v.filter.Active() {
		state = expandedOnly(v.expansion)
	}
	treestate.ApplyExpansion(nodes, state)
	if len(v.checked) > 0 {
		changes := make([]treestate.CheckChange, 0, len(v.checked))
		for id, c := range v.checked {
			changes = append(changes, treestate.CheckChange{ID: id, Checked: c})
		}
		treestate.SetChecked(nodes, changes)
	}
	v.store.SetForest(nodes)
	v.sync()
}

func expandedOnly(s *treestate.ExpansionState) *treestate.ExpansionState {
	out := treestate.NewExpansionState()
	for id, e := range s.Expanded {
		if e {
			out.Expanded[id] = true
		}
	}
	return out
}

// sync refreshes the visible rows, keeps the cursor on the same node and
// queues fetches for expanded folders still showing a placeholder.
func (v *treeView) sync() {
	v.visible = v.store.Visible()
	v.canvas.setTotal(len(v.visible))

	if i := v.visible.Index(v.cursorID); i >= 0 {
		v.cursor = i
	} else {
		v.cursor = min(v.cursor, len(v.visible)-1)
		v.cursor = max(v.cursor, 0)
		v.cursorID = ""
		if len(v.visible) > 0 {
			v.cursorID = v.visible[v.cursor].ID
		}
	}
	if v.cursorID != "" {
		v.store.Select(v.cursorID)
	} else {
		v.store.ClearSelection()
	}
	v.canvas.reveal(v.cursor)

	if v.drag.Active() {
		v.hover = min(v.hover, len(v.visible)-1)
		ids := make([]string, len(v.visible))
		for i, n := range v.visible {
			ids[i] = n.ID
		}
		v.drag.AddElements(ids...)
	}

	for _, n := range v.visible {
		if n.Placeholder {
			v.queueLoad(n.Metadata.ID)
		}
	}
}

func (v *treeView) onExpanded(e treestate.ExpandedEvent) {
	v.expansion.Expanded[e.ID] = e.Expanded
	forest := v.store.Forest()
	if treestate.SetExpanded(forest, e.ID, e.Expanded) {
		v.store.SetForest(forest)
		v.sync()
	}
}

func (v *treeView) onChecked(e treestate.CheckedEvent) {
	for _, c := range e.Changes {
		if c.Checked {
			v.checked[c.ID] = true
		} else {
			delete(v.checked, c.ID)
		}
	}
	forest := v.store.Forest()
	if treestate.SetChecked(forest, e.Changes) > 0 {
		v.store.SetForest(forest)
		v.sync()
	}
}

// current returns the node under the cursor.
func (v *treeView) current() (*flattree.FlatNode[catalog.Meta], bool) {
	if v.cursor < 0 || v.cursor >= len(v.visible) {
		return nil, false
	}
	return v.visible[v.cursor], true
}

func (v *treeView) moveTo(i int) {
	if len(v.visible) == 0 {
		return
	}
	i = max(0, min(i, len(v.visible)-1))
	v.cursor = i
	v.cursorID = v.visible[i].ID
	v.store.Select(v.cursorID)
	v.canvas.reveal(i)
}

func (v *treeView) moveBy(delta int) { v.moveTo(v.cursor + delta) }

// expandOrDescend expands a collapsed node, or steps onto the first child of
// an expanded one.
func (v *treeView) expandOrDescend() {
	n, ok := v.current()
	if !ok || !n.Expandable {
		return
	}
	if !n.Expanded {
		v.store.SetExpanded(n.ID, true)
		return
	}
	if v.cursor+1 < len(v.visible) && v.visible[v.cursor+1].Level > n.Level {
		v.moveBy(1)
	}
}

// collapseOrAscend collapses an expanded node, or jumps to the parent.
func (v *treeView) collapseOrAscend() {
	n, ok := v.current()
	if !ok {
		return
	}
	if n.Expandable && n.Expanded {
		v.store.SetExpanded(n.ID, false)
		return
	}
	if p, ok := v.store.Parent(n.ID); ok {
		v.moveTo(v.visible.Index(p.ID))
	}
}

func (v *treeView) toggleExpanded() {
	if n, ok := v.current(); ok {
		v.store.ToggleExpanded(n.ID)
	}
}

// toggleChecked flips the checkbox under the cursor. Groups toggle all their
// descendants, except in radio mode where only leaves can be picked.
func (v *treeView) toggleChecked(radio bool) bool {
	n, ok := v.current()
	if !ok || n.Placeholder {
		return false
	}
	if n.Expandable && !n.Checkbox {
		if radio {
			return false
		}
		v.store.ToggleGroup(n.ID)
		return true
	}
	if !n.Checkbox {
		return false
	}
	v.store.Toggle(n.ID)
	return true
}

// expansionSnapshot merges the flags of the current tree into the recorded
// user choices, for persisting.
func (v *treeView) expansionSnapshot() *treestate.ExpansionState {
	out := treestate.NewExpansionState()
	if !v.filter.Active() {
		for id, e := range treestate.CaptureExpansion(v.store.Flat()).Expanded {
			out.Expanded[id] = e
		}
	}
	for id, e := range v.expansion.Expanded {
		out.Expanded[id] = e
	}
	return out
}

func (v *treeView) queueLoad(folder string) {
	if v.loader == nil || v.loading[folder] || v.fetched[folder] {
		return
	}
	v.loading[folder] = true
	v.loadQueue = append(v.loadQueue, folder)
}

// drainLoads turns queued folder fetches into commands.
func (v *treeView) drainLoads() []tea.Cmd {
	if len(v.loadQueue) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(v.loadQueue))
	for _, id := range v.loadQueue {
		cmds = append(cmds, loadSubtreeCmd(v.loader, id))
	}
	v.loadQueue = nil
	return cmds
}

func loadSubtreeCmd(l *loader.Loader, folder string) tea.Cmd {
	return func() tea.Msg {
		st, err := l.Load(context.Background(), folder)
		return subtreeLoadedMsg{folder: folder, subtree: st, err: err}
	}
}

// applySubtree merges a fetched folder. Stale results are dropped.
func (v *treeView) applySubtree(msg subtreeLoadedMsg) error {
	delete(v.loading, msg.folder)
	if errors.Is(msg.err, loader.ErrStale) {
		return nil
	}
	if msg.err != nil {
		v.fetched[msg.folder] = true
		v.rebuild()
		return msg.err
	}
	v.fetched[msg.folder] = true
	v.full = loader.Merge(v.full, msg.subtree)
	v.rebuild()
	return nil
}

func (v *treeView) dragging() bool { return v.drag.Active() }

// startDrag picks up the node under the cursor.
func (v *treeView) startDrag() bool {
	n, ok := v.current()
	if !ok || !v.target.Draggable(n.ID) {
		return false
	}
	elements := make([]string, 0, len(v.visible)+1)
	elements = append(elements, rootElement)
	for _, vn := range v.visible {
		elements = append(elements, vn.ID)
	}
	v.hover = v.cursor
	v.grab = 1
	v.drag.Start(n.ID, []dragdrop.DropZone{v.target}, elements)
	v.drag.Move(v.pointer(dragdrop.PointerMove))
	return true
}

// hoverBy moves the drag pointer by rows. Row -1 is the root drop row.
func (v *treeView) hoverBy(delta int) {
	v.hover = max(-1, min(v.hover+delta, len(v.visible)-1))
	if v.hover >= 0 {
		v.canvas.reveal(v.hover)
	}
	v.drag.Move(v.pointer(dragdrop.PointerMove))
}

// cycleGrab moves the pointer within the hovered row.
func (v *treeView) cycleGrab(delta int) {
	v.grab = (v.grab + delta + len(grabOffsets)) % len(grabOffsets)
	v.drag.Move(v.pointer(dragdrop.PointerMove))
}

// pointer synthesizes the pointer event for the hovered row.
func (v *treeView) pointer(kind dragdrop.PointerKind) dragdrop.PointerEvent {
	var id string
	var rect dragdrop.Rect
	if v.hover < 0 || v.hover >= len(v.visible) {
		id = rootElement
		rect = dragdrop.Rect{Top: -rowUnits, Width: float64(v.width), Height: rowUnits}
	} else {
		id = v.visible[v.hover].ID
		rect = v.canvas.rowRect(v.hover, v.width)
	}
	ev := dragdrop.PointerEvent{Kind: kind, X: 1, Y: rect.Top + grabOffsets[v.grab]}
	if v.canvas.listening[id] {
		ev.Target = &dragdrop.Element{NodeID: id, Rect: rect}
	}
	return ev
}

// dropResult describes the outcome of a keyboard drop.
type dropResult struct {
	event dragdrop.MoveEvent
	// dropped is false when the pointer was not over a valid target.
	dropped bool
	// moved is false when the move engine rejected the drop.
	moved bool
}

func (v *treeView) drop() dropResult {
	dragged := v.drag.Dragged()
	before := v.moves
	ev, ok := v.drag.Drop(v.pointer(dragdrop.PointerUp))
	if dragged != "" {
		v.cursorID = dragged
	}
	v.sync()
	return dropResult{event: ev, dropped: ok, moved: v.moves > before}
}

func (v *treeView) cancelDrag() {
	v.drag.Cancel()
	v.sync()
}

// treePrefixes returns the branch glyphs for every visible row. Top-level
// rows get none.
func treePrefixes(list flattree.List[catalog.Meta]) []string {
	out := make([]string, len(list))
	var open []bool // open[k]: a later row sits at level k before any shallower row
	for i := len(list) - 1; i >= 0; i-- {
		lvl := list[i].Level
		for len(open) <= lvl {
			open = append(open, false)
		}
		if lvl > 0 {
			buf := make([]byte, 0, 4*lvl*3)
			for k := 1; k < lvl; k++ {
				if open[k] {
					buf = append(buf, "│   "...)
				} else {
					buf = append(buf, "    "...)
				}
			}
			if open[lvl] {
				buf = append(buf, "├── "...)
			} else {
				buf = append(buf, "└── "...)
			}
			out[i] = string(buf)
		}
		open[lvl] = true
		for k := lvl + 1; k < len(open); k++ {
			open[k] = false
		}
	}
	return out
}
