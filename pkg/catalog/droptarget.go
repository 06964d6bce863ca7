package catalog

import (
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/dragdrop"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/treestate"
)

// DropTarget is the drop zone of a catalog tree. It answers the drag
// controller's queries from the store holding the built tree, and turns
// the controller's move events into Move calls on the current snapshot.
//
// All ids it sees are tree ids as produced by Build.
type DropTarget struct {
	store    *treestate.Store[Meta]
	snapshot func() Forest
	onMove   func(Forest, MoveIntent)

	rootElement string
	viewport    func() dragdrop.Rect
	insideOnly  bool
}

// NewDropTarget creates a drop target over store. snapshot returns the
// forest the store's tree was built from; onMove receives the new forest
// after every move that changed something.
func NewDropTarget(store *treestate.Store[Meta], snapshot func() Forest, onMove func(Forest, MoveIntent)) *DropTarget {
	return &DropTarget{store: store, snapshot: snapshot, onMove: onMove}
}

// SetRootElement names the element that stands for the root folder.
// Dropping on it moves the dragged node to the end of the root.
func (d *DropTarget) SetRootElement(elementID string) { d.rootElement = elementID }

// SetViewport sets the function measuring the scroll container.
func (d *DropTarget) SetViewport(fn func() dragdrop.Rect) { d.viewport = fn }

// SetInsideOnly restricts drops to "inside" a folder.
func (d *DropTarget) SetInsideOnly(v bool) { d.insideOnly = v }

// Draggable reports whether the tree node may be picked up.
func (d *DropTarget) Draggable(id string) bool {
	if _, ok := d.store.Node(id); !ok {
		return false
	}
	_, _, ok := SubjectOf(id)
	return ok
}

// DropAllowed accepts folders, services and feature sources. Layers, feature
// types and loading placeholders are not drop targets.
func (d *DropTarget) DropAllowed(id string) bool { return d.Draggable(id) }

// DropInsideAllowed accepts folders only.
func (d *DropTarget) DropInsideAllowed(id string) bool {
	if !d.DropAllowed(id) {
		return false
	}
	kind, _, _ := ParseTreeID(id)
	return kind == EntityNode
}

func (d *DropTarget) IsExpandable(id string) bool {
	n, ok := d.store.Node(id)
	return ok && n.Expandable
}

func (d *DropTarget) IsExpanded(id string) bool {
	n, ok := d.store.Node(id)
	return ok && n.Expanded
}

func (d *DropTarget) ExpandNode(id string) { d.store.SetExpanded(id, true) }

// Parent returns the tree id of the folder holding id. Top-level nodes of a
// tree built without ShowRoot belong to the root folder.
func (d *DropTarget) Parent(id string) (string, bool) {
	if _, ok := d.store.Node(id); !ok {
		return "", false
	}
	if p, ok := d.store.Parent(id); ok {
		return p.ID, true
	}
	if root := d.snapshot().Root(); root != nil {
		if rid := TreeID(EntityNode, root.ID); rid != id {
			return rid, true
		}
	}
	return "", false
}

func (d *DropTarget) ScrollContainer() dragdrop.Rect {
	if d.viewport == nil {
		return dragdrop.Rect{}
	}
	return d.viewport()
}

func (d *DropTarget) ExtendedDropzoneElement() string { return d.rootElement }

func (d *DropTarget) RootNodeID() string {
	if root := d.snapshot().Root(); root != nil {
		return TreeID(EntityNode, root.ID)
	}
	return ""
}

func (d *DropTarget) InsideOnly() bool { return d.insideOnly }

// NodePositionChanged applies a drop to the snapshot.
func (d *DropTarget) NodePositionChanged(ev dragdrop.MoveEvent) {
	in, ok := IntentOf(ev)
	if !ok {
		debug.Log("catalog: drop %s %s %s is not a catalog move", ev.NodeID, ev.Position, ev.Sibling)
		return
	}
	next, changed := Move(d.snapshot(), in)
	if changed && d.onMove != nil {
		d.onMove(next, in)
	}
}

// IntentOf translates a move event over tree ids into a catalog move.
func IntentOf(ev dragdrop.MoveEvent) (MoveIntent, bool) {
	nodeID, node, ok := SubjectOf(ev.NodeID)
	if !ok {
		return MoveIntent{}, false
	}
	sibID, sib, ok := SubjectOf(ev.Sibling)
	if !ok {
		return MoveIntent{}, false
	}
	return MoveIntent{
		NodeID:     nodeID,
		Node:       node,
		FromParent: folderID(ev.FromParent),
		ToParent:   folderID(ev.ToParent),
		Position:   ev.Position,
		SiblingID:  sibID,
		Sibling:    sib,
	}, true
}

func folderID(treeID string) string {
	kind, id, ok := ParseTreeID(treeID)
	if !ok || kind != EntityNode {
		return ""
	}
	return id
}

var (
	_ dragdrop.ExtendedDropZone = (*DropTarget)(nil)
	_ dragdrop.InsideOnlyZone   = (*DropTarget)(nil)
)
