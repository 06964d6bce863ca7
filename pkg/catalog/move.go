package catalog

import (
	"slices"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/dragdrop"
)

// Position is where a moved element lands relative to its sibling.
type Position = dragdrop.Position

const (
	Before = dragdrop.Before
	After  = dragdrop.After
	Inside = dragdrop.Inside
)

// MoveKind tags what kind of element a move involves.
type MoveKind int

const (
	ContainerMove MoveKind = iota + 1
	ItemMove
)

// Subject identifies the kind of a moved element or of its sibling.
// Item is only meaningful for ItemMove.
type Subject struct {
	Move MoveKind
	Item ItemKind
}

// Container is the subject of a folder.
func Container() Subject { return Subject{Move: ContainerMove} }

// Item is the subject of an item reference of kind k.
func Item(k ItemKind) Subject { return Subject{Move: ItemMove, Item: k} }

func (s Subject) valid() bool {
	switch s.Move {
	case ContainerMove:
		return true
	case ItemMove:
		return s.Item.Valid()
	}
	return false
}

// MoveIntent describes one structural move.
type MoveIntent struct {
	NodeID     string
	Node       Subject
	FromParent string
	ToParent   string
	Position   Position
	SiblingID  string
	Sibling    Subject
}

// Move applies the intent and returns the new forest. An illegal or
// ineffective move returns f itself and false.
//
// Only the folders whose lists change are replaced in the result; every
// other pointer is shared with f.
func Move(f Forest, in MoveIntent) (Forest, bool) {
	if !in.Node.valid() || !in.Sibling.valid() {
		return reject(f, in, "unknown kind")
	}
	ix := newIndex(f)
	switch in.Position {
	case Inside:
		return moveInside(f, ix, in)
	case Before, After:
		if in.NodeID == in.SiblingID && in.Node == in.Sibling {
			return reject(f, in, "node is its own sibling")
		}
		return moveBeside(f, ix, in)
	}
	return reject(f, in, "unknown position")
}

func reject(f Forest, in MoveIntent, why string) (Forest, bool) {
	debug.Log("catalog: move %s %s %s rejected: %s", in.NodeID, in.Position, in.SiblingID, why)
	return f, false
}

func moveInside(f Forest, ix *index, in MoveIntent) (Forest, bool) {
	if in.Sibling.Move != ContainerMove {
		return reject(f, in, "items cannot hold children")
	}
	dest := in.ToParent
	if dest == "" {
		dest = in.SiblingID
	}
	destNode := ix.nodes[dest]
	if destNode == nil {
		return reject(f, in, "unknown destination")
	}
	if in.Node.Move == ContainerMove {
		if _, ok := ix.nodes[in.NodeID]; !ok {
			return reject(f, in, "unknown folder")
		}
		if dest == in.NodeID || ix.descendantNodes(in.NodeID)[dest] {
			return reject(f, in, "folder cannot move into itself")
		}
	}

	updates := map[string]*Node{}
	if old := findParent(ix, f, in); old != nil {
		updates[old.ID] = without(old, in)
	}
	target := updates[dest]
	if target == nil {
		target = cloneNode(destNode)
	}
	if in.Node.Move == ContainerMove {
		target.Children = append(slices.Clone(target.Children), in.NodeID)
	} else {
		target.Items = append(slices.Clone(target.Items), ref(in))
	}
	updates[dest] = target
	return commit(f, ix, in, updates)
}

func moveBeside(f Forest, ix *index, in MoveIntent) (Forest, bool) {
	dest := in.ToParent
	if dest == "" {
		dest = siblingParent(ix, f, in)
	}
	destNode := ix.nodes[dest]
	if destNode == nil {
		return reject(f, in, "unknown destination")
	}
	if in.Node.Move == ContainerMove {
		if _, ok := ix.nodes[in.NodeID]; !ok {
			return reject(f, in, "unknown folder")
		}
		if dest == in.NodeID || ix.descendantNodes(in.NodeID)[dest] {
			return reject(f, in, "folder cannot move into itself")
		}
	}

	updates := map[string]*Node{}
	if old := findParent(ix, f, in); old != nil && old.ID != dest {
		updates[old.ID] = without(old, in)
	}
	target := cloneNode(destNode)
	if in.Node.Move == ContainerMove {
		sib := -1
		if in.Sibling.Move == ContainerMove {
			sib = slices.Index(target.Children, in.SiblingID)
			if sib < 0 {
				return reject(f, in, "sibling not in destination")
			}
		}
		if sib < 0 {
			// A folder cannot sit between items: it goes to the end of the
			// folder list.
			target.Children = slices.DeleteFunc(slices.Clone(target.Children), func(c string) bool { return c == in.NodeID })
			target.Children = append(target.Children, in.NodeID)
		} else {
			target.Children = placeRelative(target.Children, in.NodeID, sib, in.Position)
		}
	} else {
		r := ref(in)
		sib := -1
		if in.Sibling.Move == ItemMove {
			sib = slices.Index(target.Items, ItemRef{ID: in.SiblingID, Kind: in.Sibling.Item})
			if sib < 0 {
				return reject(f, in, "sibling not in destination")
			}
		}
		if sib < 0 {
			// An item dropped next to a folder goes to the front of the
			// item list.
			items := slices.DeleteFunc(slices.Clone(target.Items), func(it ItemRef) bool { return it == r })
			target.Items = slices.Insert(items, 0, r)
		} else {
			target.Items = placeRelative(target.Items, r, sib, in.Position)
		}
	}
	updates[dest] = target
	return commit(f, ix, in, updates)
}

// placeRelative moves or inserts elem before or after list[sib]. The target
// index accounts for elem being removed first when it already sits above
// the sibling.
func placeRelative[E comparable](list []E, elem E, sib int, pos Position) []E {
	out := slices.Clone(list)
	cur := slices.Index(out, elem)
	movingUp := cur == -1 || cur > sib
	var at int
	switch {
	case pos == Before && movingUp:
		at = sib
	case pos == Before:
		at = sib - 1
	case movingUp:
		at = sib + 1
	default:
		at = sib
	}
	if cur != -1 {
		out = slices.Delete(out, cur, cur+1)
	}
	if at > len(out) {
		at = len(out)
	}
	if at < 0 {
		at = 0
	}
	return slices.Insert(out, at, elem)
}

func ref(in MoveIntent) ItemRef {
	return ItemRef{ID: in.NodeID, Kind: in.Node.Item}
}

// findParent locates the folder currently holding the moved element,
// trusting FromParent when it is right.
func findParent(ix *index, f Forest, in MoveIntent) *Node {
	holds := func(n *Node) bool {
		if n == nil {
			return false
		}
		if in.Node.Move == ContainerMove {
			return slices.Contains(n.Children, in.NodeID)
		}
		return slices.Contains(n.Items, ref(in))
	}
	if n := ix.nodes[in.FromParent]; holds(n) {
		return n
	}
	for _, n := range f.Nodes {
		if holds(n) {
			return n
		}
	}
	return nil
}

// siblingParent finds the folder that holds the sibling.
func siblingParent(ix *index, f Forest, in MoveIntent) string {
	if in.Sibling.Move == ContainerMove {
		return ix.parentOf[in.SiblingID]
	}
	r := ItemRef{ID: in.SiblingID, Kind: in.Sibling.Item}
	for _, n := range f.Nodes {
		if n != nil && slices.Contains(n.Items, r) {
			return n.ID
		}
	}
	return ""
}

func without(n *Node, in MoveIntent) *Node {
	out := cloneNode(n)
	if in.Node.Move == ContainerMove {
		out.Children = slices.DeleteFunc(slices.Clone(n.Children), func(c string) bool { return c == in.NodeID })
	} else {
		r := ref(in)
		out.Items = slices.DeleteFunc(slices.Clone(n.Items), func(it ItemRef) bool { return it == r })
	}
	return out
}

func cloneNode(n *Node) *Node {
	c := *n
	return &c
}

// commit swaps the updated folders into a copy of the folder slice. When no
// list actually changed the original forest is returned.
func commit(f Forest, ix *index, in MoveIntent, updates map[string]*Node) (Forest, bool) {
	changed := false
	for id, n := range updates {
		old := ix.nodes[id]
		if !slices.Equal(old.Children, n.Children) || !slices.Equal(old.Items, n.Items) {
			changed = true
			break
		}
	}
	if !changed {
		return reject(f, in, "nothing changed")
	}
	out := f
	out.Nodes = make([]*Node, len(f.Nodes))
	for i, n := range f.Nodes {
		if n != nil {
			if u, ok := updates[n.ID]; ok {
				out.Nodes[i] = u
				continue
			}
		}
		out.Nodes[i] = n
	}
	debug.Log("catalog: moved %s %s %s (%d folder(s) changed)", in.NodeID, in.Position, in.SiblingID, len(updates))
	return out, true
}
