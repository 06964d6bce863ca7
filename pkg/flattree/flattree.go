// Package flattree projects a nested forest into a flat, pre-order list and
// answers structural queries against that list.
//
// Every algorithm here relies on one ordering invariant: a flat list is the
// depth-first pre-order walk of the forest. Descendants of a node are the
// contiguous run that follows it with a deeper level, and a node's parent is
// the nearest earlier entry with a shallower level.
package flattree

// PlaceholderID is the id suffix used for synthetic loading leaves.
const PlaceholderID = "loading"

// TreeNode is the nested form of a tree.
//
// A nil Children slice means "leaf or not loaded yet". Checked is nil when
// the node has no checkbox.
type TreeNode[T any] struct {
	ID         string
	Label      string
	Type       string
	Checked    *bool
	Expanded   bool
	Expandable bool // explicit flag; children also make a node expandable
	Metadata   T
	Children   []*TreeNode[T]

	// Placeholder marks a synthetic leaf shown while the real children of
	// the parent are still being fetched.
	Placeholder bool
}

// IsExpandable reports whether the node can be expanded.
func (n *TreeNode[T]) IsExpandable() bool {
	return n.Expandable || len(n.Children) > 0
}

// FlatNode is a TreeNode projected into a flat list.
type FlatNode[T any] struct {
	ID          string
	Label       string
	Type        string
	Level       int
	Expandable  bool
	Expanded    bool
	Checked     bool
	Checkbox    bool
	Placeholder bool
	Metadata    T

	// Node points back at the nested node this entry was made from.
	Node *TreeNode[T]
}

// List is a flat pre-order projection of a forest.
type List[T any] []*FlatNode[T]

// Flatten walks the forest depth first and stamps each node with its depth.
// Collapsed branches are included; use Visible to hide them.
func Flatten[T any](forest []*TreeNode[T]) List[T] {
	var out List[T]
	var walk func(n *TreeNode[T], level int)
	walk = func(n *TreeNode[T], level int) {
		if n == nil {
			return
		}
		out = append(out, project(n, level))
		for _, child := range n.Children {
			walk(child, level+1)
		}
	}
	for _, root := range forest {
		walk(root, 0)
	}
	return out
}

func project[T any](n *TreeNode[T], level int) *FlatNode[T] {
	fn := &FlatNode[T]{
		ID:          n.ID,
		Label:       n.Label,
		Type:        n.Type,
		Level:       level,
		Expandable:  n.IsExpandable(),
		Expanded:    n.Expanded,
		Placeholder: n.Placeholder,
		Metadata:    n.Metadata,
		Node:        n,
	}
	if n.Checked != nil {
		fn.Checkbox = true
		fn.Checked = *n.Checked
	}
	return fn
}

// Visible returns the entries whose ancestors are all expanded.
//
// currentExpand[l] tracks whether the most recent expandable node at level
// l-1 was open. It is updated for hidden nodes too, so a collapsed ancestor
// keeps suppressing its deeper descendants.
func (l List[T]) Visible() List[T] {
	out := make(List[T], 0, len(l))
	currentExpand := []bool{true}
	for _, n := range l {
		for len(currentExpand) <= n.Level+1 {
			currentExpand = append(currentExpand, false)
		}
		visible := true
		for i := 0; i <= n.Level; i++ {
			if !currentExpand[i] {
				visible = false
				break
			}
		}
		if visible {
			out = append(out, n)
		}
		if n.Expandable {
			currentExpand[n.Level+1] = n.Expanded
		}
	}
	return out
}

// Index returns the position of id in the list, or -1.
func (l List[T]) Index(id string) int {
	for i, n := range l {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the entry with the given id.
func (l List[T]) Find(id string) (*FlatNode[T], bool) {
	i := l.Index(id)
	if i < 0 {
		return nil, false
	}
	return l[i], true
}

// Descendants returns the contiguous run after index i whose level is deeper
// than the node at i.
func (l List[T]) Descendants(i int) List[T] {
	if i < 0 || i >= len(l) {
		return nil
	}
	level := l[i].Level
	end := i + 1
	for end < len(l) && l[end].Level > level {
		end++
	}
	return l[i+1 : end]
}

// Children returns the direct children of the node at index i.
func (l List[T]) Children(i int) List[T] {
	desc := l.Descendants(i)
	var out List[T]
	for _, d := range desc {
		if d.Level == l[i].Level+1 {
			out = append(out, d)
		}
	}
	return out
}

// Parent walks backward from index i to the first shallower entry.
func (l List[T]) Parent(i int) (*FlatNode[T], bool) {
	if i <= 0 || i >= len(l) || l[i].Level == 0 {
		return nil, false
	}
	level := l[i].Level
	for j := i - 1; j >= 0; j-- {
		if l[j].Level < level {
			return l[j], true
		}
	}
	return nil, false
}

// Ancestors returns the chain of parents of the node at index i, nearest first.
func (l List[T]) Ancestors(i int) List[T] {
	var out List[T]
	for i >= 0 {
		p, ok := l.Parent(i)
		if !ok {
			break
		}
		out = append(out, p)
		i = l.Index(p.ID)
	}
	return out
}

// Walk visits every node of the forest in pre-order. Returning false from fn
// stops the walk below that node.
func Walk[T any](forest []*TreeNode[T], fn func(n *TreeNode[T], level int) bool) {
	var walk func(n *TreeNode[T], level int)
	walk = func(n *TreeNode[T], level int) {
		if n == nil || !fn(n, level) {
			return
		}
		for _, c := range n.Children {
			walk(c, level+1)
		}
	}
	for _, root := range forest {
		walk(root, 0)
	}
}
