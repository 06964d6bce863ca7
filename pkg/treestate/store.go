// Package treestate serves checked, indeterminate, selection and expansion
// queries against the latest flat snapshot of a tree, and turns user intents
// into change events.
//
// The store never mutates the forest it is given. Listeners apply the
// published changes to their own data and submit a new snapshot through
// SetForest, which rebuilds every cache from scratch.
package treestate

import (
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/flattree"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/stream"
)

// CheckChange is a single node's new checked state.
type CheckChange struct {
	ID      string
	Checked bool
}

// CheckedEvent carries every node changed by one user action.
type CheckedEvent struct {
	Changes []CheckChange
}

// ExpandedEvent asks the owner of the forest to flip a node's expanded flag.
type ExpandedEvent struct {
	ID       string
	Expanded bool
}

// SelectedEvent reports the new single selection. ID is empty when the
// selection was cleared.
type SelectedEvent struct {
	ID string
}

// Store holds the current flat snapshot and derived caches.
type Store[T any] struct {
	forest []*flattree.TreeNode[T]
	flat   flattree.List[T]
	index  map[string]int

	checkedMap       map[string]bool
	indeterminateMap map[string]bool

	radio     bool
	radioLeaf string
	selected  string

	checked  stream.Stream[CheckedEvent]
	expanded stream.Stream[ExpandedEvent]
	selectn  stream.Stream[SelectedEvent]
}

// New creates an empty store. In radio mode at most one leaf is checked.
func New[T any](radio bool) *Store[T] {
	s := &Store[T]{radio: radio}
	s.rebuild()
	return s
}

// OnChecked subscribes to check changes.
func (s *Store[T]) OnChecked(fn func(CheckedEvent)) func() { return s.checked.Subscribe(fn) }

// OnExpanded subscribes to expansion toggles.
func (s *Store[T]) OnExpanded(fn func(ExpandedEvent)) func() { return s.expanded.Subscribe(fn) }

// OnSelected subscribes to selection changes.
func (s *Store[T]) OnSelected(fn func(SelectedEvent)) func() { return s.selectn.Subscribe(fn) }

// SetForest replaces the backing snapshot and rebuilds all caches.
func (s *Store[T]) SetForest(forest []*flattree.TreeNode[T]) {
	s.forest = forest
	s.rebuild()
}

// Forest returns the snapshot last passed to SetForest.
func (s *Store[T]) Forest() []*flattree.TreeNode[T] { return s.forest }

// Flat returns the complete flat projection.
func (s *Store[T]) Flat() flattree.List[T] { return s.flat }

// Visible returns the entries a renderer should draw.
func (s *Store[T]) Visible() flattree.List[T] { return s.flat.Visible() }

// Node looks up a flat node by id.
func (s *Store[T]) Node(id string) (*flattree.FlatNode[T], bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.flat[i], true
}

// Descendants returns the flat descendants of id.
func (s *Store[T]) Descendants(id string) flattree.List[T] {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.flat.Descendants(i)
}

// Parent returns the parent of id, if any.
func (s *Store[T]) Parent(id string) (*flattree.FlatNode[T], bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.flat.Parent(i)
}

func (s *Store[T]) rebuild() {
	s.flat = flattree.Flatten(s.forest)
	s.index = make(map[string]int, len(s.flat))
	s.checkedMap = make(map[string]bool, len(s.flat))
	s.indeterminateMap = make(map[string]bool, len(s.flat))
	for i, n := range s.flat {
		s.index[n.ID] = i
	}

	// Children come after their parent in pre-order, so a reverse walk sees
	// every child before the node that aggregates it.
	anyChecked := make(map[string]bool, len(s.flat))
	for i := len(s.flat) - 1; i >= 0; i-- {
		n := s.flat[i]
		if !n.Expandable {
			s.checkedMap[n.ID] = n.Checked
			continue
		}
		children := n.Node.Children
		all := len(children) > 0
		some := false
		for _, c := range children {
			if c == nil {
				continue
			}
			if s.checkedMap[c.ID] {
				some = true
			} else {
				all = false
			}
			if anyChecked[c.ID] {
				some = true
			}
		}
		s.checkedMap[n.ID] = all
		anyChecked[n.ID] = some
		s.indeterminateMap[n.ID] = some && !all
	}

	if _, ok := s.index[s.selected]; !ok {
		s.selected = ""
	}
	s.radioLeaf = ""
	if s.radio {
		for _, n := range s.flat {
			if !n.Expandable && n.Checkbox && n.Checked {
				s.radioLeaf = n.ID
				break
			}
		}
	}
	debug.Log("treestate: rebuilt %d nodes", len(s.flat))
}

// IsChecked returns the stored value for leaves and the descendant aggregate
// for expandable nodes.
func (s *Store[T]) IsChecked(id string) bool {
	return s.checkedMap[id]
}

// IsIndeterminate reports whether some but not all descendants are checked.
func (s *Store[T]) IsIndeterminate(id string) bool {
	return s.indeterminateMap[id]
}

// DescendantsAllSelected is true iff id has descendants and every one of
// them is checked.
func (s *Store[T]) DescendantsAllSelected(id string) bool {
	desc := s.Descendants(id)
	if len(desc) == 0 {
		return false
	}
	for _, d := range desc {
		if !s.checkedMap[d.ID] {
			return false
		}
	}
	return true
}

// ToggleGroup sets the node and every descendant to the opposite of the
// group's current aggregate, publishing one event with the whole set.
// In radio mode groups cannot be toggled: only one leaf may be checked.
func (s *Store[T]) ToggleGroup(id string) {
	if s.radio {
		return
	}
	i, ok := s.index[id]
	if !ok {
		return
	}
	target := !s.DescendantsAllSelected(id)
	desc := s.flat.Descendants(i)
	changes := make([]CheckChange, 0, len(desc)+1)
	changes = append(changes, CheckChange{ID: id, Checked: target})
	for _, d := range desc {
		changes = append(changes, CheckChange{ID: d.ID, Checked: target})
	}
	s.checked.Publish(CheckedEvent{Changes: changes})
}

// ToggleLeaf flips a single leaf. In radio mode it instead makes the leaf
// the only checked one, publishing the previous leaf as unchecked.
func (s *Store[T]) ToggleLeaf(id string) {
	n, ok := s.Node(id)
	if !ok {
		return
	}
	if !s.radio {
		s.checked.Publish(CheckedEvent{Changes: []CheckChange{{ID: id, Checked: !s.checkedMap[id]}}})
		return
	}
	if s.radioLeaf == n.ID {
		return
	}
	var changes []CheckChange
	if s.radioLeaf != "" {
		changes = append(changes, CheckChange{ID: s.radioLeaf, Checked: false})
	}
	changes = append(changes, CheckChange{ID: n.ID, Checked: true})
	s.radioLeaf = n.ID
	s.checked.Publish(CheckedEvent{Changes: changes})
}

// Toggle dispatches to ToggleGroup or ToggleLeaf depending on the node.
func (s *Store[T]) Toggle(id string) {
	n, ok := s.Node(id)
	if !ok {
		return
	}
	if n.Expandable {
		s.ToggleGroup(id)
		return
	}
	s.ToggleLeaf(id)
}

// RadioLeaf returns the active leaf in radio mode.
func (s *Store[T]) RadioLeaf() string { return s.radioLeaf }

// Select makes id the single selected node.
func (s *Store[T]) Select(id string) {
	if _, ok := s.index[id]; !ok || s.selected == id {
		return
	}
	s.selected = id
	s.selectn.Publish(SelectedEvent{ID: id})
}

// ClearSelection drops the current selection.
func (s *Store[T]) ClearSelection() {
	if s.selected == "" {
		return
	}
	s.selected = ""
	s.selectn.Publish(SelectedEvent{})
}

// Selected returns the selected id, or "".
func (s *Store[T]) Selected() string { return s.selected }

// ToggleExpanded asks for the node's expansion flag to be flipped.
func (s *Store[T]) ToggleExpanded(id string) {
	n, ok := s.Node(id)
	if !ok || !n.Expandable {
		return
	}
	s.expanded.Publish(ExpandedEvent{ID: id, Expanded: !n.Expanded})
}

// SetExpanded asks for the node to be expanded or collapsed. Nothing is
// published when the node is already in that state.
func (s *Store[T]) SetExpanded(id string, expanded bool) {
	n, ok := s.Node(id)
	if !ok || !n.Expandable || n.Expanded == expanded {
		return
	}
	s.expanded.Publish(ExpandedEvent{ID: id, Expanded: expanded})
}
