package treestate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/flattree"
)

// ExpansionState is the persisted expand/collapse state of a tree.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "expanded": {
//	    "node:1": true,
//	    "service:12": false
//	  }
//	}
//
// Ids that no longer exist are ignored on apply. A missing file means no
// saved state.
type ExpansionState struct {
	Version  int             `json:"version"`
	Expanded map[string]bool `json:"expanded"`
}

// ExpansionStateVersion is the current schema version.
const ExpansionStateVersion = 1

// ExpansionStateFile is the file name used inside the state directory.
const ExpansionStateFile = "tree-state.json"

// NewExpansionState returns an empty state.
func NewExpansionState() *ExpansionState {
	return &ExpansionState{
		Version:  ExpansionStateVersion,
		Expanded: make(map[string]bool),
	}
}

// CaptureExpansion records the expanded flag of every expandable node.
func CaptureExpansion[T any](list flattree.List[T]) *ExpansionState {
	state := NewExpansionState()
	for _, n := range list {
		if n.Expandable && !n.Placeholder {
			state.Expanded[n.ID] = n.Expanded
		}
	}
	return state
}

// ApplyExpansion copies saved flags onto the forest and returns how many
// nodes were updated.
func ApplyExpansion[T any](forest []*flattree.TreeNode[T], state *ExpansionState) int {
	if state == nil || len(state.Expanded) == 0 {
		return 0
	}
	applied := 0
	flattree.Walk(forest, func(n *flattree.TreeNode[T], _ int) bool {
		if expanded, ok := state.Expanded[n.ID]; ok {
			n.Expanded = expanded
			applied++
		}
		return true
	})
	return applied
}

// SaveExpansion writes state to path, creating the directory if needed.
func SaveExpansion(path string, state *ExpansionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tree state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tree state %s: %w", path, err)
	}
	return nil
}

// LoadExpansion reads state from path. A missing file yields an empty state
// and no error; a corrupt file yields an empty state and the parse error so
// the caller can log it and carry on.
func LoadExpansion(path string) (*ExpansionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewExpansionState(), nil
		}
		return NewExpansionState(), fmt.Errorf("read tree state %s: %w", path, err)
	}
	var state ExpansionState
	if err := json.Unmarshal(data, &state); err != nil {
		return NewExpansionState(), fmt.Errorf("invalid tree state %s: %w", path, err)
	}
	if state.Expanded == nil {
		state.Expanded = make(map[string]bool)
	}
	return &state, nil
}

// SetChecked applies check changes to the checkbox nodes of a forest and
// returns the number of nodes touched.
func SetChecked[T any](forest []*flattree.TreeNode[T], changes []CheckChange) int {
	want := make(map[string]bool, len(changes))
	for _, c := range changes {
		want[c.ID] = c.Checked
	}
	touched := 0
	flattree.Walk(forest, func(n *flattree.TreeNode[T], _ int) bool {
		if v, ok := want[n.ID]; ok && n.Checked != nil {
			checked := v
			n.Checked = &checked
			touched++
		}
		return true
	})
	return touched
}

// SetExpanded flips the expanded flag of a single node in the forest.
func SetExpanded[T any](forest []*flattree.TreeNode[T], id string, expanded bool) bool {
	found := false
	flattree.Walk(forest, func(n *flattree.TreeNode[T], _ int) bool {
		if found {
			return false
		}
		if n.ID == id {
			n.Expanded = expanded
			found = true
			return false
		}
		return true
	})
	return found
}
