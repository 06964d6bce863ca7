package datasource

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
)

// SnapshotDiff lists the folders that differ between two snapshots.
type SnapshotDiff struct {
	// Added holds folders only in the new snapshot.
	Added []string
	// Removed holds folders only in the old snapshot.
	Removed []string
	// Changed holds folders whose title, children or items differ.
	Changed []string
	// Entities counts added, removed or changed services, layers, feature
	// sources and feature types together.
	Entities int
}

// HasChanges reports whether the snapshots differ at all.
func (d SnapshotDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0 || d.Entities > 0
}

// Summary returns a human-readable summary of the differences
func (d SnapshotDiff) Summary() string {
	if !d.HasChanges() {
		return "No changes"
	}
	var b strings.Builder
	section := func(label string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "  - %d folder(s) %s\n", len(ids), label)
		if len(ids) <= 5 {
			for _, id := range ids {
				fmt.Fprintf(&b, "    - %s\n", id)
			}
		}
	}
	b.WriteString("Changes:\n")
	section("added", d.Added)
	section("removed", d.Removed)
	section("changed", d.Changed)
	if d.Entities > 0 {
		fmt.Fprintf(&b, "  - %d other entit(ies) changed\n", d.Entities)
	}
	return b.String()
}

// Diff compares two snapshots. Folders shared by pointer are skipped without
// comparing them, so diffing a forest against the result of catalog.Move is
// proportional to the folders the move replaced. Results follow the order of
// the snapshot the ids come from.
func Diff(from, to catalog.Forest) SnapshotDiff {
	var d SnapshotDiff

	before := make(map[string]*catalog.Node, len(from.Nodes))
	for _, n := range from.Nodes {
		if n != nil {
			before[n.ID] = n
		}
	}
	after := make(map[string]bool, len(to.Nodes))
	for _, n := range to.Nodes {
		if n == nil {
			continue
		}
		after[n.ID] = true
		prev, ok := before[n.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, n.ID)
		case prev != n && !sameNode(prev, n):
			d.Changed = append(d.Changed, n.ID)
		}
	}
	for _, n := range from.Nodes {
		if n != nil && !after[n.ID] {
			d.Removed = append(d.Removed, n.ID)
		}
	}

	d.Entities = diffCount(from.Services, to.Services, func(s *catalog.Service) string { return s.ID }, func(a, b *catalog.Service) bool { return *a == *b }) +
		diffCount(from.Layers, to.Layers, func(l *catalog.Layer) string { return l.ID }, sameLayer) +
		diffCount(from.FeatureSources, to.FeatureSources, func(s *catalog.FeatureSource) string { return s.ID }, func(a, b *catalog.FeatureSource) bool { return *a == *b }) +
		diffCount(from.FeatureTypes, to.FeatureTypes, func(t *catalog.FeatureType) string { return t.ID }, func(a, b *catalog.FeatureType) bool { return *a == *b })
	return d
}

func sameNode(a, b *catalog.Node) bool {
	return a.Title == b.Title && a.Root == b.Root &&
		slices.Equal(a.Children, b.Children) && slices.Equal(a.Items, b.Items)
}

func sameLayer(a, b *catalog.Layer) bool {
	return a.ServiceID == b.ServiceID && a.Name == b.Name && a.Title == b.Title &&
		a.UserTitle == b.UserTitle && a.Root == b.Root && a.ParentID == b.ParentID &&
		slices.Equal(a.CRS, b.CRS) && slices.Equal(a.Children, b.Children)
}

func diffCount[T any](from, to []*T, id func(*T) string, same func(a, b *T) bool) int {
	before := make(map[string]*T, len(from))
	for _, e := range from {
		if e != nil {
			before[id(e)] = e
		}
	}
	n := 0
	seen := make(map[string]bool, len(to))
	for _, e := range to {
		if e == nil {
			continue
		}
		seen[id(e)] = true
		prev, ok := before[id(e)]
		if !ok || (prev != e && !same(prev, e)) {
			n++
		}
	}
	for k := range before {
		if !seen[k] {
			n++
		}
	}
	return n
}
