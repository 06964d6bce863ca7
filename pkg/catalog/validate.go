package catalog

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Validation errors. Validate wraps these with the offending ids.
var (
	ErrNoRoot        = errors.New("catalog has no root folder")
	ErrMultipleRoots = errors.New("catalog has more than one root folder")
	ErrCycle         = errors.New("catalog folders form a cycle")
	ErrDuplicateID   = errors.New("duplicate id")
	ErrBadItemKind   = errors.New("item reference has an unsupported kind")
	ErrSharedChild   = errors.New("folder is listed as child of more than one folder")
)

// Validate checks the structural invariants of a snapshot: one root, no
// cycles through Children, unique ids per collection, and only service or
// feature-source kinds in item lists. Every violation is reported.
// Dangling references are not errors; Build skips them.
func Validate(f Forest) error {
	var errs []error

	errs = append(errs, duplicates("folder", ids(f.Nodes, func(n *Node) string { return n.ID }))...)
	errs = append(errs, duplicates("service", ids(f.Services, func(s *Service) string { return s.ID }))...)
	errs = append(errs, duplicates("layer", ids(f.Layers, func(l *Layer) string { return l.ID }))...)
	errs = append(errs, duplicates("feature source", ids(f.FeatureSources, func(s *FeatureSource) string { return s.ID }))...)
	errs = append(errs, duplicates("feature type", ids(f.FeatureTypes, func(t *FeatureType) string { return t.ID }))...)

	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		for _, it := range n.Items {
			if !it.Kind.Valid() {
				errs = append(errs, fmt.Errorf("%w: folder %s references %s as %q", ErrBadItemKind, n.ID, it.ID, it.Kind))
			}
		}
	}

	errs = append(errs, structure(f)...)
	return errors.Join(errs...)
}

func ids[T any](items []*T, id func(*T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, id(it))
		}
	}
	return out
}

func duplicates(what string, values []string) []error {
	seen := make(map[string]bool, len(values))
	var errs []error
	for _, v := range values {
		if v == "" {
			continue
		}
		if seen[v] {
			errs = append(errs, fmt.Errorf("%w: %s %s", ErrDuplicateID, what, v))
		}
		seen[v] = true
	}
	return errs
}

// structure builds the folder graph and checks rootedness and acyclicity.
func structure(f Forest) []error {
	g := simple.NewDirectedGraph()
	graphIDs := map[string]int64{}
	names := map[int64]string{}
	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		if _, ok := graphIDs[n.ID]; ok {
			continue
		}
		gid := int64(len(graphIDs))
		graphIDs[n.ID] = gid
		names[gid] = n.ID
		g.AddNode(simple.Node(gid))
	}
	if len(graphIDs) == 0 {
		return []error{ErrNoRoot}
	}

	var errs []error
	parents := map[string]string{}
	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			cid, ok := graphIDs[c]
			if !ok {
				continue
			}
			if c == n.ID {
				errs = append(errs, fmt.Errorf("%w: %s contains itself", ErrCycle, c))
				continue
			}
			if p, dup := parents[c]; dup && p != n.ID {
				errs = append(errs, fmt.Errorf("%w: %s under %s and %s", ErrSharedChild, c, p, n.ID))
			}
			parents[c] = n.ID
			g.SetEdge(g.NewEdge(simple.Node(graphIDs[n.ID]), simple.Node(cid)))
		}
	}

	if _, err := topo.Sort(g); err != nil {
		for _, scc := range topo.TarjanSCC(g) {
			if len(scc) < 2 {
				continue
			}
			members := make([]string, 0, len(scc))
			for _, node := range scc {
				members = append(members, names[node.ID()])
			}
			sort.Strings(members)
			errs = append(errs, fmt.Errorf("%w: %v", ErrCycle, members))
		}
	}

	var roots []string
	for id := range graphIDs {
		if _, hasParent := parents[id]; !hasParent {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	switch {
	case len(roots) == 0:
		errs = append(errs, ErrNoRoot)
	case len(roots) > 1:
		errs = append(errs, fmt.Errorf("%w: %v", ErrMultipleRoots, roots))
	}
	return errs
}
