package catalog

import (
	"strings"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
)

// DefaultAutoExpandLimit is the largest filtered result that gets expanded
// automatically.
const DefaultAutoExpandLimit = 30

// FilterOptions select what to keep. An empty Term and CRS keeps everything.
type FilterOptions struct {
	Term string
	CRS  string
	// AutoExpandLimit overrides DefaultAutoExpandLimit when positive.
	AutoExpandLimit int
}

// Active reports whether the options filter anything.
func (o FilterOptions) Active() bool {
	return strings.TrimSpace(o.Term) != "" || strings.TrimSpace(o.CRS) != ""
}

// Filter prunes the forest to the entities matching the options plus every
// ancestor needed to reach them. The CRS filter runs first and the text
// filter runs on its result. Small results come back fully expanded.
func Filter(f Forest, opts FilterOptions) Forest {
	if !opts.Active() {
		return f
	}
	defer debug.LogEnterExit("catalog.Filter")()
	out := f
	if crs := strings.TrimSpace(opts.CRS); crs != "" {
		out = prune(out, crsMatcher{crs: crs})
	}
	if terms := strings.Fields(opts.Term); len(terms) > 0 {
		out = prune(out, newTextMatcher(terms))
	}
	limit := opts.AutoExpandLimit
	if limit <= 0 {
		limit = DefaultAutoExpandLimit
	}
	if n := out.Size(); n > 0 && n <= limit {
		out = expandAll(out)
	}
	debug.Log("catalog: filter %q crs=%q kept %d of %d entities", opts.Term, opts.CRS, out.Size(), f.Size())
	return out
}

type matcher interface {
	node(n *Node) bool
	service(s *Service) bool
	layer(l *Layer, ix *index) bool
	featureSource(s *FeatureSource) bool
	featureType(t *FeatureType) bool
}

type textMatcher struct {
	terms []string
}

func newTextMatcher(terms []string) textMatcher {
	lower := make([]string, len(terms))
	for i, t := range terms {
		lower[i] = strings.ToLower(t)
	}
	return textMatcher{terms: lower}
}

func (m textMatcher) match(title string) bool {
	title = strings.ToLower(title)
	for _, t := range m.terms {
		if !strings.Contains(title, t) {
			return false
		}
	}
	return true
}

func (m textMatcher) node(n *Node) bool                   { return m.match(n.Title) }
func (m textMatcher) service(s *Service) bool             { return m.match(s.Title) }
func (m textMatcher) layer(l *Layer, _ *index) bool       { return m.match(l.EffectiveTitle()) }
func (m textMatcher) featureSource(s *FeatureSource) bool { return m.match(s.Title) }
func (m textMatcher) featureType(t *FeatureType) bool     { return m.match(t.DisplayTitle()) }

type crsMatcher struct {
	crs string
}

func (m crsMatcher) node(*Node) bool                   { return false }
func (m crsMatcher) featureSource(*FeatureSource) bool { return false }
func (m crsMatcher) featureType(*FeatureType) bool     { return false }

func (m crsMatcher) service(s *Service) bool { return CRSAgnostic(s.Protocol) }

// layer matches when the layer or any ancestor layer declares the CRS, or
// when the service protocol does not care about CRS at all.
func (m crsMatcher) layer(l *Layer, ix *index) bool {
	if s := ix.services[l.ServiceID]; s != nil && CRSAgnostic(s.Protocol) {
		return true
	}
	seen := map[string]bool{}
	for cur := l; cur != nil && !seen[cur.ID]; cur = ix.layers[cur.ParentID] {
		seen[cur.ID] = true
		for _, c := range cur.CRS {
			if strings.EqualFold(c, m.crs) {
				return true
			}
		}
		if cur.ParentID == "" {
			break
		}
	}
	return false
}

// prune keeps matching entities and closes the result over ancestors.
func prune(f Forest, m matcher) Forest {
	ix := newIndex(f)

	layers := map[string]bool{}
	for _, l := range f.Layers {
		if l != nil && m.layer(l, ix) {
			layers[l.ID] = true
		}
	}
	types := map[string]bool{}
	for _, t := range f.FeatureTypes {
		if t != nil && m.featureType(t) {
			types[t.ID] = true
		}
	}

	services := map[string]bool{}
	for _, s := range f.Services {
		if s == nil {
			continue
		}
		keep := m.service(s)
		for _, l := range ix.svcLayers[s.ID] {
			if layers[l.ID] {
				keep = true
				break
			}
		}
		if keep {
			services[s.ID] = true
		}
	}
	sources := map[string]bool{}
	for _, s := range f.FeatureSources {
		if s == nil {
			continue
		}
		keep := m.featureSource(s)
		for _, t := range ix.srcTypes[s.ID] {
			if types[t.ID] {
				keep = true
				break
			}
		}
		if keep {
			sources[s.ID] = true
		}
	}

	itemKept := func(it ItemRef) bool {
		switch it.Kind {
		case KindGeoService:
			return services[it.ID]
		case KindFeatureSource:
			return sources[it.ID]
		}
		return false
	}
	nodes := map[string]bool{}
	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		keep := m.node(n)
		for _, it := range n.Items {
			if itemKept(it) {
				keep = true
				break
			}
		}
		if keep {
			nodes[n.ID] = true
		}
	}

	// Ancestor closure: folders up the Children chain, layers up ParentID.
	for id := range nodes {
		seen := map[string]bool{id: true}
		for p, ok := ix.parentOf[id]; ok && !seen[p]; p, ok = ix.parentOf[p] {
			seen[p] = true
			nodes[p] = true
		}
	}
	for id := range layers {
		seen := map[string]bool{id: true}
		for l := ix.layers[id]; l != nil && l.ParentID != "" && !seen[l.ParentID]; l = ix.layers[l.ParentID] {
			seen[l.ParentID] = true
			layers[l.ParentID] = true
		}
	}

	var out Forest
	for _, n := range f.Nodes {
		if n == nil || !nodes[n.ID] {
			continue
		}
		c := cloneNode(n)
		c.Children = nil
		for _, cid := range n.Children {
			if nodes[cid] {
				c.Children = append(c.Children, cid)
			}
		}
		c.Items = nil
		for _, it := range n.Items {
			if itemKept(it) {
				c.Items = append(c.Items, it)
			}
		}
		out.Nodes = append(out.Nodes, c)
	}
	for _, s := range f.Services {
		if s != nil && services[s.ID] {
			out.Services = append(out.Services, s)
		}
	}
	for _, l := range f.Layers {
		if l == nil || !layers[l.ID] {
			continue
		}
		c := *l
		c.Children = nil
		for _, cid := range l.Children {
			if layers[cid] {
				c.Children = append(c.Children, cid)
			}
		}
		out.Layers = append(out.Layers, &c)
	}
	for _, s := range f.FeatureSources {
		if s != nil && sources[s.ID] {
			out.FeatureSources = append(out.FeatureSources, s)
		}
	}
	for _, t := range f.FeatureTypes {
		if t != nil && types[t.ID] {
			out.FeatureTypes = append(out.FeatureTypes, t)
		}
	}
	return out
}

func expandAll(f Forest) Forest {
	out := f
	out.Nodes = make([]*Node, len(f.Nodes))
	for i, n := range f.Nodes {
		c := *n
		c.Expanded = true
		out.Nodes[i] = &c
	}
	out.Services = make([]*Service, len(f.Services))
	for i, s := range f.Services {
		c := *s
		c.Expanded = true
		out.Services[i] = &c
	}
	out.Layers = make([]*Layer, len(f.Layers))
	for i, l := range f.Layers {
		c := *l
		c.Expanded = true
		out.Layers[i] = &c
	}
	return out
}
