package catalog

import (
	"strings"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/flattree"
)

// EntityKind names the collection a tree node was built from.
type EntityKind string

const (
	EntityNode          EntityKind = "node"
	EntityService       EntityKind = "service"
	EntityLayer         EntityKind = "layer"
	EntityFeatureSource EntityKind = "featuresource"
	EntityFeatureType   EntityKind = "featuretype"
	EntityLoading       EntityKind = "loading"
)

// Meta is attached to every built tree node.
type Meta struct {
	Kind EntityKind
	// ID is the entity id inside its own collection, without prefix.
	ID string
	// ServiceID is set for layers.
	ServiceID string
}

// TreeNode is a catalog tree node ready for flattening.
type TreeNode = flattree.TreeNode[Meta]

// TreeID prefixes an entity id with its kind so ids from different
// collections never collide in one tree.
func TreeID(kind EntityKind, id string) string {
	return string(kind) + ":" + id
}

// ParseTreeID splits a tree id into kind and entity id.
func ParseTreeID(treeID string) (EntityKind, string, bool) {
	kind, id, ok := strings.Cut(treeID, ":")
	if !ok {
		return "", "", false
	}
	switch EntityKind(kind) {
	case EntityNode, EntityService, EntityLayer, EntityFeatureSource, EntityFeatureType, EntityLoading:
		return EntityKind(kind), id, true
	}
	return "", "", false
}

// SubjectOf maps a tree id to the move subject it stands for. Only folders,
// services and feature sources can be moved.
func SubjectOf(treeID string) (string, Subject, bool) {
	kind, id, ok := ParseTreeID(treeID)
	if !ok {
		return "", Subject{}, false
	}
	switch kind {
	case EntityNode:
		return id, Container(), true
	case EntityService:
		return id, Item(KindGeoService), true
	case EntityFeatureSource:
		return id, Item(KindFeatureSource), true
	}
	return "", Subject{}, false
}

// BuildOptions control Build.
type BuildOptions struct {
	// ShowRoot includes the root folder itself; otherwise its contents
	// form the top level.
	ShowRoot bool
	// Checkable gives layers a checkbox, unchecked.
	Checkable bool
	// Loaded reports whether a folder's items have been fetched. Unresolved
	// items of a folder that is not loaded yet become one loading
	// placeholder; in a loaded folder they are dangling and skipped. Nil
	// means every folder is loaded.
	Loaded func(folderID string) bool
}

// Build joins the collections into a nested tree. Folders list child folders
// first, then items in list order. References that cannot be resolved are
// skipped, except that a folder whose items are still being fetched gets one
// loading placeholder leaf.
func Build(f Forest, opts BuildOptions) []*TreeNode {
	ix := newIndex(f)
	root := f.Root()
	if root == nil {
		return nil
	}
	b := &builder{ix: ix, opts: opts, visited: map[string]bool{}}
	rootNode := b.folder(root)
	if opts.ShowRoot {
		return []*TreeNode{rootNode}
	}
	return rootNode.Children
}

type builder struct {
	ix      *index
	opts    BuildOptions
	visited map[string]bool
}

func (b *builder) folder(n *Node) *TreeNode {
	b.visited[n.ID] = true
	tn := &TreeNode{
		ID:         TreeID(EntityNode, n.ID),
		Label:      n.Title,
		Type:       string(EntityNode),
		Expanded:   n.Expanded,
		Expandable: true,
		Metadata:   Meta{Kind: EntityNode, ID: n.ID},
	}
	for _, cid := range n.Children {
		child := b.ix.nodes[cid]
		if child == nil || b.visited[cid] {
			continue
		}
		tn.Children = append(tn.Children, b.folder(child))
	}
	loading := false
	for _, it := range n.Items {
		var item *TreeNode
		switch it.Kind {
		case KindGeoService:
			if s := b.ix.services[it.ID]; s != nil {
				item = b.service(s)
			}
		case KindFeatureSource:
			if s := b.ix.sources[it.ID]; s != nil {
				item = b.featureSource(s)
			}
		default:
			continue
		}
		if item == nil {
			loading = true
			continue
		}
		tn.Children = append(tn.Children, item)
	}
	if loading && b.opts.Loaded != nil && !b.opts.Loaded(n.ID) {
		tn.Children = append(tn.Children, &TreeNode{
			ID:          TreeID(EntityLoading, n.ID),
			Label:       "Loading...",
			Type:        string(EntityLoading),
			Placeholder: true,
			Metadata:    Meta{Kind: EntityLoading, ID: n.ID},
		})
	}
	return tn
}

func (b *builder) service(s *Service) *TreeNode {
	tn := &TreeNode{
		ID:         TreeID(EntityService, s.ID),
		Label:      s.Title,
		Type:       string(EntityService),
		Expanded:   s.Expanded,
		Expandable: true,
		Metadata:   Meta{Kind: EntityService, ID: s.ID},
	}
	if root := b.ix.rootLayer(s.ID); root != nil {
		tn.Children = b.layerChildren(root, map[string]bool{root.ID: true})
	}
	return tn
}

func (b *builder) layerChildren(l *Layer, seen map[string]bool) []*TreeNode {
	var out []*TreeNode
	for _, cid := range l.Children {
		child := b.ix.layers[cid]
		if child == nil || child.ServiceID != l.ServiceID || seen[cid] {
			continue
		}
		seen[cid] = true
		tn := &TreeNode{
			ID:       TreeID(EntityLayer, child.ID),
			Label:    child.EffectiveTitle(),
			Type:     string(EntityLayer),
			Expanded: child.Expanded,
			Metadata: Meta{Kind: EntityLayer, ID: child.ID, ServiceID: child.ServiceID},
			Children: b.layerChildren(child, seen),
		}
		if b.opts.Checkable {
			checked := false
			tn.Checked = &checked
		}
		out = append(out, tn)
	}
	return out
}

func (b *builder) featureSource(s *FeatureSource) *TreeNode {
	tn := &TreeNode{
		ID:         TreeID(EntityFeatureSource, s.ID),
		Label:      s.Title,
		Type:       string(EntityFeatureSource),
		Expandable: true,
		Metadata:   Meta{Kind: EntityFeatureSource, ID: s.ID},
	}
	for _, ft := range b.ix.srcTypes[s.ID] {
		tn.Children = append(tn.Children, &TreeNode{
			ID:       TreeID(EntityFeatureType, ft.ID),
			Label:    ft.DisplayTitle(),
			Type:     string(EntityFeatureType),
			Metadata: Meta{Kind: EntityFeatureType, ID: ft.ID},
		})
	}
	return tn
}
