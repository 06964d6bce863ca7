// Package catalog models the GIS catalog forest: folders holding child
// folders and references to services and feature sources, with layers and
// feature types stored in their own flat collections and joined by id.
//
// Everything here works on immutable snapshots. Move and Filter return new
// forests and leave their input untouched.
package catalog

// ItemKind is the kind of leaf entity an item reference points at.
type ItemKind string

const (
	KindGeoService    ItemKind = "GEO_SERVICE"
	KindFeatureSource ItemKind = "FEATURE_SOURCE"
)

// Valid reports whether k may appear in an items list.
func (k ItemKind) Valid() bool {
	return k == KindGeoService || k == KindFeatureSource
}

// ItemRef points from a folder at a service or feature source.
type ItemRef struct {
	ID   string   `json:"id" yaml:"id"`
	Kind ItemKind `json:"kind" yaml:"kind"`
}

// Node is a catalog folder. Children holds ids of child folders; Items holds
// references to leaf entities. Either may be nil.
type Node struct {
	ID       string    `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Root     bool      `json:"root,omitempty" yaml:"root,omitempty"`
	Children []string  `json:"children" yaml:"children"`
	Items    []ItemRef `json:"items" yaml:"items"`
	Expanded bool      `json:"expanded,omitempty" yaml:"expanded,omitempty"`
}

// Protocols for which layers are not bound to a coordinate reference system.
const (
	ProtocolWMS           = "wms"
	ProtocolWMTS          = "wmts"
	ProtocolXYZ           = "xyz"
	ProtocolTiles3D       = "tiles3d"
	ProtocolQuantizedMesh = "quantizedmesh"
)

// CRSAgnostic reports whether every layer of a service using protocol
// matches any CRS.
func CRSAgnostic(protocol string) bool {
	return protocol == ProtocolTiles3D || protocol == ProtocolQuantizedMesh
}

// Service is a map service. Its layers live in Forest.Layers and point back
// through Layer.ServiceID.
type Service struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Protocol string `json:"protocol" yaml:"protocol"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Expanded bool   `json:"expanded,omitempty" yaml:"expanded,omitempty"`
}

// Layer is a service layer. Children references sibling layers of the same
// service; ParentID is the inverse link. The root layer of a service is not
// shown itself, only its children are.
type Layer struct {
	ID        string   `json:"id" yaml:"id"`
	ServiceID string   `json:"serviceId" yaml:"serviceId"`
	Name      string   `json:"name" yaml:"name"`
	Title     string   `json:"title" yaml:"title"`
	UserTitle string   `json:"userTitle,omitempty" yaml:"userTitle,omitempty"`
	CRS       []string `json:"crs,omitempty" yaml:"crs,omitempty"`
	Root      bool     `json:"root,omitempty" yaml:"root,omitempty"`
	ParentID  string   `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Children  []string `json:"children,omitempty" yaml:"children,omitempty"`
	Expanded  bool     `json:"expanded,omitempty" yaml:"expanded,omitempty"`
}

// EffectiveTitle prefers the user-set title over the service's own.
func (l *Layer) EffectiveTitle() string {
	if l.UserTitle != "" {
		return l.UserTitle
	}
	if l.Title != "" {
		return l.Title
	}
	return l.Name
}

// FeatureSource is a source of feature types (a WFS or a JDBC database).
type FeatureSource struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Protocol string `json:"protocol" yaml:"protocol"`
}

// FeatureType belongs to a feature source.
type FeatureType struct {
	ID       string `json:"id" yaml:"id"`
	SourceID string `json:"sourceId" yaml:"sourceId"`
	Name     string `json:"name" yaml:"name"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
}

// DisplayTitle returns the title, falling back to the name.
func (f *FeatureType) DisplayTitle() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// Forest is one snapshot of all catalog collections.
type Forest struct {
	Nodes          []*Node          `json:"nodes" yaml:"nodes"`
	Services       []*Service       `json:"services" yaml:"services"`
	Layers         []*Layer         `json:"layers" yaml:"layers"`
	FeatureSources []*FeatureSource `json:"featureSources" yaml:"featureSources"`
	FeatureTypes   []*FeatureType   `json:"featureTypes" yaml:"featureTypes"`
}

// Node returns the folder with the given id.
func (f Forest) Node(id string) (*Node, int) {
	for i, n := range f.Nodes {
		if n != nil && n.ID == id {
			return n, i
		}
	}
	return nil, -1
}

// Root returns the root folder: the one flagged Root, or else the first
// folder that is nobody's child.
func (f Forest) Root() *Node {
	for _, n := range f.Nodes {
		if n != nil && n.Root {
			return n
		}
	}
	isChild := map[string]bool{}
	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	for _, n := range f.Nodes {
		if n != nil && !isChild[n.ID] {
			return n
		}
	}
	return nil
}

// Size is the number of entities across every collection.
func (f Forest) Size() int {
	return len(f.Nodes) + len(f.Services) + len(f.Layers) + len(f.FeatureSources) + len(f.FeatureTypes)
}

// index is a by-id view over a forest.
type index struct {
	nodes     map[string]*Node
	services  map[string]*Service
	layers    map[string]*Layer
	sources   map[string]*FeatureSource
	svcLayers map[string][]*Layer
	srcTypes  map[string][]*FeatureType
	parentOf  map[string]string
}

func newIndex(f Forest) *index {
	ix := &index{
		nodes:     make(map[string]*Node, len(f.Nodes)),
		services:  make(map[string]*Service, len(f.Services)),
		layers:    make(map[string]*Layer, len(f.Layers)),
		sources:   make(map[string]*FeatureSource, len(f.FeatureSources)),
		svcLayers: make(map[string][]*Layer),
		srcTypes:  make(map[string][]*FeatureType),
		parentOf:  make(map[string]string),
	}
	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		ix.nodes[n.ID] = n
		for _, c := range n.Children {
			if _, seen := ix.parentOf[c]; !seen {
				ix.parentOf[c] = n.ID
			}
		}
	}
	for _, s := range f.Services {
		if s != nil {
			ix.services[s.ID] = s
		}
	}
	for _, l := range f.Layers {
		if l != nil {
			ix.layers[l.ID] = l
			ix.svcLayers[l.ServiceID] = append(ix.svcLayers[l.ServiceID], l)
		}
	}
	for _, s := range f.FeatureSources {
		if s != nil {
			ix.sources[s.ID] = s
		}
	}
	for _, ft := range f.FeatureTypes {
		if ft != nil {
			ix.srcTypes[ft.SourceID] = append(ix.srcTypes[ft.SourceID], ft)
		}
	}
	return ix
}

// rootLayer returns the root layer of a service, if loaded.
func (ix *index) rootLayer(serviceID string) *Layer {
	for _, l := range ix.svcLayers[serviceID] {
		if l.Root {
			return l
		}
	}
	return nil
}

// descendantNodes returns every folder reachable from id through Children,
// excluding id itself. Revisits are ignored, so a malformed cyclic forest
// still terminates.
func (ix *index) descendantNodes(id string) map[string]bool {
	out := map[string]bool{}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := ix.nodes[cur]
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			if c == id || out[c] {
				continue
			}
			out[c] = true
			stack = append(stack, c)
		}
	}
	return out
}
