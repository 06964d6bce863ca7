// Package testutil provides catalog forest fixtures for tests.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
)

// GeneratorConfig controls forest generation.
type GeneratorConfig struct {
	Seed        int64    // Random seed for determinism (0 = fixed default)
	IDPrefix    string   // Prefix for folder ids (default: "f")
	LayerDepth  int      // Nesting depth of layers below each service root layer
	LayerFanout int      // Layers per parent layer
	CRSMix      []string // CRS codes handed out to layers (nil = EPSG:28992 only)
	Titles      []string // Words titles are built from
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42, // Deterministic
		IDPrefix:    "f",
		LayerDepth:  1,
		LayerFanout: 2,
		CRSMix:      []string{"EPSG:28992", "EPSG:3857"},
		Titles:      []string{"Background", "Roads", "Water", "Parcels", "Aerial", "Buildings", "Trees"},
	}
}

// Generator creates catalog forests with various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "f"
	}
	if cfg.LayerFanout < 1 {
		cfg.LayerFanout = 1
	}
	if len(cfg.CRSMix) == 0 {
		cfg.CRSMix = []string{"EPSG:28992"}
	}
	if len(cfg.Titles) == 0 {
		cfg.Titles = DefaultConfig().Titles
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// ============================================================================
// Folder shapes
// ============================================================================

// Chain creates a linear chain of folders: f0 -> f1 -> ... -> f{size-1}.
// Every folder holds one service.
func (g *Generator) Chain(size int) catalog.Forest {
	var f catalog.Forest
	for i := 0; i < size; i++ {
		n := g.folder(i)
		if i == 0 {
			n.Root = true
		}
		if i+1 < size {
			n.Children = []string{g.folderID(i + 1)}
		}
		f.Nodes = append(f.Nodes, n)
		g.addService(&f, n, fmt.Sprintf("s%d", i))
	}
	return f
}

// Tree creates a folder tree with given depth and branching factor. Leaf
// folders hold one service and one feature source each.
func (g *Generator) Tree(depth, breadth int) catalog.Forest {
	if depth < 1 {
		depth = 1
	}
	if breadth < 1 {
		breadth = 1
	}

	var f catalog.Forest
	root := g.folder(0)
	root.Root = true
	f.Nodes = append(f.Nodes, root)

	next := 1
	current := []*catalog.Node{root}
	for d := 0; d < depth; d++ {
		var level []*catalog.Node
		for _, parent := range current {
			for b := 0; b < breadth; b++ {
				child := g.folder(next)
				next++
				parent.Children = append(parent.Children, child.ID)
				f.Nodes = append(f.Nodes, child)
				level = append(level, child)
			}
		}
		current = level
	}
	for i, leaf := range current {
		g.addService(&f, leaf, fmt.Sprintf("s%d", i))
		g.addFeatureSource(&f, leaf, fmt.Sprintf("fs%d", i))
	}
	return f
}

// Random creates a folder tree of the given size where every folder after
// the root hangs under a random earlier folder, and services and feature
// sources are spread over random folders.
func (g *Generator) Random(folders, services, sources int) catalog.Forest {
	if folders < 1 {
		folders = 1
	}
	var f catalog.Forest
	for i := 0; i < folders; i++ {
		n := g.folder(i)
		if i == 0 {
			n.Root = true
		} else {
			parent := f.Nodes[g.rng.Intn(i)]
			parent.Children = append(parent.Children, n.ID)
		}
		f.Nodes = append(f.Nodes, n)
	}
	for i := 0; i < services; i++ {
		g.addService(&f, f.Nodes[g.rng.Intn(folders)], fmt.Sprintf("s%d", i))
	}
	for i := 0; i < sources; i++ {
		g.addFeatureSource(&f, f.Nodes[g.rng.Intn(folders)], fmt.Sprintf("fs%d", i))
	}
	return f
}

func (g *Generator) folderID(i int) string {
	return fmt.Sprintf("%s%d", g.cfg.IDPrefix, i)
}

func (g *Generator) folder(i int) *catalog.Node {
	return &catalog.Node{ID: g.folderID(i), Title: "Folder " + g.title()}
}

func (g *Generator) title() string {
	return g.cfg.Titles[g.rng.Intn(len(g.cfg.Titles))]
}

func (g *Generator) addService(f *catalog.Forest, parent *catalog.Node, id string) {
	f.Services = append(f.Services, &catalog.Service{
		ID:       id,
		Title:    "Service " + g.title(),
		Protocol: catalog.ProtocolWMS,
	})
	parent.Items = append(parent.Items, catalog.ItemRef{ID: id, Kind: catalog.KindGeoService})

	root := &catalog.Layer{ID: id + "_root", ServiceID: id, Name: "root", Root: true}
	f.Layers = append(f.Layers, root)
	g.addLayers(f, root, id, g.cfg.LayerDepth)
}

func (g *Generator) addLayers(f *catalog.Forest, parent *catalog.Layer, serviceID string, depth int) {
	if depth <= 0 {
		return
	}
	for i := 0; i < g.cfg.LayerFanout; i++ {
		l := &catalog.Layer{
			ID:        fmt.Sprintf("%s_%d", parent.ID, i),
			ServiceID: serviceID,
			Name:      fmt.Sprintf("layer%d", i),
			Title:     g.title(),
			ParentID:  parent.ID,
		}
		if g.rng.Intn(2) == 0 {
			l.CRS = []string{g.cfg.CRSMix[g.rng.Intn(len(g.cfg.CRSMix))]}
		}
		parent.Children = append(parent.Children, l.ID)
		f.Layers = append(f.Layers, l)
		g.addLayers(f, l, serviceID, depth-1)
	}
}

func (g *Generator) addFeatureSource(f *catalog.Forest, parent *catalog.Node, id string) {
	f.FeatureSources = append(f.FeatureSources, &catalog.FeatureSource{
		ID:       id,
		Title:    "Source " + g.title(),
		Protocol: "wfs",
	})
	parent.Items = append(parent.Items, catalog.ItemRef{ID: id, Kind: catalog.KindFeatureSource})
	f.FeatureTypes = append(f.FeatureTypes, &catalog.FeatureType{
		ID:       id + "_type",
		SourceID: id,
		Name:     "type",
		Title:    g.title(),
	})
}

// ============================================================================
// Quick fixtures
// ============================================================================

// Sample returns the small hand-written catalog most tests start from:
//
//	root -> [1, 2, 3]
//	1    -> [1_1, 1_2]
//	1_1.items = [s1, s2, s3] (services)
//	1_2.items = [f1, f2, f3] (feature sources)
//
// s1 is "Geo Service Background" with layers declaring EPSG:28992 on the
// root layer only. s2 offers EPSG:3857. s3 is a 3D tiles service whose
// layers declare no CRS. f1 has the only feature type.
func Sample() catalog.Forest {
	return catalog.Forest{
		Nodes: []*catalog.Node{
			{ID: "root", Title: "Root", Root: true, Children: []string{"1", "2", "3"}},
			{ID: "1", Title: "Folder 1", Children: []string{"1_1", "1_2"}},
			{ID: "1_1", Title: "Folder 1_1", Items: Refs(catalog.KindGeoService, "s1", "s2", "s3")},
			{ID: "1_2", Title: "Folder 1_2", Items: Refs(catalog.KindFeatureSource, "f1", "f2", "f3")},
			{ID: "2", Title: "Folder 2"},
			{ID: "3", Title: "Folder 3"},
		},
		Services: []*catalog.Service{
			{ID: "s1", Title: "Geo Service Background", Protocol: catalog.ProtocolWMS},
			{ID: "s2", Title: "Geo Service Roads", Protocol: catalog.ProtocolWMTS},
			{ID: "s3", Title: "Geo Service Buildings", Protocol: catalog.ProtocolTiles3D},
		},
		Layers: []*catalog.Layer{
			{ID: "s1_root", ServiceID: "s1", Name: "root", Root: true, CRS: []string{"EPSG:28992"}, Children: []string{"s1_a"}},
			{ID: "s1_a", ServiceID: "s1", Name: "aerial", Title: "Aerial", ParentID: "s1_root"},
			{ID: "s2_root", ServiceID: "s2", Name: "root", Root: true, CRS: []string{"EPSG:3857"}, Children: []string{"s2_a"}},
			{ID: "s2_a", ServiceID: "s2", Name: "roads", Title: "Road network", UserTitle: "Streets", ParentID: "s2_root"},
			{ID: "s3_root", ServiceID: "s3", Name: "root", Root: true, Children: []string{"s3_a"}},
			{ID: "s3_a", ServiceID: "s3", Name: "buildings", Title: "Buildings 3D", ParentID: "s3_root"},
		},
		FeatureSources: []*catalog.FeatureSource{
			{ID: "f1", Title: "Source 1", Protocol: "wfs"},
			{ID: "f2", Title: "Source 2", Protocol: "jdbc"},
			{ID: "f3", Title: "Source 3", Protocol: "wfs"},
		},
		FeatureTypes: []*catalog.FeatureType{
			{ID: "ft1", SourceID: "f1", Name: "parcels", Title: "Parcels"},
		},
	}
}

// Refs builds item references of one kind.
func Refs(kind catalog.ItemKind, ids ...string) []catalog.ItemRef {
	out := make([]catalog.ItemRef, len(ids))
	for i, id := range ids {
		out[i] = catalog.ItemRef{ID: id, Kind: kind}
	}
	return out
}

// QuickChain creates a chain forest with default config.
func QuickChain(size int) catalog.Forest {
	return NewDefault().Chain(size)
}

// QuickTree creates a tree forest with default config.
func QuickTree(depth, breadth int) catalog.Forest {
	return NewDefault().Tree(depth, breadth)
}

// QuickRandom creates a random forest with default config.
func QuickRandom(folders, services, sources int) catalog.Forest {
	return NewDefault().Random(folders, services, sources)
}

// Empty returns an empty forest.
func Empty() catalog.Forest {
	return catalog.Forest{}
}
