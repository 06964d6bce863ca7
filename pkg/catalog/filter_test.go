package catalog_test

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/testutil"
)

func ids[T any](items []*T, id func(*T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func serviceIDs(f catalog.Forest) []string {
	return ids(f.Services, func(s *catalog.Service) string { return s.ID })
}

func layerIDs(f catalog.Forest) []string {
	return ids(f.Layers, func(l *catalog.Layer) string { return l.ID })
}

func TestFilterTextKeepsAncestorChain(t *testing.T) {
	out := catalog.Filter(testutil.Sample(), catalog.FilterOptions{Term: "Background"})

	if got := testutil.FolderIDs(out); !slices.Equal(got, []string{"root", "1", "1_1"}) {
		t.Fatalf("folders = %v, want [root 1 1_1]", got)
	}
	testutil.AssertChildren(t, out, "root", "1")
	testutil.AssertChildren(t, out, "1", "1_1")
	testutil.AssertItems(t, out, "1_1", "s1")
	if got := serviceIDs(out); !slices.Equal(got, []string{"s1"}) {
		t.Errorf("services = %v, want [s1]", got)
	}
	if len(out.FeatureSources) != 0 || len(out.FeatureTypes) != 0 {
		t.Errorf("feature sources kept: %d sources, %d types", len(out.FeatureSources), len(out.FeatureTypes))
	}
}

func TestFilterText(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		folders  []string
		services []string
		layers   []string
		sources  []string
	}{
		{"case insensitive", "bACKground", []string{"root", "1", "1_1"}, []string{"s1"}, nil, nil},
		{"all sub-terms must match", "geo background", []string{"root", "1", "1_1"}, []string{"s1"}, nil, nil},
		{"one sub-term missing", "geo nowhere", nil, nil, nil, nil},
		{"user title wins", "streets", []string{"root", "1", "1_1"}, []string{"s2"}, []string{"s2_root", "s2_a"}, nil},
		{"raw title hidden by user title", "network", nil, nil, nil, nil},
		{"feature type", "parcels", []string{"root", "1", "1_2"}, nil, nil, []string{"f1"}},
		{"folder title", "folder 3", []string{"root", "3"}, nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := catalog.Filter(testutil.Sample(), catalog.FilterOptions{Term: tt.term})
			if got := testutil.FolderIDs(out); !slices.Equal(got, tt.folders) && len(got)+len(tt.folders) > 0 {
				t.Errorf("folders = %v, want %v", got, tt.folders)
			}
			if got := serviceIDs(out); !slices.Equal(got, tt.services) && len(got)+len(tt.services) > 0 {
				t.Errorf("services = %v, want %v", got, tt.services)
			}
			if got := layerIDs(out); !slices.Equal(got, tt.layers) && len(got)+len(tt.layers) > 0 {
				t.Errorf("layers = %v, want %v", got, tt.layers)
			}
			got := ids(out.FeatureSources, func(s *catalog.FeatureSource) string { return s.ID })
			if !slices.Equal(got, tt.sources) && len(got)+len(tt.sources) > 0 {
				t.Errorf("feature sources = %v, want %v", got, tt.sources)
			}
		})
	}
}

func TestFilterCRS(t *testing.T) {
	out := catalog.Filter(testutil.Sample(), catalog.FilterOptions{CRS: "EPSG:28992"})

	// s1_a inherits from its root layer, s3 is a 3D tiles service.
	if got := layerIDs(out); !slices.Equal(got, []string{"s1_root", "s1_a", "s3_root", "s3_a"}) {
		t.Errorf("layers = %v", got)
	}
	if got := serviceIDs(out); !slices.Equal(got, []string{"s1", "s3"}) {
		t.Errorf("services = %v, want [s1 s3]", got)
	}
	testutil.AssertItems(t, out, "1_1", "s1", "s3")
	testutil.AssertChildren(t, out, "1", "1_1")
	if len(out.FeatureSources) != 0 {
		t.Errorf("feature sources survived a CRS filter: %d", len(out.FeatureSources))
	}
}

func TestFilterCRSIsCaseInsensitive(t *testing.T) {
	out := catalog.Filter(testutil.Sample(), catalog.FilterOptions{CRS: "epsg:3857"})
	if got := serviceIDs(out); !slices.Equal(got, []string{"s2", "s3"}) {
		t.Errorf("services = %v, want [s2 s3]", got)
	}
}

func TestFilterCRSThenText(t *testing.T) {
	opts := catalog.FilterOptions{CRS: "EPSG:28992", Term: "streets"}
	if out := catalog.Filter(testutil.Sample(), opts); out.Size() != 0 {
		t.Errorf("streets only exists in EPSG:3857, got %d entities", out.Size())
	}

	opts.Term = "aerial"
	out := catalog.Filter(testutil.Sample(), opts)
	if got := layerIDs(out); !slices.Equal(got, []string{"s1_root", "s1_a"}) {
		t.Errorf("layers = %v", got)
	}
	testutil.AssertItems(t, out, "1_1", "s1")
}

func TestFilterAutoExpand(t *testing.T) {
	out := catalog.Filter(testutil.Sample(), catalog.FilterOptions{Term: "streets"})
	for _, n := range out.Nodes {
		if !n.Expanded {
			t.Errorf("folder %s not expanded", n.ID)
		}
	}
	for _, s := range out.Services {
		if !s.Expanded {
			t.Errorf("service %s not expanded", s.ID)
		}
	}
	for _, l := range out.Layers {
		if !l.Expanded {
			t.Errorf("layer %s not expanded", l.ID)
		}
	}

	out = catalog.Filter(testutil.Sample(), catalog.FilterOptions{Term: "streets", AutoExpandLimit: 2})
	for _, n := range out.Nodes {
		if n.Expanded {
			t.Errorf("folder %s expanded above the limit", n.ID)
		}
	}
}

func TestFilterInactiveReturnsInput(t *testing.T) {
	f := testutil.Sample()
	for _, opts := range []catalog.FilterOptions{{}, {Term: "   "}, {CRS: " "}} {
		out := catalog.Filter(f, opts)
		testutil.AssertSameFolders(t, f, out)
		if out.Size() != f.Size() {
			t.Errorf("%+v: size = %d, want %d", opts, out.Size(), f.Size())
		}
	}
}

func TestFilterLeavesInputUntouched(t *testing.T) {
	f := testutil.Sample()
	catalog.Filter(f, catalog.FilterOptions{Term: "Background"})
	testutil.AssertChildren(t, f, "root", "1", "2", "3")
	testutil.AssertItems(t, f, "1_1", "s1", "s2", "s3")
	for _, n := range f.Nodes {
		if n.Expanded {
			t.Errorf("input folder %s was expanded", n.ID)
		}
	}
}

// Every kept folder or layer whose parent existed before filtering still has
// that parent, listing it as a child.
func TestFilterHasNoOrphans_Property(t *testing.T) {
	words := testutil.DefaultConfig().Titles
	rapid.Check(t, func(t *rapid.T) {
		cfg := testutil.DefaultConfig()
		cfg.Seed = rapid.Int64Range(1, 1<<40).Draw(t, "seed")
		cfg.LayerDepth = rapid.IntRange(1, 3).Draw(t, "layerDepth")
		f := testutil.New(cfg).Random(rapid.IntRange(1, 20).Draw(t, "folders"), 5, 5)

		opts := catalog.FilterOptions{
			Term:            rapid.SampledFrom(append(words, "", "service", "folder")).Draw(t, "term"),
			CRS:             rapid.SampledFrom([]string{"", "EPSG:28992", "EPSG:3857"}).Draw(t, "crs"),
			AutoExpandLimit: 1000,
		}
		out := catalog.Filter(f, opts)

		parentOf := map[string]string{}
		for _, n := range f.Nodes {
			for _, c := range n.Children {
				parentOf[c] = n.ID
			}
		}
		for _, n := range out.Nodes {
			p, ok := parentOf[n.ID]
			if !ok {
				continue
			}
			pn, _ := out.Node(p)
			if pn == nil || !slices.Contains(pn.Children, n.ID) {
				t.Fatalf("folder %s kept without parent %s", n.ID, p)
			}
		}

		kept := map[string]*catalog.Layer{}
		for _, l := range out.Layers {
			kept[l.ID] = l
		}
		for _, l := range out.Layers {
			if l.ParentID == "" {
				continue
			}
			p := kept[l.ParentID]
			if p == nil || !slices.Contains(p.Children, l.ID) {
				t.Fatalf("layer %s kept without parent %s", l.ID, l.ParentID)
			}
		}
	})
}
