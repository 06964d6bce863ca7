package datasource

import (
	"context"
	"fmt"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
)

// MemoryFetcher serves folder subtrees out of a fully loaded snapshot. It
// lets file snapshots use the same lazy loading path as SQLite ones.
type MemoryFetcher struct {
	full catalog.Forest
}

// Split returns the folders of f alone, plus a fetcher for the rest.
func Split(f catalog.Forest) (catalog.Forest, *MemoryFetcher) {
	return catalog.Forest{Nodes: f.Nodes}, &MemoryFetcher{full: f}
}

// Fetch implements loader.Fetcher.
func (m *MemoryFetcher) Fetch(ctx context.Context, containerID string) (loader.Subtree, error) {
	var st loader.Subtree
	if err := ctx.Err(); err != nil {
		return st, err
	}
	n, _ := m.full.Node(containerID)
	if n == nil {
		return st, fmt.Errorf("datasource: folder %s not found", containerID)
	}
	for _, it := range n.Items {
		switch it.Kind {
		case catalog.KindGeoService:
			for _, s := range m.full.Services {
				if s != nil && s.ID == it.ID {
					st.Services = append(st.Services, s)
				}
			}
			for _, l := range m.full.Layers {
				if l != nil && l.ServiceID == it.ID {
					st.Layers = append(st.Layers, l)
				}
			}
		case catalog.KindFeatureSource:
			for _, s := range m.full.FeatureSources {
				if s != nil && s.ID == it.ID {
					st.FeatureSources = append(st.FeatureSources, s)
				}
			}
			for _, t := range m.full.FeatureTypes {
				if t != nil && t.SourceID == it.ID {
					st.FeatureTypes = append(st.FeatureTypes, t)
				}
			}
		}
	}
	return st, nil
}

var (
	_ loader.Fetcher = (*MemoryFetcher)(nil)
	_ loader.Fetcher = (*SQLiteStore)(nil)
)
