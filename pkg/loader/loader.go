// Package loader fetches the lazily loaded part of a catalog: the services,
// layers, feature sources and feature types referenced by one folder.
//
// Requests are "latest wins" per folder. Starting a load for a folder
// cancels the load already running for it, and a result that arrives after
// a newer request started is discarded with ErrStale.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
)

// ErrStale is returned by Load when a newer request for the same folder
// superseded this one.
var ErrStale = errors.New("subtree load superseded by a newer request")

// DefaultLimit bounds the fetches LoadAll runs at once.
const DefaultLimit = 8

// Subtree is the content fetched for one folder.
type Subtree struct {
	ContainerID    string
	Services       []*catalog.Service
	Layers         []*catalog.Layer
	FeatureSources []*catalog.FeatureSource
	FeatureTypes   []*catalog.FeatureType
}

// Empty reports whether nothing was fetched.
func (s Subtree) Empty() bool {
	return len(s.Services)+len(s.Layers)+len(s.FeatureSources)+len(s.FeatureTypes) == 0
}

// Fetcher fetches the subtree of a folder. Implementations must return
// promptly once ctx is cancelled.
type Fetcher interface {
	Fetch(ctx context.Context, containerID string) (Subtree, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, containerID string) (Subtree, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, containerID string) (Subtree, error) {
	return f(ctx, containerID)
}

type request struct {
	token  uint64
	cancel context.CancelFunc
}

// Loader runs subtree fetches with latest-wins semantics per folder.
type Loader struct {
	fetcher Fetcher
	limit   int

	mu       sync.Mutex
	seq      uint64
	inflight map[string]request
}

// New creates a loader fetching through f.
func New(f Fetcher) *Loader {
	return &Loader{fetcher: f, limit: DefaultLimit, inflight: make(map[string]request)}
}

// SetLimit changes how many fetches LoadAll runs concurrently.
func (l *Loader) SetLimit(n int) {
	if n > 0 {
		l.limit = n
	}
}

// Load fetches the subtree of containerID. Any load still running for the
// same folder is cancelled and will report ErrStale.
func (l *Loader) Load(ctx context.Context, containerID string) (Subtree, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	l.seq++
	token := l.seq
	if prev, ok := l.inflight[containerID]; ok {
		debug.Log("loader: %s superseded (token %d by %d)", containerID, prev.token, token)
		prev.cancel()
	}
	l.inflight[containerID] = request{token: token, cancel: cancel}
	l.mu.Unlock()

	st, err := l.fetcher.Fetch(ctx, containerID)

	l.mu.Lock()
	cur, ok := l.inflight[containerID]
	current := ok && cur.token == token
	if current {
		delete(l.inflight, containerID)
	}
	l.mu.Unlock()

	if !current {
		return Subtree{}, ErrStale
	}
	if err != nil {
		return Subtree{}, fmt.Errorf("load subtree of %s: %w", containerID, err)
	}
	st.ContainerID = containerID
	return st, nil
}

// Invalidate cancels the load running for containerID, if any. The
// cancelled call returns ErrStale.
func (l *Loader) Invalidate(containerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.inflight[containerID]; ok {
		prev.cancel()
		delete(l.inflight, containerID)
	}
}

// Pending reports whether a load for containerID is running.
func (l *Loader) Pending(containerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inflight[containerID]
	return ok
}

// Result is the outcome of loading one folder in LoadAll.
type Result struct {
	ContainerID string
	Subtree     Subtree
	Err         error
}

// LoadAll loads several folders concurrently. Individual failures are
// reported in the results. The returned error is ctx's error, if any.
func (l *Loader) LoadAll(ctx context.Context, containerIDs []string) ([]Result, error) {
	results := make([]Result, len(containerIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)
	for i, id := range containerIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{ContainerID: id, Err: err}
				return nil
			}
			st, err := l.Load(gctx, id)
			results[i] = Result{ContainerID: id, Subtree: st, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	debug.Log("loader: loaded %d folder(s)", len(containerIDs))
	return results, ctx.Err()
}

// Unresolved returns, in forest order, the folders whose items reference a
// service or feature source that is not in the forest yet.
func Unresolved(f catalog.Forest) []string {
	services := make(map[string]bool, len(f.Services))
	for _, s := range f.Services {
		if s != nil {
			services[s.ID] = true
		}
	}
	sources := make(map[string]bool, len(f.FeatureSources))
	for _, s := range f.FeatureSources {
		if s != nil {
			sources[s.ID] = true
		}
	}
	var out []string
	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		for _, it := range n.Items {
			missing := (it.Kind == catalog.KindGeoService && !services[it.ID]) ||
				(it.Kind == catalog.KindFeatureSource && !sources[it.ID])
			if missing {
				out = append(out, n.ID)
				break
			}
		}
	}
	return out
}

// Merge returns f with the subtree's entities added. Entities already
// present are replaced by id. f itself is not modified.
func Merge(f catalog.Forest, st Subtree) catalog.Forest {
	out := f
	out.Services = mergeByID(f.Services, st.Services, func(s *catalog.Service) string { return s.ID })
	out.Layers = mergeByID(f.Layers, st.Layers, func(l *catalog.Layer) string { return l.ID })
	out.FeatureSources = mergeByID(f.FeatureSources, st.FeatureSources, func(s *catalog.FeatureSource) string { return s.ID })
	out.FeatureTypes = mergeByID(f.FeatureTypes, st.FeatureTypes, func(t *catalog.FeatureType) string { return t.ID })
	return out
}

func mergeByID[T any](have, add []*T, id func(*T) string) []*T {
	if len(add) == 0 {
		return have
	}
	pos := make(map[string]int, len(have))
	out := make([]*T, len(have), len(have)+len(add))
	copy(out, have)
	for i, e := range out {
		if e != nil {
			pos[id(e)] = i
		}
	}
	for _, e := range add {
		if e == nil {
			continue
		}
		if i, ok := pos[id(e)]; ok {
			out[i] = e
			continue
		}
		pos[id(e)] = len(out)
		out = append(out, e)
	}
	return out
}
