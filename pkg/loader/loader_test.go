package loader_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/testutil"
)

func serviceSubtree(ids ...string) loader.Subtree {
	var st loader.Subtree
	for _, id := range ids {
		st.Services = append(st.Services, &catalog.Service{ID: id, Title: "Service " + id})
	}
	return st
}

func TestLoad(t *testing.T) {
	l := loader.New(loader.FetcherFunc(func(ctx context.Context, id string) (loader.Subtree, error) {
		return serviceSubtree(id + "_svc"), nil
	}))
	st, err := l.Load(context.Background(), "1_1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.ContainerID != "1_1" || len(st.Services) != 1 || st.Services[0].ID != "1_1_svc" {
		t.Errorf("subtree = %+v", st)
	}
	if l.Pending("1_1") {
		t.Error("finished load still pending")
	}
}

func TestLoadWrapsError(t *testing.T) {
	boom := errors.New("boom")
	l := loader.New(loader.FetcherFunc(func(context.Context, string) (loader.Subtree, error) {
		return loader.Subtree{}, boom
	}))
	_, err := l.Load(context.Background(), "x")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if errors.Is(err, loader.ErrStale) {
		t.Error("a failed current load is not stale")
	}
}

// blockingFetcher holds every fetch of "slow" until release is closed and
// ignores cancellation, so the loader alone must drop the stale result.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingFetcher) Fetch(ctx context.Context, id string) (loader.Subtree, error) {
	n := b.calls.Add(1)
	if n == 1 {
		b.entered <- struct{}{}
		<-b.release
		return serviceSubtree("old"), nil
	}
	return serviceSubtree("new"), nil
}

func TestLatestWins(t *testing.T) {
	f := newBlockingFetcher()
	l := loader.New(f)

	type outcome struct {
		st  loader.Subtree
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		st, err := l.Load(context.Background(), "1_1")
		first <- outcome{st, err}
	}()
	<-f.entered
	if !l.Pending("1_1") {
		t.Fatal("first load not pending")
	}

	st, err := l.Load(context.Background(), "1_1")
	if err != nil || st.Services[0].ID != "new" {
		t.Fatalf("second load = %+v, %v", st, err)
	}

	close(f.release)
	select {
	case got := <-first:
		if !errors.Is(got.err, loader.ErrStale) {
			t.Errorf("first load err = %v, want ErrStale", got.err)
		}
		if !got.st.Empty() {
			t.Errorf("stale result leaked: %+v", got.st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first load never returned")
	}
}

func TestSupersededLoadIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	l := loader.New(loader.FetcherFunc(func(ctx context.Context, id string) (loader.Subtree, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-ctx.Done()
			close(cancelled)
			return loader.Subtree{}, ctx.Err()
		}
		return loader.Subtree{}, nil
	}))

	errc := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "a")
		errc <- err
	}()
	<-entered
	if _, err := l.Load(context.Background(), "a"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("first fetch context was not cancelled")
	}
	if err := <-errc; !errors.Is(err, loader.ErrStale) {
		t.Errorf("first load err = %v, want ErrStale", err)
	}
}

func TestInvalidate(t *testing.T) {
	entered := make(chan struct{})
	l := loader.New(loader.FetcherFunc(func(ctx context.Context, id string) (loader.Subtree, error) {
		close(entered)
		<-ctx.Done()
		return loader.Subtree{}, ctx.Err()
	}))
	errc := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "a")
		errc <- err
	}()
	<-entered
	l.Invalidate("a")
	if err := <-errc; !errors.Is(err, loader.ErrStale) {
		t.Errorf("err = %v, want ErrStale", err)
	}
	if l.Pending("a") {
		t.Error("invalidated load still pending")
	}
	l.Invalidate("never-started")
}

func TestLoadAll(t *testing.T) {
	var running, peak atomic.Int32
	var mu sync.Mutex
	seen := map[string]bool{}
	l := loader.New(loader.FetcherFunc(func(ctx context.Context, id string) (loader.Subtree, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		if id == "bad" {
			return loader.Subtree{}, errors.New("unreachable service")
		}
		return serviceSubtree(id + "_svc"), nil
	}))
	l.SetLimit(2)

	ids := []string{"a", "b", "bad", "c", "d"}
	results, err := l.LoadAll(context.Background(), ids)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(results) != len(ids) {
		t.Fatalf("results = %d, want %d", len(results), len(ids))
	}
	for i, r := range results {
		if r.ContainerID != ids[i] {
			t.Errorf("result %d is for %s, want %s", i, r.ContainerID, ids[i])
		}
		if (r.Err != nil) != (ids[i] == "bad") {
			t.Errorf("result %s err = %v", ids[i], r.Err)
		}
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if len(seen) != len(ids) {
		t.Errorf("fetched %d folders, want %d", len(seen), len(ids))
	}
}

func TestLoadAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := loader.New(loader.FetcherFunc(func(context.Context, string) (loader.Subtree, error) {
		return loader.Subtree{}, nil
	}))
	results, err := l.LoadAll(ctx, []string{"a", "b"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	for _, r := range results {
		if r.Err == nil {
			t.Errorf("%s loaded after cancel", r.ContainerID)
		}
	}
}

func TestUnresolvedAndMerge(t *testing.T) {
	full := testutil.Sample()
	lazy := full
	lazy.Services = nil
	lazy.Layers = nil

	if got := loader.Unresolved(lazy); !slices.Equal(got, []string{"1_1"}) {
		t.Fatalf("Unresolved = %v, want [1_1]", got)
	}
	if got := loader.Unresolved(full); len(got) != 0 {
		t.Fatalf("Unresolved(full) = %v", got)
	}

	merged := loader.Merge(lazy, loader.Subtree{Services: full.Services, Layers: full.Layers})
	if got := loader.Unresolved(merged); len(got) != 0 {
		t.Errorf("still unresolved after merge: %v", got)
	}
	if len(lazy.Services) != 0 {
		t.Error("Merge modified its input")
	}

	replaced := loader.Merge(merged, serviceSubtree("s2"))
	if len(replaced.Services) != 3 || replaced.Services[1].Title != "Service s2" {
		t.Errorf("services after replace = %d, s2 title %q", len(replaced.Services), replaced.Services[1].Title)
	}
	if merged.Services[1].Title != "Geo Service Roads" {
		t.Error("Merge replaced in place")
	}
}

func TestUnresolvedAndMergeSkipNilEntries(t *testing.T) {
	f := catalog.Forest{
		Nodes: []*catalog.Node{
			nil,
			{ID: "root", Root: true, Items: testutil.Refs(catalog.KindGeoService, "s1", "s2")},
		},
		Services:       []*catalog.Service{nil, {ID: "s1"}},
		FeatureSources: []*catalog.FeatureSource{nil},
	}

	if got := loader.Unresolved(f); !slices.Equal(got, []string{"root"}) {
		t.Fatalf("Unresolved = %v, want [root]", got)
	}

	merged := loader.Merge(f, loader.Subtree{Services: []*catalog.Service{nil, {ID: "s2"}}})
	if len(merged.Services) != 3 {
		t.Fatalf("services after merge = %d, want 3", len(merged.Services))
	}
	if merged.Services[2].ID != "s2" {
		t.Errorf("appended service = %q, want s2", merged.Services[2].ID)
	}
	if got := loader.Unresolved(merged); len(got) != 0 {
		t.Errorf("still unresolved after merge: %v", got)
	}
}
