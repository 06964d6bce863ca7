package datasource_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Tailormap/tailormap-viewer-sub000/internal/datasource"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/testutil"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want datasource.SourceType
	}{
		{"catalog.json", datasource.SourceTypeJSON},
		{"CATALOG.JSON", datasource.SourceTypeJSON},
		{"catalog.yaml", datasource.SourceTypeYAML},
		{"/srv/catalog.yml", datasource.SourceTypeYAML},
		{"catalog.db", datasource.SourceTypeSQLite},
		{"catalog.sqlite", datasource.SourceTypeSQLite},
	}
	for _, tt := range tests {
		got, err := datasource.Detect(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("Detect(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
		}
	}

	for _, bad := range []string{"catalog.xml", "catalog", ""} {
		if _, err := datasource.Detect(bad); !errors.Is(err, datasource.ErrUnknownFormat) {
			t.Errorf("Detect(%q) err = %v, want ErrUnknownFormat", bad, err)
		}
	}
}

func assertSameContent(t *testing.T, want, got catalog.Forest) {
	t.Helper()
	if d := datasource.Diff(want, got); d.HasChanges() {
		t.Errorf("snapshots differ:\n%s", d.Summary())
	}
	if got.Size() != want.Size() {
		t.Errorf("entity count = %d, want %d", got.Size(), want.Size())
	}
}

func TestFileRoundTrip(t *testing.T) {
	for _, name := range []string{"catalog.json", "catalog.yaml", "catalog.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := testutil.Sample()

			n, err := datasource.SaveContext(context.Background(), path, want)
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if n != want.Size() {
				t.Errorf("written = %d, want %d", n, want.Size())
			}

			got, err := datasource.Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSameContent(t, want, got)
			testutil.AssertItems(t, got, "1_1", "s1", "s2", "s3")
		})
	}
}

func TestJSONMatchesEncoding(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteForestFile(t, dir, "catalog.json", testutil.Sample())
	got, err := datasource.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertJSONEqual(t, testutil.Sample(), got)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := datasource.Save(filepath.Join(dir, "catalog.json"), testutil.Sample()); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the snapshot", len(entries))
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := datasource.Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing json loaded")
	}
	if _, err := datasource.Load(filepath.Join(dir, "missing.db")); err == nil {
		t.Error("missing database loaded")
	}
	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte("{nodes:"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := datasource.Load(broken); err == nil {
		t.Error("broken json loaded")
	}
	if _, err := datasource.Load(filepath.Join(dir, "catalog.txt")); !errors.Is(err, datasource.ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}

func TestSQLiteSaveWritesOnlyChangedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	f := testutil.Sample()

	n, err := datasource.SaveContext(ctx, path, f)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if n != f.Size() {
		t.Errorf("first save wrote %d rows, want %d", n, f.Size())
	}

	store, err := datasource.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameContent(t, f, loaded)
	if root := loaded.Root(); root == nil || root.ID != "root" {
		t.Errorf("root = %v, want root", root)
	}

	moved, changed := catalog.Move(loaded, catalog.MoveIntent{
		NodeID: "1", Node: catalog.Container(),
		FromParent: "root", ToParent: "2",
		Position:  catalog.Inside,
		SiblingID: "2", Sibling: catalog.Container(),
	})
	if !changed {
		t.Fatal("move rejected")
	}
	n, err = store.Save(ctx, moved)
	if err != nil {
		t.Fatalf("save after move: %v", err)
	}
	if n != 2 {
		t.Errorf("save after move wrote %d rows, want 2 (root and 2)", n)
	}

	n, err = store.Save(ctx, moved)
	if err != nil || n != 0 {
		t.Errorf("unchanged save wrote %d rows, err %v", n, err)
	}

	reloaded, err := datasource.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertChildren(t, reloaded, "root", "2", "3")
	testutil.AssertChildren(t, reloaded, "2", "1")
}

func TestSQLiteSaveDeletesRemovedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.sqlite")
	f := testutil.Sample()
	if err := datasource.Save(path, f); err != nil {
		t.Fatal(err)
	}

	trimmed := f
	trimmed.FeatureTypes = nil
	n, err := datasource.SaveContext(ctx, path, trimmed)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("wrote %d rows, want 1 deletion", n)
	}
	got, err := datasource.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.FeatureTypes) != 0 {
		t.Errorf("feature types = %d, want 0", len(got.FeatureTypes))
	}
}

func TestSQLiteFetch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	if err := datasource.Save(path, testutil.Sample()); err != nil {
		t.Fatal(err)
	}
	store, err := datasource.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	folders, err := store.LoadFolders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders.Nodes) != 6 || len(folders.Services) != 0 {
		t.Fatalf("LoadFolders = %d folders, %d services", len(folders.Nodes), len(folders.Services))
	}
	if got := loader.Unresolved(folders); !slices.Equal(got, []string{"1_1", "1_2"}) {
		t.Errorf("Unresolved = %v", got)
	}

	st, err := store.Fetch(ctx, "1_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Services) != 3 || len(st.Layers) != 6 || len(st.FeatureSources) != 0 {
		t.Errorf("subtree of 1_1 = %d services, %d layers, %d sources",
			len(st.Services), len(st.Layers), len(st.FeatureSources))
	}

	st, err = store.Fetch(ctx, "1_2")
	if err != nil {
		t.Fatal(err)
	}
	if len(st.FeatureSources) != 3 || len(st.FeatureTypes) != 1 {
		t.Errorf("subtree of 1_2 = %d sources, %d types", len(st.FeatureSources), len(st.FeatureTypes))
	}

	if _, err := store.Fetch(ctx, "nope"); err == nil {
		t.Error("fetch of unknown folder succeeded")
	}
}

func TestLazyLoadThroughLoader(t *testing.T) {
	full := testutil.Sample()
	folders, fetcher := datasource.Split(full)
	if len(folders.Services) != 0 {
		t.Fatal("Split kept services")
	}

	l := loader.New(fetcher)
	results, err := l.LoadAll(context.Background(), loader.Unresolved(folders))
	if err != nil {
		t.Fatal(err)
	}
	merged := folders
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("%s: %v", r.ContainerID, r.Err)
		}
		merged = loader.Merge(merged, r.Subtree)
	}
	if got := loader.Unresolved(merged); len(got) != 0 {
		t.Errorf("still unresolved: %v", got)
	}
	if merged.Size() != full.Size() {
		t.Errorf("merged size = %d, want %d", merged.Size(), full.Size())
	}
}

func TestMemoryFetcherCancelled(t *testing.T) {
	_, fetcher := datasource.Split(testutil.Sample())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fetcher.Fetch(ctx, "1_1"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDiff(t *testing.T) {
	f := testutil.Sample()
	if d := datasource.Diff(f, f); d.HasChanges() {
		t.Errorf("self diff has changes: %+v", d)
	}

	moved, _ := catalog.Move(f, catalog.MoveIntent{
		NodeID: "3", Node: catalog.Container(),
		FromParent: "root", ToParent: "1",
		Position:  catalog.Inside,
		SiblingID: "1", Sibling: catalog.Container(),
	})
	moved.Nodes = append(moved.Nodes, &catalog.Node{ID: "4", Title: "Folder 4"})
	moved.Services = moved.Services[:2]

	d := datasource.Diff(f, moved)
	if !slices.Equal(d.Changed, []string{"root", "1"}) {
		t.Errorf("Changed = %v, want [root 1]", d.Changed)
	}
	if !slices.Equal(d.Added, []string{"4"}) || len(d.Removed) != 0 {
		t.Errorf("Added = %v, Removed = %v", d.Added, d.Removed)
	}
	if d.Entities != 1 {
		t.Errorf("Entities = %d, want 1", d.Entities)
	}

	back := datasource.Diff(moved, f)
	if !slices.Equal(back.Removed, []string{"4"}) {
		t.Errorf("reverse Removed = %v", back.Removed)
	}
}

func TestDiffIgnoresCopies(t *testing.T) {
	f := testutil.Sample()
	copied := testutil.Sample()
	if d := datasource.Diff(f, copied); d.HasChanges() {
		t.Errorf("equal copies differ: %s", d.Summary())
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)
	for _, name := range []string{"a.yaml", "b.json", ".hidden.json", "notes.txt", "c.json~"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}
	fresh := filepath.Join(dir, "fresh.yml")
	if err := os.WriteFile(fresh, []byte("nodes: []"), 0o644); err != nil {
		t.Fatal(err)
	}

	sources, err := datasource.Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range sources {
		names = append(names, filepath.Base(s.Path))
	}
	// Freshest first, then json before yaml at equal time.
	if want := []string{"fresh.yml", "b.json", "a.yaml"}; !slices.Equal(names, want) {
		t.Errorf("Discover = %v, want %v", names, want)
	}
}

func TestSelectBest(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := testutil.WriteForestFile(t, dir, "good.json", testutil.Sample())

	sources := []datasource.DataSource{{Type: datasource.SourceTypeJSON, Path: broken}, {Type: datasource.SourceTypeJSON, Path: good}}
	best, err := datasource.SelectBest(sources)
	if err != nil {
		t.Fatal(err)
	}
	if best.Path != good || !best.Valid || best.EntityCount != testutil.Sample().Size() {
		t.Errorf("best = %s", best)
	}
	if sources[0].Valid || sources[0].ValidationError == "" {
		t.Error("broken source not marked invalid")
	}

	if _, err := datasource.SelectBest(sources[:1]); err == nil {
		t.Error("SelectBest with only a broken source succeeded")
	}
}

func TestInspect(t *testing.T) {
	path := testutil.WriteForestFile(t, t.TempDir(), "catalog.json", testutil.Sample())
	s, err := datasource.Inspect(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != datasource.SourceTypeJSON || s.Size == 0 {
		t.Errorf("Inspect = %+v", s)
	}
}
