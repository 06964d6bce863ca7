package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
)

// AssertChildren verifies a folder's child folder ids, in order.
func AssertChildren(t *testing.T, f catalog.Forest, id string, want ...string) {
	t.Helper()
	n, _ := f.Node(id)
	if n == nil {
		t.Errorf("folder %s not found", id)
		return
	}
	if !slices.Equal(n.Children, want) && !(len(n.Children) == 0 && len(want) == 0) {
		t.Errorf("%s.children = %v, want %v", id, n.Children, want)
	}
}

// AssertItems verifies a folder's item ids, in order. Kinds are not checked.
func AssertItems(t *testing.T, f catalog.Forest, id string, want ...string) {
	t.Helper()
	n, _ := f.Node(id)
	if n == nil {
		t.Errorf("folder %s not found", id)
		return
	}
	got := ItemIDs(n.Items)
	if !slices.Equal(got, want) && !(len(got) == 0 && len(want) == 0) {
		t.Errorf("%s.items = %v, want %v", id, got, want)
	}
}

// AssertValid verifies the forest passes catalog.Validate.
func AssertValid(t *testing.T, f catalog.Forest) {
	t.Helper()
	if err := catalog.Validate(f); err != nil {
		t.Errorf("forest invalid: %v", err)
	}
}

// AssertSameFolders verifies two forests share every folder pointer, which
// is how an unchanged result of Move looks.
func AssertSameFolders(t *testing.T, want, got catalog.Forest) {
	t.Helper()
	if len(want.Nodes) != len(got.Nodes) {
		t.Fatalf("folder count = %d, want %d", len(got.Nodes), len(want.Nodes))
	}
	for i := range want.Nodes {
		if want.Nodes[i] != got.Nodes[i] {
			t.Errorf("folder %d (%s) was replaced", i, want.Nodes[i].ID)
		}
	}
}

// AssertJSONEqual compares two values after JSON round-tripping.
func AssertJSONEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// Golden file helpers

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	path := g.Path()
	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}

	if string(expected) != actual {
		expectedLines := strings.Split(string(expected), "\n")
		actualLines := strings.Split(actual, "\n")
		for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
			var expLine, actLine string
			if i < len(expectedLines) {
				expLine = expectedLines[i]
			}
			if i < len(actualLines) {
				actLine = actualLines[i]
			}
			if expLine != actLine {
				g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
				return
			}
		}
		g.t.Errorf("golden file mismatch (length differs)")
	}
}

// WriteForestFile writes f as a JSON snapshot into dir and returns its path.
func WriteForestFile(t *testing.T, dir, name string, f catalog.Forest) string {
	t.Helper()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal forest: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write forest file: %v", err)
	}
	return path
}

// ItemIDs returns the ids of item references.
func ItemIDs(items []catalog.ItemRef) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// FolderIDs returns the folder ids of a forest in collection order.
func FolderIDs(f catalog.Forest) []string {
	ids := make([]string, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
