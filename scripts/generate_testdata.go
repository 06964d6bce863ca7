//go:build ignore

// generate_testdata.go creates catalog snapshots for benchmarking and manual
// testing of the CLI and terminal UI.
// Usage: go run scripts/generate_testdata.go
//
// Creates, in JSON and SQLite form:
//
//	testdata/benchmark/small.{json,db}   (50 folders)
//	testdata/benchmark/medium.{json,db}  (500 folders)
//	testdata/benchmark/large.{json,db}   (5000 folders)
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tailormap/tailormap-viewer-sub000/internal/datasource"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/testutil"
)

type datasetSpec struct {
	name     string
	folders  int
	services int
	sources  int
}

var datasets = []datasetSpec{
	{"small", 50, 100, 40},
	{"medium", 500, 1000, 400},
	{"large", 5000, 10000, 4000},
}

func main() {
	outputDir := filepath.Join("testdata", "benchmark")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	for _, ds := range datasets {
		fmt.Printf("Generating %s catalog (%d folders)...\n", ds.name, ds.folders)

		gen := testutil.New(testutil.GeneratorConfig{
			Seed:        int64(ds.folders),
			IDPrefix:    "bench",
			LayerDepth:  2,
			LayerFanout: 3,
			CRSMix:      []string{"EPSG:28992", "EPSG:3857", "EPSG:4326"},
		})
		f := gen.Random(ds.folders, ds.services, ds.sources)
		if err := catalog.Validate(f); err != nil {
			fmt.Fprintf(os.Stderr, "Generated %s catalog is invalid: %v\n", ds.name, err)
			os.Exit(1)
		}

		for _, ext := range []string{".json", ".db"} {
			path := filepath.Join(outputDir, ds.name+ext)
			_ = os.Remove(path)
			n, err := datasource.SaveContext(ctx, path, f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("  Written %s (%d entities)\n", path, n)
		}
	}

	fmt.Println("\nDone! Catalogs created in", outputDir)
}
