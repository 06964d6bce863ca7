package datasource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
)

var validate = catalog.Validate

// Load reads the snapshot at path. The format follows the extension.
func Load(path string) (catalog.Forest, error) {
	return LoadContext(context.Background(), path)
}

// LoadContext is Load with a context for the SQLite queries.
func LoadContext(ctx context.Context, path string) (catalog.Forest, error) {
	typ, err := Detect(path)
	if err != nil {
		return catalog.Forest{}, err
	}
	defer debug.LogEnterExit("datasource: load " + path)()

	switch typ {
	case SourceTypeSQLite:
		if _, err := os.Stat(path); err != nil {
			return catalog.Forest{}, fmt.Errorf("open snapshot: %w", err)
		}
		store, err := OpenSQLite(ctx, path)
		if err != nil {
			return catalog.Forest{}, err
		}
		defer store.Close()
		return store.Load(ctx)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return catalog.Forest{}, fmt.Errorf("read snapshot: %w", err)
		}
		return Decode(typ, data)
	}
}

// Decode parses a JSON or YAML snapshot.
func Decode(typ SourceType, data []byte) (catalog.Forest, error) {
	var f catalog.Forest
	switch typ {
	case SourceTypeJSON:
		if err := json.Unmarshal(data, &f); err != nil {
			return f, fmt.Errorf("parse json snapshot: %w", err)
		}
	case SourceTypeYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return f, fmt.Errorf("parse yaml snapshot: %w", err)
		}
	default:
		return f, fmt.Errorf("%w: cannot decode %s in memory", ErrUnknownFormat, typ)
	}
	return f, nil
}

// Encode renders a JSON or YAML snapshot.
func Encode(typ SourceType, f catalog.Forest) ([]byte, error) {
	switch typ {
	case SourceTypeJSON:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json snapshot: %w", err)
		}
		return append(data, '\n'), nil
	case SourceTypeYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("encode yaml snapshot: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml snapshot: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %s in memory", ErrUnknownFormat, typ)
}

// Save writes f to path. SQLite snapshots only rewrite rows that changed;
// file snapshots are replaced atomically.
func Save(path string, f catalog.Forest) error {
	_, err := SaveContext(context.Background(), path, f)
	return err
}

// SaveContext is Save with a context. It returns the number of entities
// written: every entity for file snapshots, only changed rows for SQLite.
func SaveContext(ctx context.Context, path string, f catalog.Forest) (int, error) {
	typ, err := Detect(path)
	if err != nil {
		return 0, err
	}
	if typ == SourceTypeSQLite {
		store, err := OpenSQLite(ctx, path)
		if err != nil {
			return 0, err
		}
		defer store.Close()
		return store.Save(ctx, f)
	}

	data, err := Encode(typ, f)
	if err != nil {
		return 0, err
	}
	if err := writeAtomic(path, data); err != nil {
		return 0, err
	}
	return f.Size(), nil
}

// writeAtomic replaces path through a temp file in the same directory so
// watchers never see a half-written snapshot.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
