package datasource

import (
	"context"
	"fmt"
	"os"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
)

// Session keeps one snapshot open between loads and saves. In lazy mode
// Load returns the folders only, plus a fetcher for the rest.
type Session struct {
	path  string
	typ   SourceType
	lazy  bool
	store *SQLiteStore

	fetcher loader.Fetcher
	limit   int
}

// OpenSession opens the snapshot at path. SQLite snapshots keep their
// connection until Close.
func OpenSession(ctx context.Context, path string, lazy bool) (*Session, error) {
	typ, err := Detect(path)
	if err != nil {
		return nil, err
	}
	s := &Session{path: path, typ: typ, lazy: lazy, limit: loader.DefaultLimit}
	if typ == SourceTypeSQLite {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		if s.store, err = OpenSQLite(ctx, path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) Path() string     { return s.path }
func (s *Session) Type() SourceType { return s.typ }
func (s *Session) Lazy() bool       { return s.lazy }

// SetLoadLimit bounds the parallel fetches Save runs to complete a lazily
// loaded forest.
func (s *Session) SetLoadLimit(n int) {
	if n > 0 {
		s.limit = n
	}
}

// Load reads the snapshot. The fetcher is nil unless the session is lazy.
func (s *Session) Load(ctx context.Context) (catalog.Forest, loader.Fetcher, error) {
	if s.store != nil {
		if s.lazy {
			f, err := s.store.LoadFolders(ctx)
			if err != nil {
				return catalog.Forest{}, nil, err
			}
			s.fetcher = s.store
			return f, s.store, nil
		}
		f, err := s.store.Load(ctx)
		return f, nil, err
	}

	f, err := LoadContext(ctx, s.path)
	if err != nil {
		return catalog.Forest{}, nil, err
	}
	if !s.lazy {
		return f, nil, nil
	}
	folders, mf := Split(f)
	s.fetcher = mf
	return folders, mf, nil
}

// Complete fetches every folder f still has unresolved references for and
// merges the results.
func (s *Session) Complete(ctx context.Context, f catalog.Forest) (catalog.Forest, error) {
	ids := loader.Unresolved(f)
	if len(ids) == 0 || s.fetcher == nil {
		return f, nil
	}
	l := loader.New(s.fetcher)
	l.SetLimit(s.limit)
	results, err := l.LoadAll(ctx, ids)
	if err != nil {
		return f, err
	}
	for _, r := range results {
		if r.Err != nil {
			return f, fmt.Errorf("complete folder %s: %w", r.ContainerID, r.Err)
		}
		f = loader.Merge(f, r.Subtree)
	}
	debug.Log("datasource: completed %d folder(s) before save", len(ids))
	return f, nil
}

// Save writes f back to the snapshot and returns the number of entities
// written. A lazily loaded forest is completed first so nothing is lost.
func (s *Session) Save(ctx context.Context, f catalog.Forest) (int, error) {
	if s.lazy {
		var err error
		if f, err = s.Complete(ctx, f); err != nil {
			return 0, err
		}
	}
	if s.store != nil {
		return s.store.Save(ctx, f)
	}
	return SaveContext(ctx, s.path, f)
}

// Close releases the SQLite connection, if any.
func (s *Session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
