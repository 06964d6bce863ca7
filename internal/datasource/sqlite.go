package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/debug"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/loader"
)

// Collection names stored in the collection column.
const (
	collNode          = "node"
	collService       = "service"
	collLayer         = "layer"
	collFeatureSource = "featuresource"
	collFeatureType   = "featuretype"
)

// schema holds one row per catalog entity. owner is the service of a layer
// or the source of a feature type; position keeps collection order.
const schema = `
CREATE TABLE IF NOT EXISTS catalog_entities (
    collection TEXT    NOT NULL,
    id         TEXT    NOT NULL,
    owner      TEXT    NOT NULL DEFAULT '',
    position   INTEGER NOT NULL,
    body       TEXT    NOT NULL,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS catalog_entities_owner ON catalog_entities (collection, owner);
`

type rowKey struct {
	collection string
	id         string
}

type savedRow struct {
	position int
	body     string
}

type entityRow struct {
	key      rowKey
	owner    string
	position int
	body     string
}

// SQLiteStore keeps a catalog snapshot in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	// saved mirrors the rows in the database after the last Load or Save,
	// so Save only writes what differs.
	saved map[rowKey]savedRow
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("datasource: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("datasource: %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("datasource: create schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Load reads the whole snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (catalog.Forest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, id, position, body FROM catalog_entities ORDER BY collection, position`)
	if err != nil {
		return catalog.Forest{}, fmt.Errorf("datasource: query entities: %w", err)
	}
	defer rows.Close()

	var f catalog.Forest
	saved := make(map[rowKey]savedRow)
	for rows.Next() {
		var key rowKey
		var r savedRow
		if err := rows.Scan(&key.collection, &key.id, &r.position, &r.body); err != nil {
			return catalog.Forest{}, fmt.Errorf("datasource: scan entity: %w", err)
		}
		if err := decodeRow(&f, key, r.body); err != nil {
			return catalog.Forest{}, err
		}
		saved[key] = r
	}
	if err := rows.Err(); err != nil {
		return catalog.Forest{}, fmt.Errorf("datasource: iterate entities: %w", err)
	}
	s.saved = saved
	return f, nil
}

// LoadFolders reads only the folders. The rest is fetched per folder with
// Fetch.
func (s *SQLiteStore) LoadFolders(ctx context.Context) (catalog.Forest, error) {
	var f catalog.Forest
	err := s.query(ctx, func(key rowKey, body string) error {
		return decodeRow(&f, key, body)
	}, `SELECT collection, id, body FROM catalog_entities WHERE collection = ? ORDER BY position`, collNode)
	return f, err
}

// Fetch loads the services, layers, feature sources and feature types
// referenced by one folder. It implements loader.Fetcher.
func (s *SQLiteStore) Fetch(ctx context.Context, containerID string) (loader.Subtree, error) {
	var st loader.Subtree
	var folder catalog.Forest
	err := s.query(ctx, func(key rowKey, body string) error {
		return decodeRow(&folder, key, body)
	}, `SELECT collection, id, body FROM catalog_entities WHERE collection = ? AND id = ?`, collNode, containerID)
	if err != nil {
		return st, err
	}
	if len(folder.Nodes) == 0 {
		return st, fmt.Errorf("datasource: folder %s not found", containerID)
	}

	var sub catalog.Forest
	collect := func(key rowKey, body string) error { return decodeRow(&sub, key, body) }
	for _, it := range folder.Nodes[0].Items {
		var entity, children string
		switch it.Kind {
		case catalog.KindGeoService:
			entity, children = collService, collLayer
		case catalog.KindFeatureSource:
			entity, children = collFeatureSource, collFeatureType
		default:
			continue
		}
		if err := s.query(ctx, collect,
			`SELECT collection, id, body FROM catalog_entities WHERE collection = ? AND id = ?`, entity, it.ID); err != nil {
			return st, err
		}
		if err := s.query(ctx, collect,
			`SELECT collection, id, body FROM catalog_entities WHERE collection = ? AND owner = ? ORDER BY position`, children, it.ID); err != nil {
			return st, err
		}
	}
	st.Services = sub.Services
	st.Layers = sub.Layers
	st.FeatureSources = sub.FeatureSources
	st.FeatureTypes = sub.FeatureTypes
	return st, nil
}

func (s *SQLiteStore) query(ctx context.Context, fn func(rowKey, string) error, q string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("datasource: query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key rowKey
		var body string
		if err := rows.Scan(&key.collection, &key.id, &body); err != nil {
			return fmt.Errorf("datasource: scan entity: %w", err)
		}
		if err := fn(key, body); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("datasource: iterate entities: %w", err)
	}
	return nil
}

// Save writes f, touching only rows whose content or position changed and
// deleting rows no longer present. It returns the number of rows written or
// deleted.
func (s *SQLiteStore) Save(ctx context.Context, f catalog.Forest) (int, error) {
	if s.saved == nil {
		if err := s.prime(ctx); err != nil {
			return 0, err
		}
	}
	next, err := entityRows(f)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("datasource: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_entities (collection, id, owner, position, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			owner    = excluded.owner,
			position = excluded.position,
			body     = excluded.body`)
	if err != nil {
		return 0, fmt.Errorf("datasource: prepare upsert: %w", err)
	}
	defer upsert.Close()

	written := 0
	keep := make(map[rowKey]savedRow, len(next))
	for _, r := range next {
		keep[r.key] = savedRow{position: r.position, body: r.body}
		if prev, ok := s.saved[r.key]; ok && prev.position == r.position && prev.body == r.body {
			continue
		}
		if _, err := upsert.ExecContext(ctx, r.key.collection, r.key.id, r.owner, r.position, r.body); err != nil {
			return 0, fmt.Errorf("datasource: write %s %s: %w", r.key.collection, r.key.id, err)
		}
		written++
	}
	for key := range s.saved {
		if _, ok := keep[key]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM catalog_entities WHERE collection = ? AND id = ?`, key.collection, key.id); err != nil {
			return 0, fmt.Errorf("datasource: delete %s %s: %w", key.collection, key.id, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("datasource: commit: %w", err)
	}
	s.saved = keep
	debug.Log("datasource: saved %s (%d row(s) written)", s.path, written)
	return written, nil
}

// prime reads the current rows without decoding them.
func (s *SQLiteStore) prime(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT collection, id, position, body FROM catalog_entities`)
	if err != nil {
		return fmt.Errorf("datasource: query entities: %w", err)
	}
	defer rows.Close()
	saved := make(map[rowKey]savedRow)
	for rows.Next() {
		var key rowKey
		var r savedRow
		if err := rows.Scan(&key.collection, &key.id, &r.position, &r.body); err != nil {
			return fmt.Errorf("datasource: scan entity: %w", err)
		}
		saved[key] = r
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("datasource: iterate entities: %w", err)
	}
	s.saved = saved
	return nil
}

func entityRows(f catalog.Forest) ([]entityRow, error) {
	rows := make([]entityRow, 0, f.Size())
	add := func(collection, id, owner string, position int, v any) error {
		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("datasource: encode %s %s: %w", collection, id, err)
		}
		rows = append(rows, entityRow{
			key:      rowKey{collection: collection, id: id},
			owner:    owner,
			position: position,
			body:     string(body),
		})
		return nil
	}
	for i, n := range f.Nodes {
		if n == nil {
			continue
		}
		if err := add(collNode, n.ID, "", i, n); err != nil {
			return nil, err
		}
	}
	for i, sv := range f.Services {
		if sv == nil {
			continue
		}
		if err := add(collService, sv.ID, "", i, sv); err != nil {
			return nil, err
		}
	}
	for i, l := range f.Layers {
		if l == nil {
			continue
		}
		if err := add(collLayer, l.ID, l.ServiceID, i, l); err != nil {
			return nil, err
		}
	}
	for i, fs := range f.FeatureSources {
		if fs == nil {
			continue
		}
		if err := add(collFeatureSource, fs.ID, "", i, fs); err != nil {
			return nil, err
		}
	}
	for i, ft := range f.FeatureTypes {
		if ft == nil {
			continue
		}
		if err := add(collFeatureType, ft.ID, ft.SourceID, i, ft); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func decodeRow(f *catalog.Forest, key rowKey, body string) error {
	var err error
	switch key.collection {
	case collNode:
		var n catalog.Node
		if err = json.Unmarshal([]byte(body), &n); err == nil {
			f.Nodes = append(f.Nodes, &n)
		}
	case collService:
		var sv catalog.Service
		if err = json.Unmarshal([]byte(body), &sv); err == nil {
			f.Services = append(f.Services, &sv)
		}
	case collLayer:
		var l catalog.Layer
		if err = json.Unmarshal([]byte(body), &l); err == nil {
			f.Layers = append(f.Layers, &l)
		}
	case collFeatureSource:
		var fs catalog.FeatureSource
		if err = json.Unmarshal([]byte(body), &fs); err == nil {
			f.FeatureSources = append(f.FeatureSources, &fs)
		}
	case collFeatureType:
		var ft catalog.FeatureType
		if err = json.Unmarshal([]byte(body), &ft); err == nil {
			f.FeatureTypes = append(f.FeatureTypes, &ft)
		}
	default:
		debug.Log("datasource: skipping row of unknown collection %q", key.collection)
		return nil
	}
	if err != nil {
		return fmt.Errorf("datasource: decode %s %s: %w", key.collection, key.id, err)
	}
	return nil
}
