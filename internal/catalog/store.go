package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a local SQLite index of granule records. It lets repeated
// runs over the same area search locally instead of hitting the remote
// catalog, and implements Searcher.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (or creates) a granule index at dbPath.
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS granules (
		uri TEXT PRIMARY KEY,
		collection TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL,
		tile_id TEXT NOT NULL DEFAULT '',
		band_name TEXT NOT NULL DEFAULT '',
		cloud_cover REAL
	);

	CREATE INDEX IF NOT EXISTS idx_granules_timestamp ON granules(timestamp);
	CREATE INDEX IF NOT EXISTS idx_granules_collection ON granules(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts records under a collection name.
func (s *Store) Save(collection string, records []GranuleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO granules (uri, collection, timestamp, tile_id, band_name, cloud_cover)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			collection = excluded.collection,
			timestamp = excluded.timestamp,
			tile_id = excluded.tile_id,
			band_name = excluded.band_name,
			cloud_cover = excluded.cloud_cover
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var cc interface{}
		if r.CloudCover != nil {
			cc = *r.CloudCover
		}
		if _, err := stmt.Exec(r.URI, collection, r.Timestamp.UTC().Format(time.RFC3339), r.TileID, r.BandName, cc); err != nil {
			return fmt.Errorf("failed to save %s: %w", r.URI, err)
		}
	}
	return tx.Commit()
}

// Search returns records matching the query, ordered chronologically.
// Spatial fields of the query are ignored; the index is already scoped
// to an area of interest when it is built.
func (s *Store) Search(ctx context.Context, q Query) ([]GranuleRecord, error) {
	where := "1=1"
	args := []interface{}{}
	if q.Collection != "" {
		where += " AND collection = ?"
		args = append(args, q.Collection)
	}
	if !q.Start.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		where += " AND timestamp <= ?"
		args = append(args, q.End.UTC().Format(time.RFC3339))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, timestamp, tile_id, band_name, cloud_cover
		FROM granules WHERE `+where+`
		ORDER BY timestamp, tile_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query granules: %w", err)
	}
	defer rows.Close()

	var records []GranuleRecord
	for rows.Next() {
		var r GranuleRecord
		var ts string
		var cc sql.NullFloat64
		if err := rows.Scan(&r.URI, &ts, &r.TileID, &r.BandName, &cc); err != nil {
			return nil, fmt.Errorf("failed to scan granule: %w", err)
		}
		r.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp for %s: %w", r.URI, err)
		}
		if cc.Valid {
			v := cc.Float64
			r.CloudCover = &v
		}
		records = append(records, r)
	}
	if q.MaxCloudCover != nil {
		records = FilterCloudCover(records, *q.MaxCloudCover)
	}
	return records, rows.Err()
}

var _ Searcher = (*Store)(nil)
