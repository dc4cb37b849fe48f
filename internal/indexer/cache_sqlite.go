package indexer

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteCacheStore keeps one row per path and merges with a guarded upsert,
// so concurrent readers never see a half-written cache.
type SQLiteCacheStore struct {
	db *sql.DB
}

// NewSQLiteCacheStore opens (and if needed creates) the cache database.
func NewSQLiteCacheStore(ctx context.Context, dbPath string) (*SQLiteCacheStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache (
		path        TEXT PRIMARY KEY,
		timestamp   REAL NOT NULL,
		summary     TEXT NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteCacheStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteCacheStore) Close() error {
	return s.db.Close()
}

// Load returns every stored entry.
func (s *SQLiteCacheStore) Load(ctx context.Context) (map[string]CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, timestamp, summary, token_count FROM cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]CacheEntry)
	for rows.Next() {
		var path string
		var e CacheEntry
		if err := rows.Scan(&path, &e.Timestamp, &e.Summary, &e.TokenCount); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		entries[path] = e
	}
	return entries, rows.Err()
}

// MergeAndPersist upserts entries in one transaction. A stored row is only
// replaced by a strictly newer timestamp.
func (s *SQLiteCacheStore) MergeAndPersist(ctx context.Context, entries map[string]CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cache (path, timestamp, summary, token_count) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			timestamp = excluded.timestamp,
			summary = excluded.summary,
			token_count = excluded.token_count
		WHERE excluded.timestamp > cache.timestamp`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for path, e := range entries {
		if _, err := stmt.ExecContext(ctx, path, e.Timestamp, e.Summary, e.TokenCount); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}
	return nil
}
