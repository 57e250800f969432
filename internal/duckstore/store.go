// Package duckstore is the structured deployment variant of the search
// log store: the same append/read-all/truncate contract as the flat file,
// backed by DuckDB so large logs do not reparse a text file on every
// admin view.
package duckstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/searchtrail/searchtrail/internal/duckstore/migrate"
	"github.com/searchtrail/searchtrail/internal/model"
)

// Store implements model.EventStore over a DuckDB database.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	queryTimeout time.Duration
}

// Open opens or creates the DuckDB database at dbPath and applies pending
// schema migrations. An empty dbPath uses an in-memory database.
func Open(dbPath string, queryTimeout time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("%w: mkdir: %v", model.ErrStoreUnavailable, err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", model.ErrStoreUnavailable, err)
	}

	if err := migrate.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", model.ErrStoreUnavailable, err)
	}

	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	return &Store{db: db, queryTimeout: queryTimeout}, nil
}

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.queryTimeout)
}

// Append inserts one event. The sequence-backed id column preserves
// insertion order for ReadAll.
func (s *Store) Append(ev model.SearchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO searches (ts, query) VALUES (?, ?)",
		ev.Timestamp, ev.Query)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// ReadAll returns every stored event in insertion order.
func (s *Store) ReadAll() ([]model.SearchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT ts, query FROM searches ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: select: %v", model.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var events []model.SearchEvent
	for rows.Next() {
		var ev model.SearchEvent
		if err := rows.Scan(&ev.Timestamp, &ev.Query); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", model.ErrStoreUnavailable, err)
		}
		ev.Timestamp = ev.Timestamp.Local()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", model.ErrStoreUnavailable, err)
	}
	return events, nil
}

// Truncate deletes all events. Running it against an already-empty store
// is a no-op.
func (s *Store) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM searches"); err != nil {
		return fmt.Errorf("%w: delete: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
