package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// SQLite driver names accepted by NewSQLiteStore.
const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// SQLiteStore stores the collection in a single SQLite table.
//
// Table:
//
//	documents(seq, id, data)  seq keeps insertion order, id is UNIQUE
//
// Filtering happens in Go with Match after rows are read in seq order.
type SQLiteStore struct {
	mu    sync.RWMutex
	db    *sql.DB
	newID func() string
}

// NewSQLiteStore opens (or creates) the database at dbPath using the named
// driver. An empty driver selects DriverCgo.
func NewSQLiteStore(dbPath, driver string) (*SQLiteStore, error) {
	return newSQLiteStore(dbPath, driver, nil)
}

func newSQLiteStore(dbPath, driver string, gen func() string) (*SQLiteStore, error) {
	if driver == "" {
		driver = DriverCgo
	}
	if driver != DriverCgo && driver != DriverPureGo {
		return nil, fmt.Errorf("unknown sqlite driver: %q (supported: %s, %s)", driver, DriverCgo, DriverPureGo)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			data TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	if gen == nil {
		gen = NewID
	}
	return &SQLiteStore{db: db, newID: gen}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := prepareInsert(doc, s.newID)
	if err != nil {
		return nil, err
	}
	b, err := codec.Marshal(stored)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", stored.ID()).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrDuplicateID
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO documents (id, data) VALUES (?, ?)",
		stored.ID(), string(b),
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *SQLiteStore) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.matching(ctx, s.db, q, true)
	if err != nil {
		return nil, err
	}
	result := make([]Document, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.doc)
	}
	return result, nil
}

func (s *SQLiteStore) Update(ctx context.Context, q Query, patch Document, opts UpdateOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := s.matching(ctx, tx, q, opts.Multi)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := applyPatch(r.doc, patch); err != nil {
			return 0, err
		}
		b, err := codec.Marshal(r.doc)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE documents SET data = ? WHERE seq = ?", string(b), r.seq); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *SQLiteStore) Remove(ctx context.Context, q Query, opts RemoveOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := s.matching(ctx, tx, q, opts.Multi)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE seq = ?", r.seq); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

type sqliteRow struct {
	seq int64
	doc Document
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// matching reads candidate rows in seq order and filters them with Match.
// Identifier lookups are pushed down to SQL.
func (s *SQLiteStore) matching(ctx context.Context, db querier, q Query, multi bool) ([]sqliteRow, error) {
	stmt := "SELECT seq, data FROM documents ORDER BY seq"
	var args []any
	if id, ok := q[IDField].(string); ok {
		stmt = "SELECT seq, data FROM documents WHERE id = ? ORDER BY seq"
		args = append(args, id)
	}
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []sqliteRow
	for rows.Next() {
		var (
			seq int64
			raw string
		)
		if err := rows.Scan(&seq, &raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := codec.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorruptDatafile, seq, err)
		}
		ok, err := Match(doc, q)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		result = append(result, sqliteRow{seq: seq, doc: doc})
		if !multi {
			break
		}
	}
	return result, rows.Err()
}
