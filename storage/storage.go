// Package storage is the embedded relational and full-text store for
// files, symbols, references, and BM25-ranked content.
//
// It is backed by an embedded SQLite database (via modernc.org/sqlite, a
// pure-Go driver requiring no cgo) with an FTS5 virtual table for content
// search. One Store instance owns one index location: a directory holding
// the current snapshot's database file plus any prior snapshot artifacts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3"
	_ "modernc.org/sqlite"

	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
)

const driverName = "sqlite"

// dialect is the goqu SQL dialect every query builder in this package uses.
var dialect = goqu.Dialect("sqlite3")

// Store is one open connection to an index location's database.
//
// A Store is safe for concurrent use: SQLite serializes writers internally
// and the Go sql.DB pool serializes access to the single underlying
// connection used for writes.
type Store struct {
	db   *sql.DB
	path string

	mu         sync.Mutex
	fulltextTable string
}

// Open opens (creating if necessary) the database at dbPath, ensures the
// schema is current or migratable, and returns a ready Store.
//
// If the on-disk schema is a newer version than this package understands,
// Open closes the database and returns a nil Store with an error that
// wraps codeindex.ErrCorrupt and carries a migration advisory message; it
// does not open such a database read-only.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open(driverName, dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dbPath, err)
	}
	// SQLite only usefully supports one writer; keep the pool to one
	// connection so "database is locked" errors never surface internally.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	zlog.Debug(ctx).Str("path", dbPath).Str("fulltext_table", s.fulltextTable).Msg("storage opened")
	return s, nil
}

// OpenInRoot opens the database found under a repository's index location
// (root), using the conventional file name.
func OpenInRoot(ctx context.Context, root string) (*Store, error) {
	return Open(ctx, filepath.Join(root, "index.sqlite"))
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTxn starts a transaction; all multi-row writes funnel through it.
func (s *Store) BeginTxn(ctx context.Context) (*Txn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &codeindex.Error{Op: "storage.BeginTxn", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return &Txn{tx: tx, store: s}, nil
}

// Txn wraps one read-modify-write transaction against the store.
type Txn struct {
	tx    *sql.Tx
	store *Store
}

// Commit commits the transaction.
func (t *Txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return &codeindex.Error{Op: "storage.Commit", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return nil
}

// Rollback rolls back the transaction. Calling it after Commit is a no-op.
func (t *Txn) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return &codeindex.Error{Op: "storage.Rollback", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return nil
}

// Stats reports row counts and database size for repoID.
type Stats struct {
	FileCount       int64
	SymbolCount     int64
	FulltextRowCount int64
	Bytes           int64
}

// Stats returns aggregate counts for repoID.
func (s *Store) Stats(ctx context.Context, repoID string) (Stats, error) {
	var out Stats
	row := s.db.QueryRowContext(ctx, `SELECT count(*) FROM files WHERE repo_id = ?`, repoID)
	if err := row.Scan(&out.FileCount); err != nil {
		return out, &codeindex.Error{Op: "storage.Stats", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	row = s.db.QueryRowContext(ctx, `SELECT count(*) FROM symbols s JOIN files f ON f.id = s.file_id WHERE f.repo_id = ?`, repoID)
	if err := row.Scan(&out.SymbolCount); err != nil {
		return out, &codeindex.Error{Op: "storage.Stats", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	row = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s ft JOIN files f ON f.id = ft.rowid WHERE f.repo_id = ?`, s.fulltextTable), repoID)
	if err := row.Scan(&out.FulltextRowCount); err != nil {
		return out, &codeindex.Error{Op: "storage.Stats", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	row = s.db.QueryRowContext(ctx, `SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&out.Bytes); err != nil {
		out.Bytes = 0
	}
	return out, nil
}
