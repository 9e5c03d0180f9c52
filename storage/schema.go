package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/codeindex/codeindex"
)

// currentSchemaVersion is the schema version this package writes, as a
// semantic version. Stores opened at an older version have their version
// row raised to this one. A store at any newer version, major or minor,
// is refused: ensureSchema returns codeindex.ErrCorrupt with a migration
// advisory and Open closes the database; no read-only mode is offered.
var currentSchemaVersion = semver.MustParse("2.0.0")

// zeroSchemaVersion marks a database with no schema_meta row at all: a
// brand-new file, or a pre-versioning layout that predates the table.
var zeroSchemaVersion = semver.MustParse("0.0.0")

// fulltextTables lists every full-text virtual table name this package has
// ever used, newest first. Open selects whichever is present so that
// indexes built by an older layout remain readable.
var fulltextTables = []string{"content_fts", "fulltext"}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("storage: enable foreign keys: %w", err)
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	if version.GreaterThan(currentSchemaVersion) {
		table, derr := s.detectFulltextTable(ctx)
		if derr != nil {
			return derr
		}
		s.fulltextTable = table
		return &codeindex.Error{
			Op:      "storage.ensureSchema",
			Kind:    codeindex.ErrCorrupt,
			Message: fmt.Sprintf("schema version %s is newer than this build understands (%s); open read-only and migrate with a newer build", version, currentSchemaVersion),
		}
	}

	if version.Equal(zeroSchemaVersion) {
		// Either a brand-new database, or a pre-versioning layout that
		// predates the schema_meta table. Tell the two apart by whether
		// any known full-text table already exists.
		if table, derr := s.detectFulltextTable(ctx); derr == nil {
			s.fulltextTable = table
			return s.setSchemaVersion(ctx, currentSchemaVersion)
		}
		if err := s.createSchema(ctx); err != nil {
			return err
		}
		s.fulltextTable = fulltextTables[0]
		return s.setSchemaVersion(ctx, currentSchemaVersion)
	}

	table, err := s.detectFulltextTable(ctx)
	if err != nil {
		return err
	}
	s.fulltextTable = table
	if version.LessThan(currentSchemaVersion) {
		return s.setSchemaVersion(ctx, currentSchemaVersion)
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (*semver.Version, error) {
	var name string
	row := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_meta'`)
	switch err := row.Scan(&name); {
	case err == sql.ErrNoRows:
		return zeroSchemaVersion, nil
	case err != nil:
		return nil, fmt.Errorf("storage: probe schema_meta: %w", err)
	}
	var raw string
	row = s.db.QueryRowContext(ctx, `SELECT version FROM schema_meta LIMIT 1`)
	if err := row.Scan(&raw); err != nil {
		return nil, fmt.Errorf("storage: read schema version: %w", err)
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("storage: parse schema version %q: %w", raw, err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, v *semver.Version) error {
	// A pre-versioning layout has no schema_meta table yet.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (
		singleton INTEGER PRIMARY KEY CHECK (singleton = 0),
		version   TEXT NOT NULL
	)`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO schema_meta(singleton, version) VALUES (0, ?)
		ON CONFLICT(singleton) DO UPDATE SET version = excluded.version`, v.String())
	return err
}

// detectFulltextTable finds whichever known full-text table name is
// present in the open database, preferring the newest layout.
func (s *Store) detectFulltextTable(ctx context.Context) (string, error) {
	for _, name := range fulltextTables {
		row := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
		var found string
		if err := row.Scan(&found); err == nil {
			return found, nil
		}
	}
	return "", &codeindex.Error{Op: "storage.detectFulltextTable", Kind: codeindex.ErrCorrupt, Message: "no recognized full-text table present"}
}

const createSchemaSQL = `
CREATE TABLE schema_meta (
	singleton INTEGER PRIMARY KEY CHECK (singleton = 0),
	version   TEXT NOT NULL
);
INSERT INTO schema_meta(singleton, version) VALUES (0, '0.0.0');

CREATE TABLE files (
	id                  INTEGER PRIMARY KEY,
	repo_id             TEXT NOT NULL,
	rel_path            TEXT NOT NULL,
	language            TEXT NOT NULL,
	content_hash        TEXT NOT NULL,
	size                INTEGER NOT NULL,
	mtime               INTEGER NOT NULL,
	last_indexed_commit TEXT NOT NULL DEFAULT '',
	UNIQUE (repo_id, rel_path)
);
CREATE INDEX files_repo_id_idx ON files (repo_id);

CREATE TABLE symbols (
	id             INTEGER PRIMARY KEY,
	file_id        INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	kind           TEXT NOT NULL,
	name           TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	signature      TEXT NOT NULL DEFAULT '',
	documentation  TEXT NOT NULL DEFAULT '',
	start_line     INTEGER NOT NULL,
	start_col      INTEGER NOT NULL,
	end_line       INTEGER NOT NULL,
	end_col        INTEGER NOT NULL,
	language       TEXT NOT NULL
);
CREATE INDEX symbols_file_id_idx ON symbols (file_id);
CREATE INDEX symbols_name_idx ON symbols (name);
CREATE INDEX symbols_qualified_name_idx ON symbols (qualified_name);

CREATE TABLE refs (
	id        INTEGER PRIMARY KEY,
	symbol_id INTEGER NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
	file_id   INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	line      INTEGER NOT NULL,
	col       INTEGER NOT NULL,
	kind      TEXT NOT NULL
);
CREATE INDEX refs_file_id_idx ON refs (file_id);
CREATE INDEX refs_symbol_id_idx ON refs (symbol_id);

CREATE VIRTUAL TABLE content_fts USING fts5(
	rel_path,
	filename,
	content,
	language UNINDEXED,
	tokenize = 'unicode61'
);
`

func (s *Store) createSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	return nil
}

