package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codeindex/codeindex"
)

// PutFile inserts or updates a file record, keyed by (repo_id, rel_path),
// and returns its file_id.
func (t *Txn) PutFile(ctx context.Context, repoID, relPath, language string, hash codeindex.Digest, mtime time.Time, size int64) (int64, error) {
	const q = `INSERT INTO files (repo_id, rel_path, language, content_hash, size, mtime)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, rel_path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			size = excluded.size,
			mtime = excluded.mtime
		RETURNING id`
	var id int64
	row := t.tx.QueryRowContext(ctx, q, repoID, relPath, language, hash.String(), size, mtime.UTC().Unix())
	if err := row.Scan(&id); err != nil {
		return 0, &codeindex.Error{Op: "storage.PutFile", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return id, nil
}

// PutSymbols replaces every symbol belonging to fileID with symbols.
func (t *Txn) PutSymbols(ctx context.Context, fileID int64, symbols []codeindex.Symbol) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
		return &codeindex.Error{Op: "storage.PutSymbols", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	const q = `INSERT INTO symbols
		(file_id, kind, name, qualified_name, signature, documentation, start_line, start_col, end_line, end_col, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, sym := range symbols {
		if _, err := t.tx.ExecContext(ctx, q, fileID, string(sym.Kind), sym.Name, sym.QualifiedName,
			sym.Signature, sym.Documentation, sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.Language); err != nil {
			return &codeindex.Error{Op: "storage.PutSymbols", Kind: codeindex.ErrUnavailable, Inner: err}
		}
	}
	return nil
}

// PutReferences replaces every reference belonging to fileID with refs.
func (t *Txn) PutReferences(ctx context.Context, fileID int64, refs []codeindex.Reference) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM refs WHERE file_id = ?`, fileID); err != nil {
		return &codeindex.Error{Op: "storage.PutReferences", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	const q = `INSERT INTO refs (symbol_id, file_id, line, col, kind) VALUES (?, ?, ?, ?, ?)`
	for _, ref := range refs {
		if _, err := t.tx.ExecContext(ctx, q, ref.SymbolID, fileID, ref.Line, ref.Col, string(ref.Kind)); err != nil {
			return &codeindex.Error{Op: "storage.PutReferences", Kind: codeindex.ErrUnavailable, Inner: err}
		}
	}
	return nil
}

// PutFulltext inserts or replaces the full-text row for fileID.
func (t *Txn) PutFulltext(ctx context.Context, fileID int64, relPath, filename, content, language string) error {
	table := t.store.fulltextTable
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), fileID); err != nil {
		return &codeindex.Error{Op: "storage.PutFulltext", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	q := fmt.Sprintf(`INSERT INTO %s (rowid, rel_path, filename, content, language) VALUES (?, ?, ?, ?, ?)`, table)
	if _, err := t.tx.ExecContext(ctx, q, fileID, relPath, filename, sanitizeUTF8(content), language); err != nil {
		return &codeindex.Error{Op: "storage.PutFulltext", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return nil
}

// DeleteFile removes fileID and cascades to its symbols, references, and
// full-text row in one transaction.
func (t *Txn) DeleteFile(ctx context.Context, fileID int64) error {
	table := t.store.fulltextTable
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, table), fileID); err != nil {
		return &codeindex.Error{Op: "storage.DeleteFile", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID); err != nil {
		return &codeindex.Error{Op: "storage.DeleteFile", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return nil
}

// FileByPath looks up the file_id and content hash for (repoID, relPath),
// returning codeindex.ErrNotFound when absent. Used by the incremental
// indexer to decide whether a modified path actually changed content.
func (s *Store) FileByPath(ctx context.Context, repoID, relPath string) (codeindex.FileRecord, error) {
	const q = `SELECT id, repo_id, rel_path, language, content_hash, size, mtime, last_indexed_commit
		FROM files WHERE repo_id = ? AND rel_path = ?`
	row := s.db.QueryRowContext(ctx, q, repoID, relPath)
	var rec codeindex.FileRecord
	var hash string
	var mtimeUnix int64
	switch err := row.Scan(&rec.ID, &rec.RepoID, &rec.RelPath, &rec.Language, &hash, &rec.Size, &mtimeUnix, &rec.LastIndexedCommit); {
	case err == sql.ErrNoRows:
		return codeindex.FileRecord{}, &codeindex.Error{Op: "storage.FileByPath", Kind: codeindex.ErrNotFound, Message: relPath}
	case err != nil:
		return codeindex.FileRecord{}, &codeindex.Error{Op: "storage.FileByPath", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	rec.ModTime = time.Unix(mtimeUnix, 0).UTC()
	d, err := codeindex.ParseDigest(hash)
	if err == nil {
		rec.ContentHash = d
	}
	return rec, nil
}

// sanitizeUTF8 replaces invalid UTF-8 sequences so all stored text is
// valid UTF-8, per the storage engine's text invariant.
func sanitizeUTF8(s string) string {
	if isValidUTF8(s) {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == 0xFFFD {
			out = append(out, '�')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func isValidUTF8(s string) bool {
	for _, r := range s {
		if r == 0xFFFD {
			return false
		}
	}
	return true
}
