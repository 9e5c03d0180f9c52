package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v8"

	"github.com/codeindex/codeindex"
)

// FulltextOpts narrows a SearchFulltext call.
type FulltextOpts struct {
	Limit          int
	RepoFilter     []string
	LanguageFilter string
}

// FulltextHit is one row from SearchFulltext.
type FulltextHit struct {
	RepoID   string
	RelPath  string
	Snippet  string
	Language string
	Score    float64
}

// SearchFulltext ranks rows by BM25, breaking ties by shorter path then
// lexicographic path. Each row's snippet is a single FTS5 snippet()
// fragment of at most 20 tokens from the content column, with highlight
// markers around matched terms and an ellipsis where the fragment is cut
// from longer text; a row never carries more than one fragment. It returns
// results even when no plugin has ever run: full-text rows alone are
// sufficient to answer content search.
func (s *Store) SearchFulltext(ctx context.Context, query string, opts FulltextOpts) ([]FulltextHit, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	table := s.fulltextTable

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT f.repo_id, f.rel_path, f.language,
		snippet(%s, 2, '‣', '‣', ' … ', 20) AS snip,
		bm25(%s) AS score
		FROM %s ft
		JOIN files f ON f.id = ft.rowid
		WHERE %s MATCH ?`, table, table, table, table)

	args := []any{sanitizeFTSQuery(query)}
	if opts.LanguageFilter != "" {
		b.WriteString(` AND f.language = ?`)
		args = append(args, opts.LanguageFilter)
	}
	if len(opts.RepoFilter) > 0 {
		placeholders := make([]string, len(opts.RepoFilter))
		for i, id := range opts.RepoFilter {
			placeholders[i] = "?"
			args = append(args, id)
		}
		fmt.Fprintf(&b, ` AND f.repo_id IN (%s)`, strings.Join(placeholders, ","))
	}
	b.WriteString(` ORDER BY score ASC, length(f.rel_path) ASC, f.rel_path ASC LIMIT ?`)
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, &codeindex.Error{Op: "storage.SearchFulltext", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	defer rows.Close()

	var out []FulltextHit
	for rows.Next() {
		var h FulltextHit
		if err := rows.Scan(&h.RepoID, &h.RelPath, &h.Language, &h.Snippet, &h.Score); err != nil {
			return nil, &codeindex.Error{Op: "storage.SearchFulltext", Kind: codeindex.ErrUnavailable, Inner: err}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &codeindex.Error{Op: "storage.SearchFulltext", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return out, nil
}

// SymbolOpts narrows a LookupSymbol call.
type SymbolOpts struct {
	KindFilter codeindex.SymbolKind
	RepoFilter []string
}

// LookupSymbol matches name exactly and as a prefix, ordered exact-first,
// then by kind priority (class, function, method, other), then by path.
func (s *Store) LookupSymbol(ctx context.Context, name string, opts SymbolOpts) ([]codeindex.SymbolHit, error) {
	ds := dialect.From(goqu.T("symbols").As("s")).
		Join(goqu.T("files").As("f"), goqu.On(goqu.Ex{"f.id": goqu.I("s.file_id")})).
		Select(
			goqu.I("f.repo_id"), goqu.I("f.rel_path"), goqu.I("s.kind"),
			goqu.I("s.start_line"), goqu.I("s.signature"), goqu.I("s.language"), goqu.I("s.name"),
		).
		Where(goqu.Or(
			goqu.I("s.name").Eq(name),
			goqu.I("s.qualified_name").Eq(name),
			goqu.I("s.name").Like(name+"%"),
		))
	if opts.KindFilter != "" {
		ds = ds.Where(goqu.I("s.kind").Eq(string(opts.KindFilter)))
	}
	if len(opts.RepoFilter) > 0 {
		ds = ds.Where(goqu.I("f.repo_id").In(opts.RepoFilter))
	}

	sqlStr, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("storage: build lookup_symbol query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, &codeindex.Error{Op: "storage.LookupSymbol", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	defer rows.Close()

	var out []codeindex.SymbolHit
	for rows.Next() {
		var h codeindex.SymbolHit
		var kind string
		var matchedName string
		if err := rows.Scan(&h.RepoID, &h.RelPath, &kind, &h.Line, &h.Signature, &h.Language, &matchedName); err != nil {
			return nil, &codeindex.Error{Op: "storage.LookupSymbol", Kind: codeindex.ErrUnavailable, Inner: err}
		}
		h.Kind = codeindex.SymbolKind(kind)
		h = h.WithExact(matchedName == name)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &codeindex.Error{Op: "storage.LookupSymbol", Kind: codeindex.ErrUnavailable, Inner: err}
	}

	sortSymbolHits(out)
	return out, nil
}

func sortSymbolHits(hits []codeindex.SymbolHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && less(hits[j], hits[j-1]); j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

func less(a, b codeindex.SymbolHit) bool {
	if a.Exact() != b.Exact() {
		return a.Exact()
	}
	pa, pb := codeindex.KindPriority(a.Kind), codeindex.KindPriority(b.Kind)
	if pa != pb {
		return pa < pb
	}
	return a.RelPath < b.RelPath
}

// sanitizeFTSQuery escapes an arbitrary user query for use as an FTS5
// MATCH argument by quoting it as a single phrase, so punctuation in the
// query can't be interpreted as FTS5 query syntax.
func sanitizeFTSQuery(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}
