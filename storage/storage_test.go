package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
)

func openTest(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := zlog.Test(context.Background(), t)
	s, err := Open(ctx, filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, ctx
}

func putFile(t *testing.T, ctx context.Context, s *Store, repoID, relPath, content string) int64 {
	t.Helper()
	txn, err := s.BeginTxn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Rollback()

	digest, err := codeindex.NewDigest("sha256", []byte(content))
	if err != nil {
		t.Fatal(err)
	}
	id, err := txn.PutFile(ctx, repoID, relPath, "go", digest, time.Now(), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.PutFulltext(ctx, id, relPath, filepath.Base(relPath), content, "go"); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestPutAndSearchFulltext(t *testing.T) {
	s, ctx := openTest(t)
	putFile(t, ctx, s, "repo1", "main.go", "func main() { retryLoop() }")
	putFile(t, ctx, s, "repo1", "other.go", "func helper() {}")

	hits, err := s.SearchFulltext(ctx, "retryLoop", FulltextOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].RelPath != "main.go" {
		t.Errorf("got %q, want main.go", hits[0].RelPath)
	}
}

func TestSearchFulltextNoSymbols(t *testing.T) {
	// The engine must answer content search even with zero symbols loaded.
	s, ctx := openTest(t)
	putFile(t, ctx, s, "repo1", "readme.txt", "hello world")

	hits, err := s.SearchFulltext(ctx, "hello", FulltextOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
}

func TestLookupSymbolOrdering(t *testing.T) {
	s, ctx := openTest(t)
	fileID := putFile(t, ctx, s, "repo1", "a.go", "package a")

	txn, err := s.BeginTxn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	err = txn.PutSymbols(ctx, fileID, []codeindex.Symbol{
		{Kind: codeindex.SymbolVariable, Name: "Retry", QualifiedName: "a.Retry", StartLine: 1, Language: "go"},
		{Kind: codeindex.SymbolFunction, Name: "Retry", QualifiedName: "a.Retry", StartLine: 2, Language: "go"},
		{Kind: codeindex.SymbolFunction, Name: "RetryLoop", QualifiedName: "a.RetryLoop", StartLine: 3, Language: "go"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	hits, err := s.LookupSymbol(ctx, "Retry", SymbolOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	// Exact matches sort before prefix matches; among exacts, function
	// before variable per kind priority.
	if hits[0].Line != 2 {
		t.Errorf("expected exact function match first, got line %d kind %s", hits[0].Line, hits[0].Kind)
	}
	if hits[1].Line != 1 {
		t.Errorf("expected exact variable match second, got line %d kind %s", hits[1].Line, hits[1].Kind)
	}
	if hits[2].Line != 3 {
		t.Errorf("expected prefix match last, got line %d", hits[2].Line)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	s, ctx := openTest(t)
	fileID := putFile(t, ctx, s, "repo1", "gone.go", "package gone; func Vanish() {}")

	txn, err := s.BeginTxn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.PutSymbols(ctx, fileID, []codeindex.Symbol{
		{Kind: codeindex.SymbolFunction, Name: "Vanish", QualifiedName: "gone.Vanish", StartLine: 1, Language: "go"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	txn, err = s.BeginTxn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.DeleteFile(ctx, fileID); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	hits, err := s.LookupSymbol(ctx, "Vanish", SymbolOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no symbols after delete, got %d", len(hits))
	}
	fthits, err := s.SearchFulltext(ctx, "Vanish", FulltextOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(fthits) != 0 {
		t.Errorf("expected no fulltext rows after delete, got %d", len(fthits))
	}
}

func TestStats(t *testing.T) {
	s, ctx := openTest(t)
	putFile(t, ctx, s, "repo1", "a.go", "package a")
	putFile(t, ctx, s, "repo1", "b.go", "package a")

	stats, err := s.Stats(ctx, "repo1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.FileCount != 2 {
		t.Errorf("got %d files, want 2", stats.FileCount)
	}
	if stats.FulltextRowCount != 2 {
		t.Errorf("got %d fulltext rows, want 2", stats.FulltextRowCount)
	}
}

func TestFileByPathNotFound(t *testing.T) {
	s, ctx := openTest(t)
	_, err := s.FileByPath(ctx, "repo1", "missing.go")
	var ce *codeindex.Error
	if !asCodeindexErr(err, &ce) || ce.Kind != codeindex.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func asCodeindexErr(err error, target **codeindex.Error) bool {
	ce, ok := err.(*codeindex.Error)
	if !ok {
		return false
	}
	*target = ce
	return true
}
