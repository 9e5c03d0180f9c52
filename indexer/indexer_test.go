package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/changeset"
	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/storage"
)

type stubPlugin struct{}

func (stubPlugin) Supports(relPath string) bool { return true }
func (stubPlugin) Language() string             { return "stub" }
func (stubPlugin) Index(relPath string, content []byte) (plugin.Extraction, error) {
	return plugin.Extraction{
		Symbols: []codeindex.Symbol{{
			Kind: codeindex.SymbolFunction, Name: "Thing", QualifiedName: "Thing",
			StartLine: 1, EndLine: 1, Language: "stub",
		}},
	}, nil
}
func (stubPlugin) ExtractSnippet(content []byte, start, end int) string { return "" }

func newManager(t *testing.T) *pluginmgr.Manager {
	t.Helper()
	m, err := pluginmgr.New([]pluginmgr.Descriptor{
		{
			Name:       "stub",
			Extensions: []string{".stub"},
			New:        func(context.Context) (plugin.Plugin, error) { return stubPlugin{}, nil },
		},
	}, &pluginmgr.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestFullIndexWritesRows(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.stub"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ix := New(store, newManager(t), Options{})
	if err := ix.FullIndex(ctx, "repo1", root, []string{"a.stub"}, nil); err != nil {
		t.Fatal(err)
	}

	rec, err := store.FileByPath(ctx, "repo1", "a.stub")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Language != "stub" {
		t.Fatalf("expected language stub, got %q", rec.Language)
	}

	hits, err := store.LookupSymbol(ctx, "Thing", storage.SymbolOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected one symbol hit, got %d", len(hits))
	}
}

func TestApplyChangesDeletesAndAdds(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.stub"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "new.stub"), []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ix := New(store, newManager(t), Options{})
	if err := ix.FullIndex(ctx, "repo1", root, []string{"a.stub"}, nil); err != nil {
		t.Fatal(err)
	}

	cs := changeset.ChangeSet{
		Added:   []changeset.FileChange{{Path: "new.stub"}},
		Deleted: []string{"a.stub"},
	}
	if err := ix.ApplyChanges(ctx, "repo1", root, cs); err != nil {
		t.Fatal(err)
	}

	if _, err := store.FileByPath(ctx, "repo1", "a.stub"); err == nil {
		t.Fatal("expected a.stub to be deleted")
	}
	if _, err := store.FileByPath(ctx, "repo1", "new.stub"); err != nil {
		t.Fatalf("expected new.stub to be present: %v", err)
	}
}
