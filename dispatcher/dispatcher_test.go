package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/syncmanager"
)

func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	repo, err := git.PlainOpen(root)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	}); err != nil {
		t.Fatal(err)
	}
	return root
}

type textPlugin struct{}

func (textPlugin) Supports(string) bool { return true }
func (textPlugin) Language() string     { return "text" }
func (textPlugin) Index(string, []byte) (plugin.Extraction, error) {
	return plugin.Extraction{}, nil
}
func (textPlugin) ExtractSnippet(content []byte, startLine, endLine int) string {
	return string(content)
}

func newTestDispatcher(t *testing.T, files map[string]string) (*Dispatcher, string) {
	t.Helper()
	ctx := context.Background()
	root := initRepo(t, files)

	reg, err := registry.New(ctx, &registry.Options{
		DocumentPath: filepath.Join(t.TempDir(), "registry.json"),
		IndexRoot:    t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	repoID, err := reg.Register(ctx, root, "")
	if err != nil {
		t.Fatal(err)
	}

	plugins, err := pluginmgr.New([]pluginmgr.Descriptor{
		{Name: "text", New: func(context.Context) (plugin.Plugin, error) { return textPlugin{}, nil }},
	}, &pluginmgr.Options{})
	if err != nil {
		t.Fatal(err)
	}

	sync := syncmanager.New(reg, plugins, nil, syncmanager.Options{})
	if _, err := sync.Sync(ctx, repoID); err != nil {
		t.Fatalf("initial sync: %v", err)
	}

	return New(reg, plugins, nil, Options{}), repoID
}

func TestSearchCodeFindsFulltextHit(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, map[string]string{
		"widget.txt": "the quick brown fox jumps over the lazy dog\n",
	})
	defer d.Close()

	result, err := d.SearchCode(ctx, "quick brown fox", SearchOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if result.Hits[0].RelPath != "widget.txt" {
		t.Fatalf("unexpected hit: %+v", result.Hits[0])
	}
	if result.Partial {
		t.Fatal("did not expect a partial result")
	}
}

func TestSearchCodeEmptyRepoScope(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, map[string]string{"a.txt": "hello\n"})
	defer d.Close()

	_, err := d.SearchCode(ctx, "hello", SearchOpts{RepoScope: []string{"does-not-exist"}})
	if err == nil {
		t.Fatal("expected an error resolving an unknown repo_scope entry")
	}
}

func TestStatusReportsPerRepoHealth(t *testing.T) {
	ctx := context.Background()
	d, repoID := newTestDispatcher(t, map[string]string{"a.txt": "hello\n"})
	defer d.Close()

	report, err := d.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.StorageOK {
		t.Fatalf("expected storage_ok, index_health=%+v", report.IndexHealth)
	}
	found := false
	for _, h := range report.IndexHealth {
		if h.Name == repoID {
			found = true
			if !h.OK {
				t.Fatalf("expected repo %s healthy, got %+v", repoID, h)
			}
		}
	}
	if !found {
		t.Fatalf("expected a health entry for %s, got %+v", repoID, report.IndexHealth)
	}
}

func TestLookupSymbolMergesAndLimits(t *testing.T) {
	ctx := context.Background()
	files := make(map[string]string)
	for i := 0; i < 3; i++ {
		files[fmt.Sprintf("f%d.txt", i)] = "plain text, no symbols here\n"
	}
	d, _ := newTestDispatcher(t, files)
	defer d.Close()

	hits, err := d.LookupSymbol(ctx, "Widget", LookupOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) > 2 {
		t.Fatalf("expected at most 2 hits, got %d", len(hits))
	}
}
