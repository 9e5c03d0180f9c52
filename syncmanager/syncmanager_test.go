package syncmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
)

type fallbackPlugin struct{}

func (fallbackPlugin) Supports(string) bool { return true }
func (fallbackPlugin) Language() string     { return "text" }
func (fallbackPlugin) Index(string, []byte) (plugin.Extraction, error) {
	return plugin.Extraction{}, nil
}
func (fallbackPlugin) ExtractSnippet([]byte, int, int) string { return "" }

func newTestManager(t *testing.T, repoRoot string) (*Manager, *registry.Registry, string) {
	t.Helper()
	ctx := context.Background()

	reg, err := registry.New(ctx, &registry.Options{
		DocumentPath: filepath.Join(t.TempDir(), "registry.json"),
		IndexRoot:    t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	repoID, err := reg.Register(ctx, repoRoot, "")
	if err != nil {
		t.Fatal(err)
	}

	plugins, err := pluginmgr.New([]pluginmgr.Descriptor{
		{Name: "text", New: func(context.Context) (plugin.Plugin, error) { return fallbackPlugin{}, nil }},
	}, &pluginmgr.Options{})
	if err != nil {
		t.Fatal(err)
	}

	return New(reg, plugins, nil, Options{}), reg, repoID
}

func commitAll(t *testing.T, root, msg string) {
	t.Helper()
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
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSyncFullThenIncremental(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := os.WriteFile(filepath.Join(root, fmt.Sprintf("f%d.txt", i)), []byte("hello\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	commitAll(t, root, "initial")

	mgr, _, repoID := newTestManager(t, root)

	res, err := mgr.Sync(ctx, repoID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != "full_index" {
		t.Fatalf("expected full_index on first sync, got %q", res.Action)
	}

	if err := os.WriteFile(filepath.Join(root, "f10.txt"), []byte("world\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	commitAll(t, root, "add one file")

	res2, err := mgr.Sync(ctx, repoID)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Action != "apply_changes" {
		t.Fatalf("expected apply_changes on second sync, got %q", res2.Action)
	}

	res3, err := mgr.Sync(ctx, repoID)
	if err != nil {
		t.Fatal(err)
	}
	if res3.Action != "noop" {
		t.Fatalf("expected noop when already at target commit, got %q", res3.Action)
	}
}
