package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/codeindex/codeindex/dispatcher"
	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/syncmanager"
)

type textPlugin struct{}

func (textPlugin) Supports(string) bool { return true }
func (textPlugin) Language() string     { return "text" }
func (textPlugin) Index(string, []byte) (plugin.Extraction, error) {
	return plugin.Extraction{}, nil
}
func (textPlugin) ExtractSnippet(content []byte, startLine, endLine int) string {
	return string(content)
}

func initRepo(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
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

func TestCoordinatorSearchCodeSpansRepos(t *testing.T) {
	ctx := context.Background()

	reg, err := registry.New(ctx, &registry.Options{
		DocumentPath: filepath.Join(t.TempDir(), "registry.json"),
		IndexRoot:    t.TempDir(),
	})
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

	var repoIDs []string
	for i := 0; i < 3; i++ {
		root := initRepo(t, "needle in a haystack of words\n")
		repoID, err := reg.Register(ctx, root, "")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := sync.Sync(ctx, repoID); err != nil {
			t.Fatalf("sync: %v", err)
		}
		repoIDs = append(repoIDs, repoID)
	}

	d := dispatcher.New(reg, plugins, nil, dispatcher.Options{})
	defer d.Close()

	c := New(d, Options{Concurrency: 2, PerRepoLimit: 5})
	result, err := c.SearchCode(ctx, "needle", dispatcher.SearchOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) == 0 {
		t.Fatal("expected hits across repos")
	}
	if len(result.Hits) > 2 {
		t.Fatalf("expected global limit of 2 to be honored, got %d", len(result.Hits))
	}
	for _, h := range result.Hits {
		found := false
		for _, id := range repoIDs {
			if h.RepoID == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("hit %+v has unexpected repo_id", h)
		}
	}
}

func TestCoordinatorUnknownRepoScope(t *testing.T) {
	ctx := context.Background()
	reg, err := registry.New(ctx, &registry.Options{
		DocumentPath: filepath.Join(t.TempDir(), "registry.json"),
		IndexRoot:    t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	plugins, err := pluginmgr.New(nil, &pluginmgr.Options{})
	if err != nil {
		t.Fatal(err)
	}
	d := dispatcher.New(reg, plugins, nil, dispatcher.Options{})
	defer d.Close()

	c := New(d, Options{})
	if _, err := c.SearchCode(ctx, "x", dispatcher.SearchOpts{RepoScope: []string{"missing"}}); err == nil {
		t.Fatal("expected an error for an unknown repo_scope entry")
	}
}
