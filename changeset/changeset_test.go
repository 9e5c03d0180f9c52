package changeset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func commitAll(t *testing.T, repo *git.Repository, msg string) string {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatal(err)
	}
	h, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return h.String()
}

func TestDetectAddedModifiedDeleted(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	write := func(name, content string) {
		if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("a/old.txt", "hello world\n")
	write("b/stay.txt", "unchanged\n")
	write("c/gone.txt", "will be deleted\n")
	c1 := commitAll(t, repo, "initial")

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "c/gone.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Remove("c/gone.txt"); err != nil {
		t.Fatal(err)
	}
	write("a/old.txt", "hello world, modified\n")
	write("a/new.txt", "brand new\n")
	c2 := commitAll(t, repo, "second")

	ctx := context.Background()
	cs, err := Detect(ctx, dir, c1, c2, 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(cs.Deleted) != 1 || cs.Deleted[0] != "c/gone.txt" {
		t.Fatalf("expected c/gone.txt deleted, got %+v", cs.Deleted)
	}
	if len(cs.Added) != 1 || cs.Added[0].Path != "a/new.txt" {
		t.Fatalf("expected a/new.txt added, got %+v", cs.Added)
	}
	if len(cs.Modified) != 1 || cs.Modified[0].Path != "a/old.txt" {
		t.Fatalf("expected a/old.txt modified, got %+v", cs.Modified)
	}
	// Three changes against three tracked files is above the 20% threshold.
	if cs.Worthwhile {
		t.Fatalf("expected 3 changes out of 3 tracked files not to be worthwhile")
	}
}

func TestDetectRename(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	write := func(name, content string) {
		if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("old/path.txt", "identical content\n")
	c1 := commitAll(t, repo, "initial")

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "new"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(filepath.Join(dir, "old/path.txt"), filepath.Join(dir, "new/path.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatal(err)
	}
	c2 := commitAll(t, repo, "rename")

	cs, err := Detect(context.Background(), dir, c1, c2, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Renamed) != 1 {
		t.Fatalf("expected one rename, got %+v / added=%+v deleted=%+v", cs.Renamed, cs.Added, cs.Deleted)
	}
	if cs.Renamed[0].From != "old/path.txt" || cs.Renamed[0].To != "new/path.txt" {
		t.Fatalf("unexpected rename pair: %+v", cs.Renamed[0])
	}
}
