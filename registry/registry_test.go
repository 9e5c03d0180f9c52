package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
)

func newTestRegistry(t *testing.T) (*Registry, context.Context) {
	t.Helper()
	ctx := zlog.Test(context.Background(), t)
	dir := t.TempDir()
	reg, err := New(ctx, &Options{
		DocumentPath: filepath.Join(dir, "registry.json"),
		IndexRoot:    filepath.Join(dir, "index"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg, ctx
}

func TestRegisterAndLookup(t *testing.T) {
	reg, ctx := newTestRegistry(t)
	root := t.TempDir()

	id, err := reg.Register(ctx, root, "")
	if err != nil {
		t.Fatal(err)
	}

	byID, err := reg.Lookup(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if byID.ID != id {
		t.Errorf("got id %q, want %q", byID.ID, id)
	}

	byPath, err := reg.Lookup(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if byPath.ID != id {
		t.Errorf("lookup by path returned different id: got %q, want %q", byPath.ID, id)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg, ctx := newTestRegistry(t)
	root := t.TempDir()

	if _, err := reg.Register(ctx, root, ""); err != nil {
		t.Fatal(err)
	}
	_, err := reg.Register(ctx, root, "")
	if !codeindexErrIs(err, codeindex.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestLookupNotFound(t *testing.T) {
	reg, ctx := newTestRegistry(t)
	_, err := reg.Lookup(ctx, "nonexistent")
	if !codeindexErrIs(err, codeindex.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStateAndDeregister(t *testing.T) {
	reg, ctx := newTestRegistry(t)
	root := t.TempDir()
	id, err := reg.Register(ctx, root, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := reg.UpdateState(ctx, id, StateUpdate{Commit: "abc123", Branch: "main", LastIndexedCommit: "abc123"}); err != nil {
		t.Fatal(err)
	}
	repo, err := reg.Lookup(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if repo.CurrentCommit != "abc123" || repo.CurrentBranch != "main" {
		t.Errorf("state not updated: %+v", repo)
	}

	if err := reg.Deregister(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Lookup(ctx, id); !codeindexErrIs(err, codeindex.ErrNotFound) {
		t.Errorf("expected ErrNotFound after deregister, got %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	reg, ctx := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		if _, err := reg.Register(ctx, t.TempDir(), ""); err != nil {
			t.Fatal(err)
		}
	}
	repos, err := reg.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 3 {
		t.Fatalf("got %d repos, want 3", len(repos))
	}
	for i := 1; i < len(repos); i++ {
		if repos[i-1].ID >= repos[i].ID {
			t.Errorf("list not sorted by id: %q >= %q", repos[i-1].ID, repos[i].ID)
		}
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := zlog.Test(context.Background(), t)
	opts := &Options{
		DocumentPath: filepath.Join(dir, "registry.json"),
		IndexRoot:    filepath.Join(dir, "index"),
	}
	reg1, err := New(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	id, err := reg1.Register(ctx, root, "")
	if err != nil {
		t.Fatal(err)
	}

	reg2, err := New(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	repo, err := reg2.Lookup(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if repo.Root != filepath.Clean(root) && repo.Root != root {
		t.Errorf("root mismatch after reopen: got %q", repo.Root)
	}
}

func codeindexErrIs(err error, kind codeindex.ErrorKind) bool {
	var ce *codeindex.Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
