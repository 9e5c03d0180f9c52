package syncmanager

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"go.uber.org/mock/gomock"

	"github.com/codeindex/codeindex/plugin"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
)

// TestSyncRestoreArtifactFetchError exercises the restore_artifact branch
// of checkRepo's decision: when the artifact store reports one exists for
// the target commit, Sync tries to restore it rather than falling
// through to incremental or full. A store whose Fetch always fails makes
// that attempt fail too, which should surface as a Sync error rather than
// a silent fallback to a full index.
func TestSyncRestoreArtifactFetchError(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "f.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	commitAll(t, root, "initial")

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
		{Name: "text", New: func(context.Context) (plugin.Plugin, error) { return fallbackPlugin{}, nil }},
	}, &pluginmgr.Options{})
	if err != nil {
		t.Fatal(err)
	}

	ctrl := gomock.NewController(t)
	artifacts := NewMockArtifactStore(ctrl)
	artifacts.EXPECT().Has(gomock.Any(), repoID, gomock.Any()).Return(true, nil)
	artifacts.EXPECT().Fetch(gomock.Any(), repoID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, io.Writer) error {
			return errors.New("artifact fetch: connection reset")
		})

	mgr := New(reg, plugins, artifacts, Options{RestoreRetries: 1})
	if _, err := mgr.Sync(ctx, repoID); err == nil {
		t.Fatal("expected Sync to fail when the artifact store's Fetch always errors")
	}
}
