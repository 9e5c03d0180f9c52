package syncmanager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/quay/zlog"

	"github.com/codeindex/codeindex/indexer"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/storage"
)

const indexFileName = "index.sqlite"

// fullIndex builds a brand-new database file against the target commit's
// full tree and atomically swaps it in for the repository's current
// snapshot: build fresh, then swap, so a reader never sees a half-built
// database.
func fullIndex(ctx context.Context, ctl *syncCtl) (State, error) {
	if err := os.MkdirAll(ctl.repo.IndexLocation, 0o755); err != nil {
		return Terminal, fmt.Errorf("syncmanager: prepare index location: %w", err)
	}

	buildPath := filepath.Join(ctl.repo.IndexLocation, indexFileName+".building")
	os.Remove(buildPath)

	gitRepo, err := git.PlainOpenWithOptions(ctl.repo.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Terminal, fmt.Errorf("syncmanager: open git repo: %w", err)
	}
	files, err := listTrackedFiles(gitRepo, ctl.target)
	if err != nil {
		return Terminal, fmt.Errorf("syncmanager: enumerate tracked files: %w", err)
	}

	store, err := storage.Open(ctx, buildPath)
	if err != nil {
		return Terminal, fmt.Errorf("syncmanager: open build store: %w", err)
	}

	ix := indexer.New(store, ctl.mgr.plugins, ctl.mgr.opts.Indexer)
	if err := ix.FullIndex(ctx, ctl.repo.ID, ctl.repo.Root, files, nil); err != nil {
		store.Close()
		os.Remove(buildPath)
		return Terminal, fmt.Errorf("syncmanager: full index: %w", err)
	}
	if err := store.Close(); err != nil {
		os.Remove(buildPath)
		return Terminal, fmt.Errorf("syncmanager: close build store: %w", err)
	}

	finalPath := filepath.Join(ctl.repo.IndexLocation, indexFileName)
	if err := os.Rename(buildPath, finalPath); err != nil {
		os.Remove(buildPath)
		return Terminal, fmt.Errorf("syncmanager: swap snapshot: %w", err)
	}

	if err := ctl.mgr.reg.UpdateState(ctx, ctl.repo.ID, registry.StateUpdate{
		Commit: ctl.target, Branch: ctl.repo.CurrentBranch, LastIndexedCommit: ctl.target,
	}); err != nil {
		return Terminal, fmt.Errorf("syncmanager: update registry: %w", err)
	}

	ctl.action = "full_index"
	zlog.Info(ctx).Int("files", len(files)).Msg("full index complete, snapshot swapped")
	return Terminal, nil
}

// listTrackedFiles walks commit's tree and returns every blob's
// repository-relative path.
func listTrackedFiles(repo *git.Repository, commit string) ([]string, error) {
	c, err := repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	walker := tree.Files()
	defer walker.Close()

	var out []string
	for {
		f, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, f.Name)
	}
	return out, nil
}
