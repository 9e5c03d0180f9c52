package syncmanager

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/quay/zlog"

	"github.com/codeindex/codeindex/changeset"
	"github.com/codeindex/codeindex/storage"
)

// checkRepo resolves the repository's current VCS head and picks one of
// the three sync actions:
//
//  1. restore from artifact, if one exists for the target commit and the
//     local index is absent or older;
//  2. incremental, if a last-indexed commit exists, the change set is
//     small enough to be worthwhile, and the local store opens cleanly
//     (a storage.Open error here means a schema migration is pending, so
//     incremental is skipped in favor of a full rebuild);
//  3. full, otherwise.
func checkRepo(ctx context.Context, ctl *syncCtl) (State, error) {
	head, err := HeadCommit(ctl.repo.Root)
	if err != nil {
		return Terminal, fmt.Errorf("syncmanager: resolve head: %w", err)
	}
	ctl.target = head

	if head == ctl.repo.LastIndexedCommit {
		ctl.action = "noop"
		zlog.Debug(ctx).Msg("already at target commit")
		return Terminal, nil
	}

	if ctl.mgr.artifacts != nil {
		has, err := ctl.mgr.artifacts.Has(ctx, ctl.repo.ID, head)
		switch {
		case err != nil:
			zlog.Warn(ctx).Err(err).Msg("artifact store unavailable; falling back")
		case has:
			return RestoreArtifact, nil
		}
	}

	if ctl.repo.LastIndexedCommit != "" {
		if cs, ok := worthwhileChangeSet(ctx, ctl); ok {
			ctl.cs = cs
			return ApplyChanges, nil
		}
	}
	return FullIndex, nil
}

// worthwhileChangeSet opens the existing store (if it opens cleanly, i.e.
// no migration is pending) and computes the change set between the last
// indexed commit and the target, reporting whether it clears the
// incremental-worthwhile threshold.
func worthwhileChangeSet(ctx context.Context, ctl *syncCtl) (changeset.ChangeSet, bool) {
	store, err := storage.OpenInRoot(ctx, ctl.repo.IndexLocation)
	if err != nil {
		zlog.Debug(ctx).Err(err).Msg("store does not open cleanly; skipping incremental")
		return changeset.ChangeSet{}, false
	}
	defer store.Close()

	stats, err := store.Stats(ctx, ctl.repo.ID)
	if err != nil {
		return changeset.ChangeSet{}, false
	}

	cs, err := changeset.Detect(ctx, ctl.repo.Root, ctl.repo.LastIndexedCommit, ctl.target, int(stats.FileCount), nil)
	if err != nil {
		zlog.Debug(ctx).Err(err).Msg("change set detection failed; falling back to full index")
		return changeset.ChangeSet{}, false
	}
	return cs, cs.Worthwhile
}

// HeadCommit resolves the hash of root's current VCS head. Exported so the
// watcher package can poll for commit advances without duplicating the
// go-git open-and-resolve logic.
func HeadCommit(root string) (string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}
