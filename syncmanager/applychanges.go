package syncmanager

import (
	"context"
	"fmt"

	"github.com/quay/zlog"

	"github.com/codeindex/codeindex/indexer"
	"github.com/codeindex/codeindex/registry"
	"github.com/codeindex/codeindex/storage"
)

// applyChanges runs the incremental indexer over the change set checkRepo
// already computed and deemed worthwhile.
func applyChanges(ctx context.Context, ctl *syncCtl) (State, error) {
	store, err := storage.OpenInRoot(ctx, ctl.repo.IndexLocation)
	if err != nil {
		return Terminal, fmt.Errorf("syncmanager: open store: %w", err)
	}
	defer store.Close()

	ix := indexer.New(store, ctl.mgr.plugins, ctl.mgr.opts.Indexer)
	if err := ix.ApplyChanges(ctx, ctl.repo.ID, ctl.repo.Root, ctl.cs); err != nil {
		return Terminal, fmt.Errorf("syncmanager: apply changes: %w", err)
	}

	if err := ctl.mgr.reg.UpdateState(ctx, ctl.repo.ID, registry.StateUpdate{
		Commit: ctl.target, Branch: ctl.repo.CurrentBranch, LastIndexedCommit: ctl.target,
	}); err != nil {
		return Terminal, fmt.Errorf("syncmanager: update registry: %w", err)
	}

	ctl.action = "apply_changes"
	zlog.Info(ctx).
		Int("added", len(ctl.cs.Added)).Int("modified", len(ctl.cs.Modified)).
		Int("deleted", len(ctl.cs.Deleted)).Int("renamed", len(ctl.cs.Renamed)).
		Msg("incremental apply complete")
	return Terminal, nil
}
