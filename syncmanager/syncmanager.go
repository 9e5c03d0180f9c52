// Package syncmanager is the Git-aware index manager: given a sync request
// for a registered repository, it decides whether to restore a prebuilt
// artifact, apply an incremental change set, or rebuild from scratch, and
// carries out whichever it picks.
//
// The decision and the state transitions that carry it out are modeled as
// an FSM, grounded on the teacher's indexer/controller.Controller.
package syncmanager

import (
	"context"
	"fmt"
	"io"

	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/changeset"
	"github.com/codeindex/codeindex/indexer"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/registry"
)

const defaultRestoreRetries = 5

// ArtifactStore is the optional, external source of prebuilt index
// snapshots for a given repository and commit, e.g. a CI-populated object
// store or the Postgres-backed catalog behind storage.PostgresMirror. A
// Manager with no ArtifactStore configured always chooses between
// incremental and full.
type ArtifactStore interface {
	// Has reports whether an artifact exists for repoID at commit.
	Has(ctx context.Context, repoID, commit string) (bool, error)
	// Fetch streams the artifact's database file contents to w.
	Fetch(ctx context.Context, repoID, commit string, w io.Writer) error
}

// Options configures a Manager.
type Options struct {
	// Indexer is passed through to every indexer.Indexer this Manager
	// constructs for a full or incremental pass.
	Indexer indexer.Options
	// RestoreRetries bounds RestoreArtifact's fetch retry loop. Zero
	// selects 5.
	RestoreRetries int
}

func (o Options) restoreRetries() int {
	if o.RestoreRetries <= 0 {
		return defaultRestoreRetries
	}
	return o.RestoreRetries
}

// Manager carries out sync decisions for every repository in reg.
type Manager struct {
	reg       *registry.Registry
	plugins   *pluginmgr.Manager
	artifacts ArtifactStore
	opts      Options
}

// New builds a Manager. artifacts may be nil to disable the
// restore-from-artifact path entirely.
func New(reg *registry.Registry, plugins *pluginmgr.Manager, artifacts ArtifactStore, opts Options) *Manager {
	return &Manager{reg: reg, plugins: plugins, artifacts: artifacts, opts: opts}
}

// Result reports what a Sync call did.
type Result struct {
	RepoID string
	// Action is one of "noop", "restore_artifact", "apply_changes", or
	// "full_index".
	Action string
	Commit string
}

// syncCtl carries the in-flight state for one Sync call across the FSM's
// stateFuncs, mirroring the teacher's Controller struct.
type syncCtl struct {
	mgr    *Manager
	repo   codeindex.Repository
	target string
	cs     changeset.ChangeSet
	action string
}

// Sync resolves repoID's current VCS head, decides the appropriate action,
// carries it out, and updates the registry on success.
func (m *Manager) Sync(ctx context.Context, repoID string) (Result, error) {
	repo, err := m.reg.Lookup(ctx, repoID)
	if err != nil {
		return Result{}, err
	}
	ctx = zlog.ContextWithValues(ctx, "component", "syncmanager.Sync", "repo_id", repoID)
	zlog.Info(ctx).Msg("sync start")

	ctl := &syncCtl{mgr: m, repo: repo}
	state := CheckRepo
	for state != Terminal {
		fn, ok := stateToStateFunc[state]
		if !ok {
			return Result{}, fmt.Errorf("syncmanager: unknown state %s", state)
		}
		sctx := zlog.ContextWithValues(ctx, "state", state.String())
		next, err := fn(sctx, ctl)
		if err != nil {
			zlog.Error(sctx).Err(err).Msg("sync failed")
			return Result{}, err
		}
		state = next
	}

	zlog.Info(ctx).Str("action", ctl.action).Str("commit", ctl.target).Msg("sync done")
	return Result{RepoID: repoID, Action: ctl.action, Commit: ctl.target}, nil
}
