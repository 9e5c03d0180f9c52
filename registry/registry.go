// Package registry is the single source of truth mapping a repository id to
// its working-tree path, current VCS state, and index location.
//
// The registry owns no index data itself; it holds pointers and metadata,
// persisted as a single JSON document written by rename-over-temp for
// atomicity, arbitrated across processes by an advisory file lock held only
// during read-modify-write.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/locksource"
	"github.com/codeindex/codeindex/pathutil"
)

const lockKey = "registry-document"

// document is the on-disk shape of the registry's JSON document.
type document struct {
	Version int                           `json:"version"`
	Repos   map[string]codeindex.Repository `json:"repos"`
}

// Options configures a Registry.
type Options struct {
	// DocumentPath is the well-known user-scoped location of the registry
	// document, e.g. "$XDG_STATE_HOME/codeindex/registry.json".
	DocumentPath string
	// IndexRoot is the central storage root under which per-repo index
	// locations are created.
	IndexRoot string
	// Locker arbitrates concurrent writers to DocumentPath. If nil, a
	// locksource.FileLock rooted next to DocumentPath is constructed.
	Locker locksource.ContextLock
}

// Registry is the persistent map from repository identity to working-tree
// path, current commit, branch, and index location.
type Registry struct {
	opts *Options

	// mu serializes in-process access; Locker arbitrates across processes.
	// Both are held for the duration of a read-modify-write.
	mu sync.Mutex
}

// New constructs a Registry from opts. The document file is not required to
// exist yet; it is created on first write.
func New(ctx context.Context, opts *Options) (*Registry, error) {
	if opts.DocumentPath == "" {
		return nil, &codeindex.Error{Op: "registry.New", Kind: codeindex.ErrInvalid, Message: "DocumentPath is required"}
	}
	if opts.IndexRoot == "" {
		return nil, &codeindex.Error{Op: "registry.New", Kind: codeindex.ErrInvalid, Message: "IndexRoot is required"}
	}
	if err := os.MkdirAll(filepath.Dir(opts.DocumentPath), 0o755); err != nil {
		return nil, fmt.Errorf("registry: prepare document directory: %w", err)
	}
	if opts.Locker == nil {
		fl, err := locksource.NewFileLock(filepath.Join(filepath.Dir(opts.DocumentPath), "locks"))
		if err != nil {
			return nil, err
		}
		opts.Locker = fl
	}
	zlog.Debug(ctx).Str("path", opts.DocumentPath).Msg("registry opened")
	return &Registry{opts: opts}, nil
}

// Register adds path as a tracked working tree and returns its repo_id. If
// path is already registered, returns codeindex.ErrConflict.
func (r *Registry) Register(ctx context.Context, path, remoteURL string) (string, error) {
	root, err := pathutil.Canonicalize(path)
	if err != nil {
		return "", fmt.Errorf("registry: canonicalize path: %w", err)
	}
	id := IdentityFor(root, remoteURL)

	var created codeindex.Repository
	err = r.readModifyWrite(ctx, func(doc *document) error {
		for _, existing := range doc.Repos {
			if existing.Root == root {
				return &codeindex.Error{Op: "registry.Register", Kind: codeindex.ErrConflict, Message: "already registered: " + root}
			}
		}
		now := time.Now().UTC()
		created = codeindex.Repository{
			ID:            id,
			Root:          root,
			RemoteURL:     remoteURL,
			IndexLocation: filepath.Join(r.opts.IndexRoot, id),
			AutoSync:      true,
			CreatedAt:     now,
			LastUpdatedAt: now,
		}
		doc.Repos[id] = created
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(created.IndexLocation, 0o755); err != nil {
		return "", fmt.Errorf("registry: prepare index location: %w", err)
	}
	return id, nil
}

// Lookup resolves repoIDOrPath to its Repository record, trying it first as
// a repo_id and, failing that, as a canonicalized working-tree path.
func (r *Registry) Lookup(ctx context.Context, repoIDOrPath string) (codeindex.Repository, error) {
	doc, err := r.read(ctx)
	if err != nil {
		return codeindex.Repository{}, err
	}
	if repo, ok := doc.Repos[repoIDOrPath]; ok {
		return repo, nil
	}
	if root, err := pathutil.Canonicalize(repoIDOrPath); err == nil {
		for _, repo := range doc.Repos {
			if repo.Root == root {
				return repo, nil
			}
		}
	}
	return codeindex.Repository{}, &codeindex.Error{Op: "registry.Lookup", Kind: codeindex.ErrNotFound, Message: repoIDOrPath}
}

// List returns every registered Repository, ordered by repo_id for
// deterministic iteration.
func (r *Registry) List(ctx context.Context) ([]codeindex.Repository, error) {
	doc, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]codeindex.Repository, 0, len(doc.Repos))
	for _, repo := range doc.Repos {
		out = append(out, repo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// StateUpdate carries the fields UpdateState is allowed to change.
type StateUpdate struct {
	Commit            string
	Branch            string
	LastIndexedCommit string
}

// UpdateState records the VCS state and last-indexed commit observed for
// repoID after a successful sync or indexing pass.
func (r *Registry) UpdateState(ctx context.Context, repoID string, upd StateUpdate) error {
	return r.readModifyWrite(ctx, func(doc *document) error {
		repo, ok := doc.Repos[repoID]
		if !ok {
			return &codeindex.Error{Op: "registry.UpdateState", Kind: codeindex.ErrNotFound, Message: repoID}
		}
		repo.CurrentCommit = upd.Commit
		repo.CurrentBranch = upd.Branch
		repo.LastIndexedCommit = upd.LastIndexedCommit
		repo.LastUpdatedAt = time.Now().UTC()
		doc.Repos[repoID] = repo
		return nil
	})
}

// Deregister removes repoID from the registry. It does not delete the
// index at the repository's IndexLocation.
func (r *Registry) Deregister(ctx context.Context, repoID string) error {
	return r.readModifyWrite(ctx, func(doc *document) error {
		if _, ok := doc.Repos[repoID]; !ok {
			return &codeindex.Error{Op: "registry.Deregister", Kind: codeindex.ErrNotFound, Message: repoID}
		}
		delete(doc.Repos, repoID)
		return nil
	})
}

// IdentityFor derives a repository id: a short hex fingerprint of the
// remote URL when one is given, else of the canonicalized root path. Two
// working trees of the same remote therefore share an id only if callers
// pass the same remoteURL; codeindex never infers shared identity across
// clones on its own.
func IdentityFor(root, remoteURL string) string {
	sum := sha256.Sum256([]byte(identitySource(root, remoteURL)))
	return hex.EncodeToString(sum[:])[:16]
}

func identitySource(root, remoteURL string) string {
	if remoteURL != "" {
		return "remote:" + remoteURL
	}
	return "path:" + root
}

func (r *Registry) read(ctx context.Context) (*document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// readModifyWrite acquires both the in-process and cross-process locks,
// reads the current document (tolerating a missing file), lets fn mutate
// it, and writes the result back atomically. fn's error, if any, is
// returned without writing.
func (r *Registry) readModifyWrite(ctx context.Context, fn func(*document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lctx, unlock := r.opts.Locker.Lock(ctx, lockKey)
	defer unlock()
	if err := lctx.Err(); err != nil {
		return fmt.Errorf("registry: acquire lock: %w", err)
	}

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return r.save(doc)
}

func (r *Registry) load(ctx context.Context) (*document, error) {
	b, err := os.ReadFile(r.opts.DocumentPath)
	switch {
	case os.IsNotExist(err):
		return &document{Version: 1, Repos: make(map[string]codeindex.Repository)}, nil
	case err != nil:
		return nil, fmt.Errorf("registry: read document: %w", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		if repairErr := r.preserveCorrupt(ctx, b); repairErr != nil {
			zlog.Warn(ctx).Err(repairErr).Msg("failed preserving corrupt registry document")
		}
		return nil, &codeindex.Error{Op: "registry.load", Kind: codeindex.ErrCorrupt, Inner: err, Message: r.opts.DocumentPath}
	}
	if doc.Repos == nil {
		doc.Repos = make(map[string]codeindex.Repository)
	}
	return &doc, nil
}

// preserveCorrupt copies the unreadable document alongside itself, under a
// timestamped ".corrupt." name, so an operator can inspect it. It writes no
// repaired copy: the original stays in place and load reports ErrCorrupt.
func (r *Registry) preserveCorrupt(_ context.Context, b []byte) error {
	dest := r.opts.DocumentPath + ".corrupt." + time.Now().UTC().Format("20060102T150405Z")
	return os.WriteFile(dest, b, 0o644)
}

func (r *Registry) save(doc *document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal document: %w", err)
	}
	dir := filepath.Dir(r.opts.DocumentPath)
	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("registry: create temp document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("registry: write temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: close temp document: %w", err)
	}
	if err := os.Rename(tmpName, r.opts.DocumentPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: rename temp document: %w", err)
	}
	return nil
}
