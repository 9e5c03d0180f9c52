// Package changeset computes the added/modified/deleted/renamed file sets
// between two commits of a tracked repository, generalizing the teacher's
// per-layer coalescing concept (indexer/coalescer.go: merge many layers'
// file sets into one tree) to "diff two commit trees and classify every
// path that differs."
package changeset

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
)

// defaultMaxFileBytes mirrors the storage/indexer default; changeset
// classifies files above this size as binary-or-oversized.
const defaultMaxFileBytes = 10 << 20

// sniffWindow is how many leading bytes changeset reads to decide whether
// a blob looks binary (presence of a NUL byte), the same heuristic git
// itself uses.
const sniffWindow = 8000

// FileChange is one added or modified path. BinaryOrOversized marks a path
// that should be recorded as modified-skip: a files row is still written,
// with language set to codeindex.LanguageBinaryOrOversized and empty
// content in place of the actual bytes.
type FileChange struct {
	Path              string
	BinaryOrOversized bool
}

// hashedPath pairs a path with its blob hash, used to match deletes and
// adds into renames.
type hashedPath struct {
	path string
	hash plumbing.Hash
}

// Rename is one detected rename pair: content-identical (same blob hash)
// across a delete and an add. Go-git's tree diff doesn't report renames
// directly, so changeset infers them by matching deleted/added blob hashes
// after the tree diff — equivalent in effect to similarity-index-100%
// rename detection, and sufficient for apply_changes's "update the path
// without re-parsing when the content hash is unchanged" rule.
type Rename struct {
	From, To string
}

// ChangeSet is the four-way classification of paths that differ between
// two commits, plus the aggregate "is this worth doing incrementally"
// flag: change set size at most 20% of total tracked files, or 2000
// files, whichever is smaller.
type ChangeSet struct {
	Added      []FileChange
	Modified   []FileChange
	Deleted    []string
	Renamed    []Rename
	Worthwhile bool
}

// Options configures Detect.
type Options struct {
	// MaxFileBytes is the oversized-file threshold. Zero uses the 10 MiB
	// default.
	MaxFileBytes int64
}

// Detect opens the git repository at repoRoot and classifies every path
// that differs between oldCommit and newCommit. totalTracked is the
// repository's current tracked-file count, used to compute Worthwhile.
// Detect is deterministic and repeatable for the same commit pair.
func Detect(ctx context.Context, repoRoot, oldCommit, newCommit string, totalTracked int, opts *Options) (ChangeSet, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxFileBytes
	}

	repo, err := git.PlainOpenWithOptions(repoRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ChangeSet{}, &codeindex.Error{Op: "changeset.Detect", Kind: codeindex.ErrInvalid, Inner: err, Message: repoRoot}
	}

	oldTree, err := treeAt(repo, oldCommit)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("changeset: resolve old commit %s: %w", oldCommit, err)
	}
	newTree, err := treeAt(repo, newCommit)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("changeset: resolve new commit %s: %w", newCommit, err)
	}

	changes, err := oldTree.Diff(newTree)
	if err != nil {
		return ChangeSet{}, &codeindex.Error{Op: "changeset.Detect", Kind: codeindex.ErrTransient, Inner: err, Message: "diff trees"}
	}

	var cs ChangeSet
	var deletedHashes, addedHashes []hashedPath

	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			return ChangeSet{}, fmt.Errorf("changeset: classify change: %w", err)
		}
		from, to, err := c.Files()
		if err != nil {
			return ChangeSet{}, fmt.Errorf("changeset: load change files: %w", err)
		}

		switch action.String() {
		case "Insert":
			fc, err := classify(to, maxBytes)
			if err != nil {
				return ChangeSet{}, err
			}
			cs.Added = append(cs.Added, fc)
			addedHashes = append(addedHashes, hashedPath{path: fc.Path, hash: to.Hash})
		case "Delete":
			cs.Deleted = append(cs.Deleted, from.Name)
			deletedHashes = append(deletedHashes, hashedPath{path: from.Name, hash: from.Hash})
		case "Modify":
			fc, err := classify(to, maxBytes)
			if err != nil {
				return ChangeSet{}, err
			}
			cs.Modified = append(cs.Modified, fc)
		default:
			zlog.Warn(ctx).Str("action", action.String()).Msg("changeset: unrecognized diff action, treating as modify")
			fc, err := classify(to, maxBytes)
			if err != nil {
				return ChangeSet{}, err
			}
			cs.Modified = append(cs.Modified, fc)
		}
	}

	cs.Renamed, cs.Added, cs.Deleted = matchRenames(addedHashes, deletedHashes, cs.Added, cs.Deleted)

	total := len(cs.Added) + len(cs.Modified) + len(cs.Deleted) + len(cs.Renamed)
	threshold := totalTracked * 20 / 100
	if threshold > 2000 {
		threshold = 2000
	}
	cs.Worthwhile = total <= threshold

	zlog.Debug(ctx).Str("component", "changeset").
		Int("added", len(cs.Added)).Int("modified", len(cs.Modified)).
		Int("deleted", len(cs.Deleted)).Int("renamed", len(cs.Renamed)).
		Bool("worthwhile", cs.Worthwhile).Msg("change set computed")
	return cs, nil
}

func treeAt(repo *git.Repository, commit string) (*object.Tree, error) {
	h := plumbing.NewHash(commit)
	c, err := repo.CommitObject(h)
	if err != nil {
		return nil, err
	}
	return c.Tree()
}

// classify decides whether f should be treated as binary-or-oversized:
// files over maxBytes, or files that sniff as binary, are recorded as
// modified-skip rather than fully read.
func classify(f *object.File, maxBytes int64) (FileChange, error) {
	fc := FileChange{Path: f.Name}
	if f.Size > maxBytes {
		fc.BinaryOrOversized = true
		return fc, nil
	}
	bin, err := sniffBinary(f)
	if err != nil {
		return FileChange{}, fmt.Errorf("changeset: sniff %s: %w", f.Name, err)
	}
	fc.BinaryOrOversized = bin
	return fc, nil
}

func sniffBinary(f *object.File) (bool, error) {
	r, err := f.Reader()
	if err != nil {
		return false, err
	}
	defer r.Close()
	buf := make([]byte, sniffWindow)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) != -1, nil
}

// matchRenames pairs deleted and added paths that share an identical blob
// hash, removing the matched entries from added/deleted and returning
// them as Renamed instead.
func matchRenames(added, deleted []hashedPath, addedFC []FileChange, deletedPaths []string) ([]Rename, []FileChange, []string) {
	byHash := make(map[plumbing.Hash]string, len(deleted))
	for _, d := range deleted {
		byHash[d.hash] = d.path
	}

	var renames []Rename
	matchedAdded := make(map[string]bool)
	matchedDeleted := make(map[string]bool)
	for _, a := range added {
		from, ok := byHash[a.hash]
		if !ok || matchedDeleted[from] {
			continue
		}
		renames = append(renames, Rename{From: from, To: a.path})
		matchedAdded[a.path] = true
		matchedDeleted[from] = true
	}

	remainingAdded := addedFC[:0:0]
	for _, fc := range addedFC {
		if !matchedAdded[fc.Path] {
			remainingAdded = append(remainingAdded, fc)
		}
	}
	remainingDeleted := deletedPaths[:0:0]
	for _, p := range deletedPaths {
		if !matchedDeleted[p] {
			remainingDeleted = append(remainingDeleted, p)
		}
	}
	return renames, remainingAdded, remainingDeleted
}
