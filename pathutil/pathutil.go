// Package pathutil canonicalizes and translates file paths between working
// tree, container mount, and index-internal form.
//
// Everything stored in the index is repository-relative and forward-slash
// normalized; everything accepted on an interface boundary is canonicalized
// first. This package owns both directions.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeindex/codeindex"
)

// ErrPathOutsideRepo is returned by RepoRelative when the canonicalized
// input does not lie under the registered root.
var ErrPathOutsideRepo = errors.New("pathutil: path outside repository root")

// Target names the direction of Translate.
type Target int

const (
	// WorkingTree translates a path into its working-tree form.
	WorkingTree Target = iota
	// IndexInternal translates a path into its index-internal
	// (container-mount) form.
	IndexInternal
)

// PrefixPair is one known container-mount/working-tree equivalence, e.g.
// {Mount: "/workspace", WorkingTree: "/home/user/proj"}. Resolver prefers
// exact (longest) prefix matches over heuristic ones; pairs are tried in
// the order supplied to NewResolver, longest Mount first.
type PrefixPair struct {
	Mount       string
	WorkingTree string
}

// Resolver canonicalizes and translates paths for one process. It holds no
// mutable state beyond its configured prefix table, so it is safe for
// concurrent use without locking.
type Resolver struct {
	prefixes []PrefixPair
}

// NewResolver builds a Resolver from a set of known mount/working-tree
// prefix pairs. Pairs are sorted longest-mount-first so exact matches win
// over shorter heuristic ones.
func NewResolver(pairs []PrefixPair) *Resolver {
	sorted := make([]PrefixPair, len(pairs))
	copy(sorted, pairs)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j].Mount) > len(sorted[j-1].Mount); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return &Resolver{prefixes: sorted}
}

// Canonicalize resolves symlinks and removes redundant segments from raw.
// It never fails on a path that merely doesn't exist yet (symlink
// resolution is best-effort): if the full path can't be resolved (e.g. it
// doesn't exist), it falls back to lexical cleaning of as much of the path
// as does exist, then appends the remainder.
func Canonicalize(raw string) (string, error) {
	raw = filepath.Clean(raw)
	if resolved, err := filepath.EvalSymlinks(raw); err == nil {
		return filepath.ToSlash(resolved), nil
	}

	// Walk up until we find a prefix that exists, resolve that, then
	// reattach the rest lexically cleaned.
	dir := raw
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		full := filepath.Join(append([]string{resolved}, tail...)...)
		return filepath.ToSlash(full), nil
	}
	return filepath.ToSlash(raw), nil
}

// Translate rewrites path to the equivalent form under target, using the
// resolver's configured prefix table. Translation is idempotent: calling
// it twice with the same target is a no-op the second time. A path that
// matches no known prefix pair is returned unchanged.
func (r *Resolver) Translate(path string, target Target) string {
	path = filepath.ToSlash(path)
	for _, pair := range r.prefixes {
		mount := filepath.ToSlash(pair.Mount)
		tree := filepath.ToSlash(pair.WorkingTree)
		switch target {
		case WorkingTree:
			if rest, ok := cutPrefix(path, mount); ok {
				return joinSlash(tree, rest)
			}
		case IndexInternal:
			if rest, ok := cutPrefix(path, tree); ok {
				return joinSlash(mount, rest)
			}
		}
	}
	return path
}

// RepoRelative canonicalizes path and expresses it relative to root. It
// returns ErrPathOutsideRepo if the canonicalized path does not lie under
// root. The result is forward-slash normalized and case-preserving, never
// absolute, never containing ".." segments.
func RepoRelative(root, path string) (string, error) {
	cRoot, err := Canonicalize(root)
	if err != nil {
		return "", fmt.Errorf("pathutil: canonicalize root: %w", err)
	}
	cPath, err := Canonicalize(path)
	if err != nil {
		return "", fmt.Errorf("pathutil: canonicalize path: %w", err)
	}
	if !IsWithin(cRoot, cPath) {
		return "", &codeindex.Error{Op: "pathutil.RepoRelative", Kind: codeindex.ErrInvalid, Inner: ErrPathOutsideRepo, Message: path}
	}
	rel, err := filepath.Rel(cRoot, cPath)
	if err != nil {
		return "", &codeindex.Error{Op: "pathutil.RepoRelative", Kind: codeindex.ErrInvalid, Inner: ErrPathOutsideRepo, Message: path}
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

// IsWithin reports whether path (already canonicalized) lies at or under
// root (already canonicalized).
func IsWithin(root, path string) bool {
	root = strings.TrimSuffix(filepath.ToSlash(root), "/")
	path = filepath.ToSlash(path)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+"/")
}

func cutPrefix(path, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/")
	if path == prefix {
		return "", true
	}
	if strings.HasPrefix(path, prefix+"/") {
		return strings.TrimPrefix(path, prefix+"/"), true
	}
	return "", false
}

func joinSlash(base, rest string) string {
	if rest == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + rest
}

// TranslationTable is a named, config-loadable wrapper around a set of
// PrefixPair rules, for the common case of one registry-wide table shared
// across every Resolver the process constructs.
type TranslationTable struct {
	Rules []PrefixPair `json:"path_translation_rules"`
}

// Resolver builds a Resolver from the table's rules.
func (t TranslationTable) Resolver() *Resolver {
	return NewResolver(t.Rules)
}

// CaseSensitivity describes whether a working tree's filesystem
// distinguishes path case, detected once per registered root.
type CaseSensitivity int

const (
	CaseSensitivityUnknown CaseSensitivity = iota
	CaseSensitive
	CaseInsensitive
)

// DetectCaseSensitivity probes root's filesystem by writing a marker file
// and checking whether an upper-cased variant of its name resolves to the
// same inode. The probe file is removed before returning.
func DetectCaseSensitivity(root string) (CaseSensitivity, error) {
	probe := filepath.Join(root, ".codeindex-case-probe")
	upper := filepath.Join(root, ".CODEINDEX-CASE-PROBE")

	if err := os.WriteFile(probe, []byte("x"), 0o644); err != nil {
		return CaseSensitivityUnknown, fmt.Errorf("pathutil: case probe: %w", err)
	}
	defer os.Remove(probe)

	lowerInfo, err := os.Stat(probe)
	if err != nil {
		return CaseSensitivityUnknown, fmt.Errorf("pathutil: case probe: %w", err)
	}
	upperInfo, err := os.Stat(upper)
	if err != nil {
		return CaseSensitive, nil
	}
	if os.SameFile(lowerInfo, upperInfo) {
		return CaseInsensitive, nil
	}
	return CaseSensitive, nil
}
