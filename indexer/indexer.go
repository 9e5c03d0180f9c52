// Package indexer applies a repository's tracked files (or a change set
// between two commits) to the storage engine: hash, select a plugin,
// extract structure, and write the file/symbol/reference/full-text rows
// in one transaction per file. Fan-out is an errgroup bounded by a
// semaphore.Weighted worker pool, grounded on the teacher's
// indexer/controller/layerindexer.go.
package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/changeset"
	"github.com/codeindex/codeindex/pluginmgr"
	"github.com/codeindex/codeindex/storage"
)

// Progress reports full_index advancement at fixed intervals.
type Progress struct {
	Done  int
	Total int
	Rate  float64 // files/sec since the previous report
	ETA   time.Duration
}

// ProgressFunc receives periodic Progress reports. It must return quickly;
// FullIndex calls it from its own goroutine, never concurrently.
type ProgressFunc func(Progress)

// Indexer turns file content into stored rows for one repository's Store.
type Indexer struct {
	store   *storage.Store
	plugins *pluginmgr.Manager
	opts    Options
}

// New builds an Indexer writing into store, using plugins to extract
// structure. opts is defaulted in place.
func New(store *storage.Store, plugins *pluginmgr.Manager, opts Options) *Indexer {
	opts.setDefaults(runtime.NumCPU())
	return &Indexer{store: store, plugins: plugins, opts: opts}
}

// FullIndex enumerates files (repository-relative paths under root) and
// indexes every one of them across a bounded worker pool, reporting
// progress via report (which may be nil).
func (ix *Indexer) FullIndex(ctx context.Context, repoID, root string, files []string, report ProgressFunc) error {
	ctx = zlog.ContextWithValues(ctx, "component", "indexer.FullIndex", "repo_id", repoID)
	zlog.Info(ctx).Int("files", len(files)).Msg("full index start")

	var done int64
	total := len(files)
	ticker := ix.startProgress(ctx, report, &done, total)
	defer ticker.Stop()

	sem := semaphore.NewWeighted(int64(ix.opts.WorkerCount))
	eg, egctx := errgroup.WithContext(ctx)

	for i := 0; i < len(files); i += ix.opts.BatchSize {
		end := i + ix.opts.BatchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[i:end]
		eg.Go(func() error {
			if err := sem.Acquire(egctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			for _, rel := range batch {
				if err := ix.indexFile(egctx, repoID, root, rel, ""); err != nil {
					zlog.Error(egctx).Err(err).Str("path", rel).Msg("index file failed")
					return fmt.Errorf("indexer: index %s: %w", rel, err)
				}
				atomic.AddInt64(&done, 1)
			}
			return nil
		})
	}

	err := eg.Wait()
	if report != nil {
		report(Progress{Done: int(atomic.LoadInt64(&done)), Total: total})
	}
	if err != nil {
		return err
	}
	zlog.Info(ctx).Int("files", total).Msg("full index done")
	return nil
}

func (ix *Indexer) startProgress(ctx context.Context, report ProgressFunc, done *int64, total int) *time.Ticker {
	t := time.NewTicker(ix.opts.ProgressInterval)
	if report == nil {
		return t
	}
	start := time.Now()
	go func() {
		for range t.C {
			d := int(atomic.LoadInt64(done))
			elapsed := time.Since(start).Seconds()
			var rate float64
			if elapsed > 0 {
				rate = float64(d) / elapsed
			}
			var eta time.Duration
			if rate > 0 {
				eta = time.Duration(float64(total-d)/rate) * time.Second
			}
			report(Progress{Done: d, Total: total, Rate: rate, ETA: eta})
		}
	}()
	return t
}

// ApplyChanges applies cs to repoID's store in one logical unit: added
// files are indexed like full_index, modified files are replaced,
// deleted files removed, and renames either re-pathed in place (content
// hash unchanged) or treated as a delete+add (content changed).
func (ix *Indexer) ApplyChanges(ctx context.Context, repoID, root string, cs changeset.ChangeSet) error {
	ctx = zlog.ContextWithValues(ctx, "component", "indexer.ApplyChanges", "repo_id", repoID)
	zlog.Info(ctx).
		Int("added", len(cs.Added)).Int("modified", len(cs.Modified)).
		Int("deleted", len(cs.Deleted)).Int("renamed", len(cs.Renamed)).
		Msg("apply changes start")

	for _, fc := range cs.Added {
		if err := ix.indexFile(ctx, repoID, root, fc.Path, ""); err != nil {
			return fmt.Errorf("indexer: apply added %s: %w", fc.Path, err)
		}
	}
	for _, fc := range cs.Modified {
		if err := ix.indexFile(ctx, repoID, root, fc.Path, ""); err != nil {
			return fmt.Errorf("indexer: apply modified %s: %w", fc.Path, err)
		}
	}
	for _, rel := range cs.Deleted {
		if err := ix.deletePath(ctx, repoID, rel); err != nil {
			return fmt.Errorf("indexer: apply deleted %s: %w", rel, err)
		}
	}
	for _, r := range cs.Renamed {
		if err := ix.applyRename(ctx, repoID, root, r); err != nil {
			return fmt.Errorf("indexer: apply rename %s -> %s: %w", r.From, r.To, err)
		}
	}

	zlog.Info(ctx).Msg("apply changes done")
	return nil
}

// applyRename re-paths a file in place when its content hash is
// unchanged (the common case go-git rename detection already establishes
// since changeset only pairs identical-content blobs); callers that need
// to handle a rename with changed content (a similarity-based, not
// identity-based, detector) should route it through indexFile/deletePath
// directly instead.
func (ix *Indexer) applyRename(ctx context.Context, repoID, root string, r changeset.Rename) error {
	rec, err := ix.store.FileByPath(ctx, repoID, r.From)
	if err != nil {
		// Not previously tracked: treat as a fresh add.
		return ix.indexFile(ctx, repoID, root, r.To, "")
	}

	txn, err := ix.store.BeginTxn(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	abs := filepath.Join(root, filepath.FromSlash(r.To))
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat renamed path: %w", err)
	}
	if _, err := txn.PutFile(ctx, repoID, r.To, rec.Language, rec.ContentHash, info.ModTime(), rec.Size); err != nil {
		return err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read renamed path: %w", err)
	}
	content, err := decodeContent(raw)
	if err != nil {
		return err
	}
	if err := txn.PutFulltext(ctx, rec.ID, r.To, filepath.Base(r.To), content, rec.Language); err != nil {
		return err
	}
	if err := ix.deletePathTxn(ctx, txn, repoID, r.From, rec.ID); err != nil {
		return err
	}
	return txn.Commit()
}

func (ix *Indexer) deletePath(ctx context.Context, repoID, relPath string) error {
	rec, err := ix.store.FileByPath(ctx, repoID, relPath)
	if err != nil {
		return nil // already gone; delete is idempotent.
	}
	txn, err := ix.store.BeginTxn(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback()
	if err := txn.DeleteFile(ctx, rec.ID); err != nil {
		return err
	}
	return txn.Commit()
}

func (ix *Indexer) deletePathTxn(ctx context.Context, txn *storage.Txn, repoID, relPath string, skipFileID int64) error {
	rec, err := ix.store.FileByPath(ctx, repoID, relPath)
	if err != nil {
		return nil
	}
	if rec.ID == skipFileID {
		return nil
	}
	return txn.DeleteFile(ctx, rec.ID)
}

// indexFile hashes, selects a plugin, extracts structure (falling back to
// full-text-only if the plugin panics or errors), and writes
// file/symbols/references/full-text in one transaction.
// priorityLanguage hints the plugin manager; empty uses the indexer's own
// configured default.
func (ix *Indexer) indexFile(ctx context.Context, repoID, root, relPath, priorityLanguage string) error {
	if priorityLanguage == "" {
		priorityLanguage = ix.opts.PriorityLanguage
	}
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}

	if info.Size() > ix.opts.MaxFileBytes {
		return ix.writeOversized(ctx, repoID, relPath, info)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}
	sum := sha256.Sum256(raw)
	hash, err := codeindex.NewDigest(codeindex.SHA256, sum[:])
	if err != nil {
		return fmt.Errorf("digest %s: %w", relPath, err)
	}

	content, err := decodeContent(raw)
	if err != nil {
		return ix.writeOversized(ctx, repoID, relPath, info)
	}

	language := "text"
	var extraction pluginExtraction
	if p, ok := ix.plugins.PluginFor(ctx, relPath, priorityLanguage); ok {
		language = p.Language()
		ex, err := safeIndex(p, relPath, raw)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("path", relPath).Str("plugin", language).
				Msg("plugin failed on file; indexing full-text only")
		} else {
			extraction = ex
		}
	}

	txn, err := ix.store.BeginTxn(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	fileID, err := txn.PutFile(ctx, repoID, relPath, language, hash, info.ModTime(), info.Size())
	if err != nil {
		return err
	}
	if err := txn.PutSymbols(ctx, fileID, extraction.Symbols); err != nil {
		return err
	}
	if err := txn.PutReferences(ctx, fileID, extraction.References); err != nil {
		return err
	}
	if err := txn.PutFulltext(ctx, fileID, relPath, filepath.Base(relPath), content, language); err != nil {
		return err
	}
	return txn.Commit()
}

// writeOversized records relPath as a retained, full-text-skipped row:
// files over MaxFileBytes (or that fail every encoding candidate) still
// get a files row, with no content and the
// codeindex.LanguageBinaryOrOversized sentinel language.
func (ix *Indexer) writeOversized(ctx context.Context, repoID, relPath string, info os.FileInfo) error {
	sum := sha256.Sum256([]byte(relPath))
	hash, err := codeindex.NewDigest(codeindex.SHA256, sum[:])
	if err != nil {
		return err
	}
	txn, err := ix.store.BeginTxn(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback()
	fileID, err := txn.PutFile(ctx, repoID, relPath, codeindex.LanguageBinaryOrOversized, hash, info.ModTime(), info.Size())
	if err != nil {
		return err
	}
	if err := txn.PutSymbols(ctx, fileID, nil); err != nil {
		return err
	}
	if err := txn.PutReferences(ctx, fileID, nil); err != nil {
		return err
	}
	if err := txn.PutFulltext(ctx, fileID, relPath, filepath.Base(relPath), "", codeindex.LanguageBinaryOrOversized); err != nil {
		return err
	}
	return txn.Commit()
}
