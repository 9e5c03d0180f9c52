// Package watcher observes a registered repository's working tree for
// filesystem events and its VCS head for commit advances, and turns either
// kind of observation into a sync request against the Git-aware index
// manager. The filesystem half is grounded on fsnotify (wired from the
// retrieval pack's platinummonkey-spoke), debounced across the whole tree; the poll
// half and the overall named-goroutine shape follow the teacher's general
// preference for explicit, zlog-tagged background goroutines.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/quay/zlog"
	"golang.org/x/time/rate"

	"github.com/codeindex/codeindex/syncmanager"
)

// Syncer is the subset of *syncmanager.Manager the watcher needs, small
// enough to substitute a test double.
type Syncer interface {
	Sync(ctx context.Context, repoID string) (syncmanager.Result, error)
}

// Watcher observes one repository's root and notifies syncer when it sees
// something worth re-indexing.
type Watcher struct {
	repoID string
	root   string
	syncer Syncer
	opts   Options

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
	busy   atomic.Bool

	limiter *rate.Limiter
	cron    *cronResync
}

// New builds a Watcher for repoID rooted at root.
func New(repoID, root string, syncer Syncer, opts Options) *Watcher {
	opts.setDefaults()
	w := &Watcher{repoID: repoID, root: root, syncer: syncer, opts: opts}
	if opts.TriggerRatePerSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(opts.TriggerRatePerSecond), opts.TriggerBurst)
	}
	return w
}

// Start begins watching in a background goroutine. Call Stop to end it.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	if err := addTree(fsw, w.root, w.opts.ExcludeDirs); err != nil {
		fsw.Close()
		return fmt.Errorf("watcher: watch tree: %w", err)
	}
	w.fsw = fsw

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	if w.opts.CronSchedule != "" {
		cr, err := newCronResync(runCtx, w)
		if err != nil {
			fsw.Close()
			cancel()
			return fmt.Errorf("watcher: parse cron schedule: %w", err)
		}
		w.cron = cr
		w.cron.Start()
	}

	go w.run(runCtx)
	return nil
}

// Stop cancels the background goroutine and waits for it to exit. Because
// the run loop never blocks waiting out a debounce window on ctx.Done, and
// in-flight sync requests are fire-and-forget, Stop returns promptly: the
// watcher is quiesced well within one debounce window.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
	if w.fsw != nil {
		w.fsw.Close()
	}
	if w.cron != nil {
		w.cron.Stop()
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	ctx = zlog.ContextWithValues(ctx, "component", "watcher.run", "repo_id", w.repoID)
	zlog.Info(ctx).Str("root", w.root).Msg("watcher started")

	debounce := time.NewTimer(w.opts.DebounceWindow)
	stopTimer(debounce)
	pending := false

	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()

	lastHead, _ := syncmanager.HeadCommit(w.root)

	for {
		select {
		case <-ctx.Done():
			zlog.Debug(ctx).Msg("watcher stopping")
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !excluded(ev.Name, w.opts.ExcludeDirs) {
					if err := w.fsw.Add(ev.Name); err != nil {
						zlog.Warn(ctx).Err(err).Str("dir", ev.Name).Msg("failed watching new directory")
					}
				}
			}
			pending = true
			stopTimer(debounce)
			debounce.Reset(w.opts.DebounceWindow)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			zlog.Warn(ctx).Err(err).Msg("fsnotify error")

		case <-debounce.C:
			if pending {
				pending = false
				w.trigger(ctx)
			}

		case <-poll.C:
			head, err := syncmanager.HeadCommit(w.root)
			if err != nil {
				zlog.Debug(ctx).Err(err).Msg("head poll failed")
				continue
			}
			if head != lastHead {
				lastHead = head
				w.trigger(ctx)
			}
		}
	}
}

// trigger fires a sync request in its own goroutine so a slow sync never
// stalls event processing. It skips firing a second request while one is
// already in flight; the next debounce or poll tick will pick up whatever
// arrived meanwhile. When a trigger rate limit is configured, a request
// that would exceed it is dropped rather than queued: the next debounce,
// poll, or cron tick will retry.
func (w *Watcher) trigger(ctx context.Context) {
	if w.limiter != nil && !w.limiter.Allow() {
		zlog.Debug(ctx).Msg("trigger rate-limited")
		return
	}
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer w.busy.Store(false)
		if _, err := w.syncer.Sync(ctx, w.repoID); err != nil {
			zlog.Error(ctx).Err(err).Msg("triggered sync failed")
		}
	}()
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

func excluded(path string, excludeDirs []string) bool {
	for _, part := range splitPath(path) {
		for _, ex := range excludeDirs {
			if part == ex {
				return true
			}
		}
	}
	return false
}

func splitPath(path string) []string {
	var parts []string
	for {
		dir, file := filepath.Split(filepath.Clean(path))
		if file != "" {
			parts = append(parts, file)
		}
		if dir == "" || dir == path {
			break
		}
		path = filepath.Clean(dir)
		if path == "." || path == string(filepath.Separator) {
			break
		}
	}
	return parts
}

// addTree recursively adds root and every non-excluded subdirectory to fsw.
func addTree(fsw *fsnotify.Watcher, root string, excludeDirs []string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && excluded(path, excludeDirs) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
