package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codeindex/codeindex/syncmanager"
)

type countingSyncer struct {
	calls atomic.Int32
}

func (c *countingSyncer) Sync(ctx context.Context, repoID string) (syncmanager.Result, error) {
	c.calls.Add(1)
	return syncmanager.Result{RepoID: repoID, Action: "noop"}, nil
}

func TestWatcherBurstTriggersSync(t *testing.T) {
	root := t.TempDir()
	syncer := &countingSyncer{}
	w := New("repo1", root, syncer, Options{DebounceWindow: 50 * time.Millisecond, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	if got := syncer.calls.Load(); got == 0 {
		t.Fatalf("expected at least one triggered sync, got %d", got)
	}
}

func TestWatcherStopQuiescesPromptly(t *testing.T) {
	root := t.TempDir()
	syncer := &countingSyncer{}
	w := New("repo1", root, syncer, Options{DebounceWindow: 500 * time.Millisecond, PollInterval: time.Hour})

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return within 2s")
	}
}
