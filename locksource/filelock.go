package locksource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// FileLock provides advisory locks backed by flock(2) on a directory of
// marker files. It arbitrates concurrent writers to a single host-local
// resource, such as the registry document, across separate processes; it
// is not a distributed lock and gives no guarantee across machines.
//
// A FileLock must not be copied after use.
type FileLock struct {
	dir string

	mu   sync.Mutex
	open map[string]*os.File
}

// NewFileLock returns a FileLock that keeps its marker files under dir.
// The directory is created if it doesn't exist.
func NewFileLock(dir string) (*FileLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("locksource: create lock directory: %w", err)
	}
	return &FileLock{dir: dir, open: make(map[string]*os.File)}, nil
}

// Assert [*FileLock] implements the interface.
var _ ContextLock = (*FileLock)(nil)

// Lock waits to acquire the named lock, retrying with a capped backoff
// until it succeeds or ctx is canceled.
func (l *FileLock) Lock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	wait := 10 * time.Millisecond
	for {
		c, done, err := l.tryLock(ctx, key)
		if err == nil {
			return c, done
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			c, done := context.WithCancel(ctx)
			done()
			return c, done
		case <-t.C:
		}
		wait *= 2
		if wait > time.Second {
			wait = time.Second
		}
	}
}

// TryLock returns a canceled Context if the lock would need to wait.
func (l *FileLock) TryLock(ctx context.Context, key string) (context.Context, context.CancelFunc) {
	c, done, err := l.tryLock(ctx, key)
	if err != nil {
		c, done := context.WithCancel(ctx)
		done()
		return c, done
	}
	return c, done
}

func (l *FileLock) tryLock(ctx context.Context, key string) (context.Context, context.CancelFunc, error) {
	path := filepath.Join(l.dir, sanitize(key)+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("locksource: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("locksource: flock %s: %w", path, err)
	}

	l.mu.Lock()
	l.open[key] = f
	l.mu.Unlock()

	child, cancel := context.WithCancel(ctx)
	return child, l.unlockFunc(key, f, cancel), nil
}

func (l *FileLock) unlockFunc(key string, f *os.File, next context.CancelFunc) context.CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			next()
			unix.Flock(int(f.Fd()), unix.LOCK_UN)
			f.Close()
			l.mu.Lock()
			delete(l.open, key)
			l.mu.Unlock()
		})
	}
}

// Close releases every lock still held by this FileLock.
func (l *FileLock) Close(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, f := range l.open {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		delete(l.open, key)
	}
	return nil
}

func sanitize(key string) string {
	b := []byte(key)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}
