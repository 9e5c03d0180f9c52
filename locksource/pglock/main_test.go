package pglock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/log/testingadapter"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/quay/zlog"
)

// dsnEnvVar names the environment variable pointing at a Postgres instance
// to run these tests against. Unlike the storage engine's embedded SQLite,
// pglock needs a real server for advisory locks, so these tests are opt-in.
const dsnEnvVar = "CODEINDEX_TEST_POSTGRES_DSN"

func needDB(t testing.TB) string {
	t.Helper()
	dsn := os.Getenv(dsnEnvVar)
	if dsn == "" {
		t.Skipf("set %s to a postgres connection string to run this test", dsnEnvVar)
	}
	return dsn
}

func basicSetup(t testing.TB) (context.Context, *Locker) {
	t.Helper()
	dsn := needDB(t)
	ctx := zlog.Test(context.Background(), t)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatal(err)
	}
	cfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   testingadapter.NewLogger(t),
		LogLevel: tracelog.LogLevelDebug,
	}

	l, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	return ctx, l
}

func TestLockUnlock(t *testing.T) {
	ctx, l := basicSetup(t)
	lctx, done := l.Lock(ctx, "codeindex-test-lock")
	if err := lctx.Err(); err != nil {
		t.Fatalf("lock context canceled: %v", err)
	}
	done()
}

func TestTryLockContention(t *testing.T) {
	ctx, l := basicSetup(t)
	first, done1 := l.Lock(ctx, "codeindex-test-contention")
	defer done1()
	if err := first.Err(); err != nil {
		t.Fatalf("first lock failed: %v", err)
	}

	second, done2 := l.TryLock(ctx, "codeindex-test-contention")
	defer done2()
	select {
	case <-second.Done():
	case <-time.After(time.Second):
		t.Fatal("expected TryLock to fail immediately while held")
	}
}
