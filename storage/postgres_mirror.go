package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"github.com/quay/zlog"

	"github.com/codeindex/codeindex"
	"github.com/codeindex/codeindex/locksource/pglock"
	"github.com/codeindex/codeindex/pkg/microbatch"
)

// ArtifactDescriptor is one row of the Postgres artifact catalog: the
// metadata a consumer needs to decide whether to fetch an artifact,
// without fetching the (potentially large) blob itself.
type ArtifactDescriptor struct {
	RepoID        string
	Commit        string
	SchemaVersion int
	FileCount     int64
	Hash          string
}

// PostgresMirror is the optional, centrally-shared mirror of per-repository
// index snapshots: a Postgres catalog of descriptors plus zstd-compressed
// snapshot blobs, reachable by every indexer replica instead of only the
// one that built a given snapshot. It implements syncmanager.ArtifactStore.
//
// Grounded on the teacher's updater/driver Postgres-backed shared-catalog
// pattern (many indexer replicas publishing and consuming the same
// vulnerability database rows), generalized here from "vulnerability
// database rows" to "index snapshot descriptors and blobs". Concurrent
// publishers are arbitrated with locksource/pglock rather than a
// database-level UPSERT alone, because the blob upload (stream the
// snapshot, compress, write) takes long enough that a naive
// insert-on-conflict would let two publishers redundantly upload the same
// artifact; the lock makes the second publisher skip the upload entirely
// once it sees the first has already finished.
type PostgresMirror struct {
	pool   *pgxpool.Pool
	locker *pglock.Locker
}

// NewPostgresMirror connects to the Postgres instance described by
// connString, ensures the mirror's two tables exist, and returns a ready
// PostgresMirror. Callers must call Close when done.
func NewPostgresMirror(ctx context.Context, connString string) (*PostgresMirror, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("storage: parse postgres mirror dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres mirror: %w", err)
	}
	locker, err := pglock.New(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: start postgres mirror locker: %w", err)
	}
	m := &PostgresMirror{pool: pool, locker: locker}
	if err := m.ensureSchema(ctx); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *PostgresMirror) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS artifact_descriptors (
	repo_id        text NOT NULL,
	commit         text NOT NULL,
	schema_version integer NOT NULL,
	file_count     bigint NOT NULL,
	hash           text NOT NULL,
	created_at     timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (repo_id, commit)
);
CREATE TABLE IF NOT EXISTS artifact_blobs (
	repo_id text NOT NULL,
	commit  text NOT NULL,
	data    bytea NOT NULL,
	PRIMARY KEY (repo_id, commit)
);`
	_, err := m.pool.Exec(ctx, ddl)
	if err != nil {
		return &codeindex.Error{Op: "storage.PostgresMirror.ensureSchema", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return nil
}

// Close releases the mirror's connection pool and distributed locker.
func (m *PostgresMirror) Close() {
	m.locker.Close()
	m.pool.Close()
}

// Has implements syncmanager.ArtifactStore: it reports whether a
// descriptor (and therefore a blob) exists for repoID at commit.
func (m *PostgresMirror) Has(ctx context.Context, repoID, commit string) (bool, error) {
	var exists bool
	err := m.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM artifact_descriptors WHERE repo_id = $1 AND commit = $2)`,
		repoID, commit,
	).Scan(&exists)
	if err != nil {
		return false, &codeindex.Error{Op: "storage.PostgresMirror.Has", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return exists, nil
}

// Fetch implements syncmanager.ArtifactStore: it streams repoID's artifact
// at commit, decompressing it as it writes to w.
func (m *PostgresMirror) Fetch(ctx context.Context, repoID, commit string, w io.Writer) error {
	var compressed []byte
	err := m.pool.QueryRow(ctx,
		`SELECT data FROM artifact_blobs WHERE repo_id = $1 AND commit = $2`,
		repoID, commit,
	).Scan(&compressed)
	switch {
	case err == pgx.ErrNoRows:
		return &codeindex.Error{Op: "storage.PostgresMirror.Fetch", Kind: codeindex.ErrNotFound}
	case err != nil:
		return &codeindex.Error{Op: "storage.PostgresMirror.Fetch", Kind: codeindex.ErrUnavailable, Inner: err}
	}

	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return &codeindex.Error{Op: "storage.PostgresMirror.Fetch", Kind: codeindex.ErrCorrupt, Inner: err}
	}
	defer zr.Close()
	if _, err := io.Copy(w, zr); err != nil {
		return &codeindex.Error{Op: "storage.PostgresMirror.Fetch", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	return nil
}

// Publish compresses snapshot and writes both its descriptor and its blob
// to the mirror, holding a distributed lock on (repoID, commit) for the
// duration so two replicas racing to publish the same artifact don't both
// pay the compression and upload cost: the second to acquire the lock
// sees Has already true and returns immediately.
func (m *PostgresMirror) Publish(ctx context.Context, repoID, commit string, schemaVersion int, fileCount int64, snapshot io.Reader) error {
	lctx, unlock := m.locker.Lock(ctx, "artifact-publish:"+repoID+":"+commit)
	defer unlock()
	if err := lctx.Err(); err != nil {
		return fmt.Errorf("storage: acquire publish lock for %s@%s: %w", repoID, commit, err)
	}

	if has, err := m.Has(lctx, repoID, commit); err != nil {
		return err
	} else if has {
		zlog.Debug(lctx).Str("repo_id", repoID).Str("commit", commit).Msg("artifact already published; skipping")
		return nil
	}

	hasher := sha256.New()
	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed)
	if err != nil {
		return fmt.Errorf("storage: build zstd writer: %w", err)
	}
	if _, err := io.Copy(io.MultiWriter(zw, hasher), snapshot); err != nil {
		zw.Close()
		return fmt.Errorf("storage: compress artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("storage: flush zstd writer: %w", err)
	}

	tx, err := m.pool.Begin(lctx)
	if err != nil {
		return &codeindex.Error{Op: "storage.PostgresMirror.Publish", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	defer tx.Rollback(lctx)

	batch := microbatch.NewInsert(tx, 2, 30*time.Second)
	if err := batch.Queue(lctx,
		`INSERT INTO artifact_descriptors (repo_id, commit, schema_version, file_count, hash) VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (repo_id, commit) DO NOTHING`,
		repoID, commit, schemaVersion, fileCount, hex.EncodeToString(hasher.Sum(nil)),
	); err != nil {
		return fmt.Errorf("storage: queue descriptor insert: %w", err)
	}
	if err := batch.Queue(lctx,
		`INSERT INTO artifact_blobs (repo_id, commit, data) VALUES ($1,$2,$3)
		 ON CONFLICT (repo_id, commit) DO NOTHING`,
		repoID, commit, compressed.Bytes(),
	); err != nil {
		return fmt.Errorf("storage: queue blob insert: %w", err)
	}
	if err := batch.Done(lctx); err != nil {
		return fmt.Errorf("storage: execute publish batch: %w", err)
	}

	if err := tx.Commit(lctx); err != nil {
		return &codeindex.Error{Op: "storage.PostgresMirror.Publish", Kind: codeindex.ErrUnavailable, Inner: err}
	}
	zlog.Info(lctx).Str("repo_id", repoID).Str("commit", commit).Int64("bytes", int64(compressed.Len())).Msg("published artifact to postgres mirror")
	return nil
}
