// Package microbatch batches repeated inserts into a handful of pgx
// batched round-trips instead of one round-trip per row. It backs the
// optional Postgres artifact-descriptor mirror (storage.PostgresMirror),
// the same role it plays for the teacher's bulk vulnerability inserts.
package microbatch

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Insert batches queued statements, flushing once batchSize is reached.
type Insert struct {
	tx        pgx.Tx
	currBatch *pgx.Batch
	batchSize int
	currQueue int
	total     int
	timeout   time.Duration
}

// NewInsert returns a micro batcher that sends queued statements over tx.
func NewInsert(tx pgx.Tx, batchSize int, timeout time.Duration) *Insert {
	if timeout == 0 {
		timeout = time.Minute
	}
	return &Insert{
		tx:        tx,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// Queue enqueues one statement, flushing the current batch first if it's
// already at capacity.
func (v *Insert) Queue(ctx context.Context, query string, args ...any) error {
	if v.currQueue == v.batchSize {
		if err := v.sendBatch(ctx); err != nil {
			return fmt.Errorf("microbatch: flush batch: %w", err)
		}
		v.currQueue = 0
	}

	v.currQueue++
	v.total++

	if v.currBatch == nil {
		v.currBatch = &pgx.Batch{}
	}
	v.currBatch.Queue(query, args...)
	return nil
}

// Total reports how many statements have been queued across the Insert's
// lifetime, flushed or not.
func (v *Insert) Total() int { return v.total }

// Done flushes any statements still queued. Callers must call Done once
// all statements have been queued.
func (v *Insert) Done(ctx context.Context) error {
	if v.currQueue == 0 {
		return nil
	}
	tctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	res := v.tx.SendBatch(tctx, v.currBatch)
	defer res.Close()
	for i := 0; i < v.currQueue; i++ {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("microbatch: exec iteration %d: %w", i, err)
		}
	}
	return nil
}

// sendBatch is called from Queue once batchSize is reached.
func (v *Insert) sendBatch(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	res := v.tx.SendBatch(tctx, v.currBatch)
	defer res.Close()
	defer func() { v.currBatch = nil }()
	for i := 0; i < v.batchSize; i++ {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}
