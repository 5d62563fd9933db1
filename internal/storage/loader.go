// This file implements a batched fact loader that drains rows from a channel
// and invokes a provided insert function per batch.
//
// Backends implement InsertFn with their most efficient primitive; the
// Postgres backend uses a single transaction with per-row conflict skipping.
//
// Logging: on every flushed batch, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"idaetl/internal/metrics"
)

// InsertFn abstracts a backend's batch insert. It reports how many rows were
// loaded and how many were skipped as already present, and must cancel
// promptly when ctx is done. Repository.InsertFacts satisfies it.
type InsertFn func(ctx context.Context, rows []FactRow) (loaded, skipped int64, err error)

// LoadBatches drains rows from in, groups them into batches of batchSize, and
// calls insert for each non-empty batch. job names the resource being loaded
// in log lines and metrics; concurrent loaders share one log stream. It
// returns running totals along with the first error encountered; a failed
// batch counts neither loaded nor skipped for its rows.
//
// Cancellation: returns the totals so far and ctx.Err() when canceled.
func LoadBatches(
	ctx context.Context,
	job string,
	in <-chan FactRow,
	batchSize int,
	insert InsertFn,
) (loaded, skipped int64, err error) {
	if batchSize <= 0 {
		return 0, 0, fmt.Errorf("batchSize must be > 0")
	}
	if insert == nil {
		return 0, 0, fmt.Errorf("insert must not be nil")
	}

	var (
		batches     int64
		batch       = make([]FactRow, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastLoaded  int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, dup, err := insert(ctx, batch)
		loaded += n
		skipped += dup

		// Reuse allocated slice; keep capacity to avoid churn.
		batch = batch[:0]

		if err != nil {
			log.Printf("loader %s: batch failed loaded=%d skipped=%d err=%v", job, loaded, skipped, err)
			return err
		}

		batches++
		metrics.RecordBatches(job, 1)
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(loaded-lastLoaded) / sinceLast.Seconds()
		}
		log.Printf(
			"loader %s: batch #%d rps=%.0f loaded=%d skipped=%d total_loaded=%d elapsed=%s",
			job, batches, rps, n, dup, loaded,
			now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastLoaded = loaded
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return loaded, skipped, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return loaded, skipped, err
				}
				return loaded, skipped, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return loaded, skipped, err
				}
			}
		}
	}
}
