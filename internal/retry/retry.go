// Package retry implements the bounded exponential-backoff policy applied at
// resource boundaries. Only failures the caller classifies as transient are
// retried; everything else returns immediately.
package retry

import (
	"context"
	"log"
	"time"
)

// Policy bounds the retry loop. The zero value is usable and means a single
// attempt with no retries.
type Policy struct {
	// MaxRetries is the number of retry attempts after the initial one.
	MaxRetries int

	// InitialBackoff is the wait before the first retry; each subsequent
	// retry doubles it up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// sleep is injectable to make tests fast and deterministic.
	sleep func(context.Context, time.Duration) error
}

// Do runs fn, retrying while retryable(err) reports true and attempts remain.
// op names the operation in retry log lines. Context cancellation aborts the
// loop between attempts and during backoff waits.
func (p Policy) Do(ctx context.Context, op string, retryable func(error) bool, fn func(context.Context) error) error {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	max := p.MaxBackoff
	if max <= 0 {
		max = 30 * time.Second
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt >= p.MaxRetries {
			return lastErr
		}
		backoff := backoffDuration(initial, attempt, max)
		log.Printf("retry: op=%s attempt=%d/%d backoff=%s err=%v",
			op, attempt+1, p.MaxRetries, backoff, lastErr)
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// backoffDuration returns the exponential backoff for the given 0-based retry
// index, clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	d := initial << attempt
	if d > max || d <= 0 { // overflow guard on large attempt counts
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
