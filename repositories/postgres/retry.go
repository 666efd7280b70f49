package postgres

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry policies applied at gateway call sites, parameterized by operation
// class. Reads are safe to retry aggressively; inserts are retried once
// because the event_id primary key makes a duplicate attempt fail loudly
// rather than double-write.

const (
	readMaxRetries  = 3
	writeMaxRetries = 1

	initialInterval = 100 * time.Millisecond
	maxInterval     = 2 * time.Second
)

// newPolicy builds an exponential backoff bounded by maxRetries and the
// caller's context
func newPolicy(ctx context.Context, maxRetries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

// withReadRetry retries a read operation with exponential backoff
func withReadRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, newPolicy(ctx, readMaxRetries))
}

// withWriteRetry retries a write operation with a single bounded attempt
func withWriteRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, newPolicy(ctx, writeMaxRetries))
}
