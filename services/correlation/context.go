// Package correlation manages the run identifier that groups all checkpoint
// events of one pipeline run. The binding lives in a context.Context, so it
// is confined to one unit of work and can never leak to a concurrently
// running one; child goroutines see the id only if the derived context is
// passed to them explicitly.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// Context key type to avoid collisions
type contextKey string

const runIDKey contextKey = "run_id"

// Generate creates a fresh run id and binds it to the returned context
func Generate(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, runIDKey, id), id
}

// Current returns the run id bound to the context, or false if unset
func Current(ctx context.Context) (string, bool) {
	if val := ctx.Value(runIDKey); val != nil {
		if id, ok := val.(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// Bind associates an externally supplied run id with the returned context.
// Used when the id is received from an upstream system rather than
// generated locally.
func Bind(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// Clear removes the run id binding from the returned context
func Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, runIDKey, "")
}

// WithRun binds id for the duration of fn. The binding is scoped to the
// derived context handed to fn, so the caller's context is untouched on
// every exit path, panics included.
func WithRun(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return fn(Bind(ctx, id))
}

// WithNewRun generates a fresh run id, binds it for the duration of fn,
// and returns the id alongside fn's error
func WithNewRun(ctx context.Context, fn func(ctx context.Context) error) (string, error) {
	runCtx, id := Generate(ctx)
	return id, fn(runCtx)
}
