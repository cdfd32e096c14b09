// Package ctxutil provides context utility functions.
package ctxutil

import (
	"context"
	"time"
)

// Canceled returns the context error if ctx is done, nil otherwise.
// Used at function entry points before starting slow work.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}

// WithOptionalTimeout returns a child context bounded by d.
// A non-positive d returns ctx unchanged with a no-op cancel func.
func WithOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
