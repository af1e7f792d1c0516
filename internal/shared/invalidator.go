package shared

import "context"

// Invalidator drops derived read models once a write has committed.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Invalidate bumps inv when set. Failures only leave caches stale until their
// TTL, so they are not returned to the writer.
func Invalidate(ctx context.Context, inv Invalidator) {
	if inv == nil {
		return
	}
	_ = inv.Bump(ctx)
}
