package contextx

import (
	"context"
	"time"
)

// WithDedupTTL returns a derived context that overrides the result
// retention TTL for request deduplication on this call. A zero duration
// disables retention, keeping only in-flight coalescing.
func WithDedupTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, dedupTTLKey, ttl)
}

// DedupTTLFromContext extracts the deduplication TTL override stored in
// ctx. The boolean return value indicates whether an override is present.
func DedupTTLFromContext(ctx context.Context) (time.Duration, bool) {
	ttl, ok := ctx.Value(dedupTTLKey).(time.Duration)
	return ttl, ok
}
