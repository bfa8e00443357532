package contextx

import "context"

// WithBreakerBypass returns a derived context that makes circuit
// breakers skip both admission and outcome recording for the call: it
// always reaches the upstream and leaves the breaker untouched.
//
// Intended for health probes and administrative traffic that must reach
// the upstream even while its breaker is open.
func WithBreakerBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey, true)
}

// BreakerBypassFromContext reports whether ctx requests breaker bypass.
func BreakerBypassFromContext(ctx context.Context) bool {
	b, _ := ctx.Value(bypassKey).(bool)
	return b
}
