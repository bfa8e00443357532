package outguard

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/outguard/outguard/contextx"
)

// newRequestID generates a random hex-encoded request identifier.
func newRequestID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// RequestID returns a decorator that ensures a request ID is present in
// the context before the operation runs. An ID already present is kept.
func RequestID() Decorator {
	return func(op Operation) Operation {
		return func(ctx context.Context) error {
			if contextx.RequestIDFromContext(ctx) == "" {
				ctx = contextx.WithRequestID(ctx, newRequestID())
			}
			return op(ctx)
		}
	}
}
