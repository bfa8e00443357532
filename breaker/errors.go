package breaker

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is wrapped by every call the breaker rejects locally.
// Callers distinguish "the breaker refused" from "the upstream failed"
// with errors.Is(err, ErrCircuitOpen).
var ErrCircuitOpen = errors.New("circuit open")

// ErrInvalidConfig is wrapped by configuration validation errors. It
// surfaces at registration or construction time, never on the call path.
var ErrInvalidConfig = errors.New("invalid breaker config")

// OpenError reports a call rejected by an open breaker or by a half-open
// breaker whose probe slots are taken. The upstream was not contacted.
type OpenError struct {
	Service string
	State   State
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open: service %q in state %s", e.Service, e.State)
}

func (e *OpenError) Unwrap() error { return ErrCircuitOpen }

// IsOpen reports whether err is a local breaker rejection rather than an
// upstream failure.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
