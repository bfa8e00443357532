// Package breaker provides per-service circuit breakers with a sliding
// failure window, bounded half-open probing and a success-ratio close
// condition, plus a Manager that registers breakers lazily by service name.
//
// States:
//   - StateClosed: requests flow normally; failures within FailureWindow
//     are counted and trip the breaker at FailureThreshold.
//   - StateOpen: requests are rejected locally with *OpenError; once
//     RecoveryTimeout has elapsed the next admission moves the breaker
//     to half-open.
//   - StateHalfOpen: up to HalfOpenRequests probes run concurrently; the
//     breaker closes when the probe success ratio reaches SuccessThreshold
//     and reopens on the first probe failure.
//
// The breaker never retries, translates or wraps upstream errors: callers
// see either their operation's error or an *OpenError.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State represents the current circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the snake_case name used in logs, metrics and stats.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker parameters.
type Config struct {
	// FailureThreshold is the number of failures within FailureWindow
	// that trips the breaker from closed to open.
	FailureThreshold int

	// FailureWindow is the sliding window over which failures are
	// counted. Failures older than the window are forgotten.
	FailureWindow time.Duration

	// SuccessThreshold is the ratio of successful probes to admitted
	// probes, in (0, 1], required to close the breaker from half-open.
	SuccessThreshold float64

	// RecoveryTimeout is how long the breaker stays open before the next
	// admission attempt moves it to half-open.
	RecoveryTimeout time.Duration

	// HalfOpenRequests is the maximum number of probe requests allowed
	// in flight concurrently while half-open.
	HalfOpenRequests int
}

// DefaultConfig returns the configuration used when a service has no
// explicit registration: 5 failures in 60s trip the breaker, recovery is
// probed after 30s with at most 2 concurrent probes, and a 0.7 success
// ratio closes it.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureWindow:    60 * time.Second,
		SuccessThreshold: 0.7,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenRequests: 2,
	}
}

// Validate reports whether the configuration is usable. All validation
// errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("%w: FailureThreshold must be > 0, got %d", ErrInvalidConfig, c.FailureThreshold)
	}
	if c.FailureWindow <= 0 {
		return fmt.Errorf("%w: FailureWindow must be > 0, got %v", ErrInvalidConfig, c.FailureWindow)
	}
	if c.SuccessThreshold <= 0 || c.SuccessThreshold > 1 {
		return fmt.Errorf("%w: SuccessThreshold must be in (0, 1], got %g", ErrInvalidConfig, c.SuccessThreshold)
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("%w: RecoveryTimeout must be > 0, got %v", ErrInvalidConfig, c.RecoveryTimeout)
	}
	if c.HalfOpenRequests <= 0 {
		return fmt.Errorf("%w: HalfOpenRequests must be > 0, got %d", ErrInvalidConfig, c.HalfOpenRequests)
	}
	return nil
}

// Probe is the admission token returned by Admit. Pass it to
// RecordSuccess or RecordFailure exactly once when the operation
// finishes. Outcomes reported with a token from a previous state episode
// are ignored, so a slow request can never flip a breaker that has moved
// on without it.
type Probe struct {
	generation uint64
	halfOpen   bool
}

// Stats is a point-in-time snapshot of a breaker.
type Stats struct {
	Service           string
	State             State
	WindowFailures    int       // failures currently inside the sliding window
	OpenedAt          time.Time // zero unless the breaker tripped and has not closed since
	HalfOpenAttempts  int
	HalfOpenSuccesses int
	HalfOpenInFlight  int
	Generation        uint64
}

// Breaker is a circuit breaker for a single upstream service. All
// methods are safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	service string
	cfg     Config

	state      State
	failures   []time.Time // in-window failure timestamps, oldest first
	openedAt   time.Time
	generation uint64 // bumped on every transition; identifies the state episode

	halfOpenAttempts  int
	halfOpenSuccesses int
	halfOpenInFlight  int

	nowFunc func() time.Time // for testing; defaults to time.Now

	// onStateChange is set by the Manager before the breaker is shared
	// and is called without the lock held.
	onStateChange func(from, to State)
}

// New creates a Breaker for the named service. It returns an error
// wrapping ErrInvalidConfig when the configuration is unusable.
func New(service string, cfg Config) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newBreaker(service, cfg), nil
}

// newBreaker constructs a breaker from an already validated config.
func newBreaker(service string, cfg Config) *Breaker {
	return &Breaker{
		service: service,
		cfg:     cfg,
		state:   StateClosed,
		nowFunc: time.Now,
	}
}

// Admit asks the breaker whether a request may proceed. On admission it
// returns a Probe that must be settled with RecordSuccess or
// RecordFailure; on rejection it returns a *OpenError and the upstream
// must not be contacted.
//
// In open state, Admit performs the recovery transition itself: when
// RecoveryTimeout has elapsed the breaker moves to half-open and this
// same call is evaluated as the first probe, so the triggering request
// is not lost.
func (b *Breaker) Admit() (Probe, error) {
	b.mu.Lock()
	p, change, err := b.admitLocked()
	b.mu.Unlock()
	b.notify(change)
	return p, err
}

func (b *Breaker) admitLocked() (Probe, *stateChange, error) {
	now := b.now()

	var change *stateChange
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
		change = b.transitionLocked(StateHalfOpen, now)
	}

	switch b.state {
	case StateClosed:
		b.pruneLocked(now)
		return Probe{generation: b.generation}, change, nil
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenRequests {
			return Probe{}, change, &OpenError{Service: b.service, State: StateHalfOpen}
		}
		// The slot is reserved before the operation runs, so a hung or
		// panicking probe still counts against the concurrency cap.
		b.halfOpenInFlight++
		b.halfOpenAttempts++
		return Probe{generation: b.generation, halfOpen: true}, change, nil
	default: // StateOpen
		return Probe{}, change, &OpenError{Service: b.service, State: StateOpen}
	}
}

// RecordSuccess settles an admitted probe as successful. Successes in
// closed state leave the failure window alone; in half-open they count
// toward the close ratio, which is evaluated after every outcome.
func (b *Breaker) RecordSuccess(p Probe) {
	b.mu.Lock()
	change := b.recordSuccessLocked(p)
	b.mu.Unlock()
	b.notify(change)
}

func (b *Breaker) recordSuccessLocked(p Probe) *stateChange {
	if p.generation != b.generation {
		return nil // outcome from a previous episode
	}
	if !p.halfOpen {
		return nil
	}
	b.halfOpenInFlight--
	if b.halfOpenInFlight < 0 {
		b.halfOpenInFlight = 0
	}
	b.halfOpenSuccesses++
	if float64(b.halfOpenSuccesses) >= b.cfg.SuccessThreshold*float64(b.halfOpenAttempts) {
		return b.transitionLocked(StateClosed, b.now())
	}
	return nil
}

// RecordFailure settles an admitted probe as failed. In closed state the
// failure enters the sliding window and may trip the breaker; in
// half-open any failure reopens it immediately.
func (b *Breaker) RecordFailure(p Probe) {
	b.mu.Lock()
	change := b.recordFailureLocked(p)
	b.mu.Unlock()
	b.notify(change)
}

func (b *Breaker) recordFailureLocked(p Probe) *stateChange {
	if p.generation != b.generation {
		return nil // outcome from a previous episode
	}
	now := b.now()
	if p.halfOpen {
		// Reopen on the first probe failure. Outstanding probes of this
		// episode become stale and lose the right to flip state.
		return b.transitionLocked(StateOpen, now)
	}
	b.pruneLocked(now)
	b.failures = append(b.failures, now)
	if len(b.failures) >= b.cfg.FailureThreshold {
		return b.transitionLocked(StateOpen, now)
	}
	return nil
}

// State returns the current state. It is a pure read: the open→half-open
// recovery transition happens on Admit, not here, so an idle open breaker
// reports open until the next admission attempt.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker. WindowFailures counts only
// failures still inside the sliding window.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-b.cfg.FailureWindow)
	inWindow := 0
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			inWindow++
		}
	}
	return Stats{
		Service:           b.service,
		State:             b.state,
		WindowFailures:    inWindow,
		OpenedAt:          b.openedAt,
		HalfOpenAttempts:  b.halfOpenAttempts,
		HalfOpenSuccesses: b.halfOpenSuccesses,
		HalfOpenInFlight:  b.halfOpenInFlight,
		Generation:        b.generation,
	}
}

// Reset returns the breaker to closed and discards all history. Probes
// admitted before the reset become stale.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.generation++
	b.failures = b.failures[:0]
	b.openedAt = time.Time{}
	b.halfOpenAttempts = 0
	b.halfOpenSuccesses = 0
	b.halfOpenInFlight = 0
	b.mu.Unlock()

	if from != StateClosed {
		b.notify(&stateChange{from: from, to: StateClosed})
	}
}

type stateChange struct {
	from, to State
}

// transitionLocked moves the breaker to a new state, resets the counters
// belonging to the old episode and starts a new probe generation. Must be
// called with b.mu held.
func (b *Breaker) transitionLocked(to State, now time.Time) *stateChange {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.generation++
	b.halfOpenAttempts = 0
	b.halfOpenSuccesses = 0
	b.halfOpenInFlight = 0

	switch to {
	case StateOpen:
		b.openedAt = now
	case StateClosed:
		b.openedAt = time.Time{}
		b.failures = b.failures[:0]
	}
	return &stateChange{from: from, to: to}
}

// pruneLocked drops failure timestamps that fell out of the sliding
// window. Must be called with b.mu held.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.FailureWindow)
	i := 0
	for i < len(b.failures) && !b.failures[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = append(b.failures[:0], b.failures[i:]...)
	}
}

func (b *Breaker) notify(c *stateChange) {
	if c == nil || b.onStateChange == nil {
		return
	}
	b.onStateChange(c.from, c.to)
}

func (b *Breaker) now() time.Time {
	if b.nowFunc != nil {
		return b.nowFunc()
	}
	return time.Now()
}
