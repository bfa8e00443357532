package breaker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outguard/outguard/contextx"
)

// ConfigSource supplies per-service configurations for lazy
// auto-registration. The policy package's Resolver implements it.
type ConfigSource interface {
	// ConfigFor returns the configuration for a service name. The
	// boolean return value indicates whether the source has an opinion;
	// when false the manager falls back to its defaults.
	ConfigFor(service string) (Config, bool)
}

// Observer receives breaker lifecycle events. Implementations must be
// safe for concurrent use and must not block: events are delivered
// synchronously from the calling goroutine.
type Observer interface {
	OnStateChange(service string, from, to State)
	OnRejection(service string)
}

// MultiObserver fans events out to several observers in order. Nil
// entries are skipped.
func MultiObserver(obs ...Observer) Observer {
	all := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			all = append(all, o)
		}
	}
	return all
}

type multiObserver []Observer

func (m multiObserver) OnStateChange(service string, from, to State) {
	for _, o := range m {
		o.OnStateChange(service, from, to)
	}
}

func (m multiObserver) OnRejection(service string) {
	for _, o := range m {
		o.OnRejection(service)
	}
}

// managedBreaker pairs a breaker with its per-service log throttle.
type managedBreaker struct {
	breaker   *Breaker
	rejectLog rate.Sometimes
}

// Manager is a registry of breakers keyed by service name. Unknown
// services are registered lazily on first use, so callers never
// coordinate registration up front. All methods are safe for concurrent
// use.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*managedBreaker

	defaults Config
	source   ConfigSource
	observer Observer
	log      *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for registrations, state transitions and
// rejections. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithDefaults sets the configuration used for services the config
// source has no opinion on. An invalid config is logged and replaced
// with DefaultConfig.
func WithDefaults(cfg Config) ManagerOption {
	return func(m *Manager) { m.defaults = cfg }
}

// WithConfigSource sets the source consulted on lazy auto-registration
// before falling back to the defaults.
func WithConfigSource(src ConfigSource) ManagerOption {
	return func(m *Manager) { m.source = src }
}

// WithObserver sets the observer notified of state changes and
// rejections. Combine several with MultiObserver.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates a Manager. Configuration problems are repaired
// here, not surfaced on the call path: invalid defaults are logged and
// replaced with DefaultConfig.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		breakers: make(map[string]*managedBreaker),
		defaults: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if err := m.defaults.Validate(); err != nil {
		m.log.Error("invalid default breaker config, using built-in defaults", zap.Error(err))
		m.defaults = DefaultConfig()
	}
	return m
}

// Register creates (or replaces) the breaker for a service with an
// explicit configuration. Replacing discards the previous breaker,
// including its state: a tripped service re-registered this way starts
// closed again.
func (m *Manager) Register(service string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	mb := m.newManaged(service, cfg)
	m.mu.Lock()
	m.breakers[service] = mb
	m.mu.Unlock()

	m.log.Debug("breaker registered", zap.String("service", service))
	return nil
}

// Get returns the breaker for a service if one is registered. It never
// auto-registers; use Lookup for that.
func (m *Manager) Get(service string) (*Breaker, bool) {
	m.mu.RLock()
	mb, ok := m.breakers[service]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return mb.breaker, true
}

// Lookup returns the breaker for a service, registering one on first
// use. The config source is consulted first, then the defaults.
func (m *Manager) Lookup(service string) *Breaker {
	return m.lookup(service).breaker
}

func (m *Manager) lookup(service string) *managedBreaker {
	m.mu.RLock()
	mb, ok := m.breakers[service]
	m.mu.RUnlock()
	if ok {
		return mb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if mb, ok := m.breakers[service]; ok {
		return mb
	}

	cfg := m.configFor(service)
	if err := cfg.Validate(); err != nil {
		m.log.Error("invalid breaker config for service, using defaults",
			zap.String("service", service), zap.Error(err))
		cfg = m.defaults
	}
	mb = m.newManaged(service, cfg)
	m.breakers[service] = mb

	m.log.Debug("breaker auto-registered", zap.String("service", service))
	return mb
}

func (m *Manager) configFor(service string) Config {
	if m.source != nil {
		if cfg, ok := m.source.ConfigFor(service); ok {
			return cfg
		}
	}
	return m.defaults
}

// newManaged builds a managed breaker from an already validated config
// and wires the transition hook before the breaker is shared.
func (m *Manager) newManaged(service string, cfg Config) *managedBreaker {
	b := newBreaker(service, cfg)
	b.onStateChange = func(from, to State) {
		m.log.Info("breaker state change",
			zap.String("service", service),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if m.observer != nil {
			m.observer.OnStateChange(service, from, to)
		}
	}
	return &managedBreaker{
		breaker:   b,
		rejectLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Do runs op through the service's breaker. Rejections return a
// *OpenError before op is invoked; otherwise op's error is returned
// unchanged, with a non-nil error recorded as a failure. A panic in op
// is recorded as a failure and re-panics.
//
// A context marked with contextx.WithBreakerBypass skips admission and
// recording entirely.
func (m *Manager) Do(ctx context.Context, service string, op func(context.Context) error) error {
	if contextx.BreakerBypassFromContext(ctx) {
		return op(ctx)
	}

	mb := m.lookup(service)
	p, err := mb.breaker.Admit()
	if err != nil {
		if m.observer != nil {
			m.observer.OnRejection(service)
		}
		mb.rejectLog.Do(func() {
			m.log.Warn("breaker rejected call",
				zap.String("service", service),
				zap.String("request_id", contextx.RequestIDFromContext(ctx)),
				zap.Error(err))
		})
		return err
	}

	settled := false
	defer func() {
		if !settled {
			mb.breaker.RecordFailure(p)
		}
	}()

	if err := op(ctx); err != nil {
		settled = true
		mb.breaker.RecordFailure(p)
		return err
	}
	settled = true
	mb.breaker.RecordSuccess(p)
	return nil
}

// Execute runs op through the service's breaker and returns its value.
// It is the generic companion to [Manager.Do]; the zero value of T is
// returned on rejection or upstream failure.
func Execute[T any](ctx context.Context, m *Manager, service string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := m.Do(ctx, service, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Stats returns a snapshot of every registered breaker, keyed by
// service name.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.breakers))
	for service, mb := range m.breakers {
		out[service] = mb.breaker.Stats()
	}
	return out
}

// Reset drops every registered breaker. Services re-register lazily on
// their next call.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.breakers = make(map[string]*managedBreaker)
	m.mu.Unlock()
}
