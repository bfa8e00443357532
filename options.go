package outguard

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/outguard/outguard/breaker"
	"github.com/outguard/outguard/policy"
)

// Decorator execution order used by the guard's chain. Lower values run
// first, i.e. outermost.
const (
	OrderRequestID = 100
	OrderTracing   = 200
	OrderBreaker   = 300
)

// Option configures a Guard.
type Option func(*config)

// WithLogger sets the logger handed to the breaker manager and wrapped
// connectors. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithBreakerDefaults sets the breaker configuration for services
// without a more specific policy.
func WithBreakerDefaults(cfg breaker.Config) Option {
	return func(c *config) { c.defaults = &cfg }
}

// WithPolicy resolves per-service breaker configurations through the
// given resolver before falling back to the defaults.
func WithPolicy(r *policy.Resolver) Option {
	return func(c *config) { c.source = r }
}

// WithObserver registers an observer for breaker state changes and
// rejections. May be passed multiple times.
func WithObserver(o breaker.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, o) }
}

// WithMetrics registers Prometheus collectors for the guard's breakers
// on reg and feeds transition/rejection counters from the manager.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.registry = reg }
}

// WithRequestIDs ensures every guarded operation carries a request ID,
// so rejection logs can be correlated with callers.
func WithRequestIDs() Option {
	return WithDecorator(OrderRequestID, RequestID())
}

// WithDecorator inserts a custom decorator into the guard's chain at
// the given order. Use the Order constants to position it relative to
// the built-in decorators.
func WithDecorator(order int, d Decorator) Option {
	return func(c *config) {
		c.decorators = append(c.decorators, orderedDecorator{order: order, d: d})
	}
}
