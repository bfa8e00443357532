package outguard

import (
	"context"

	"go.uber.org/zap"

	"github.com/outguard/outguard/breaker"
	"github.com/outguard/outguard/connector"
	"github.com/outguard/outguard/internal/compose"
	"github.com/outguard/outguard/metrics"
)

// Guard is the top-level entry point: one breaker manager shared by
// every wrapped connector, plus a decorator chain applied around
// guarded operations.
//
// Connectors are wrapped through [Guard.Completer] and
// [Guard.Messenger]; arbitrary operations run through the decorator
// returned by [Guard.Breaker]:
//
//	g := outguard.New(outguard.DefaultOptions()...)
//	charge := g.Breaker("billing")(func(ctx context.Context) error {
//		return chargeCard(ctx)
//	})
//	err := charge(ctx)
type Guard struct {
	manager    *breaker.Manager
	log        *zap.Logger
	metrics    *metrics.Metrics
	decorators []orderedDecorator
}

// managerStats defers manager access to scrape time, so the metrics
// collector can be registered before the manager exists.
type managerStats struct{ g *Guard }

func (s managerStats) Stats() map[string]breaker.Stats { return s.g.manager.Stats() }

// New creates a Guard by applying the supplied functional [Option]
// values. Decorator execution order is determined by fixed priority
// levels (see the Order constants), not by the order options are
// passed.
//
// Example:
//
//	g := outguard.New(
//		outguard.WithLogger(log),
//		outguard.WithBreakerDefaults(cfg),
//		outguard.WithPolicy(resolver),
//		outguard.WithMetrics(prometheus.DefaultRegisterer),
//	)
func New(opts ...Option) *Guard {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	log := cfg.log
	if log == nil {
		log = zap.NewNop()
	}
	g := &Guard{log: log, decorators: cfg.decorators}

	observers := cfg.observers
	if cfg.registry != nil {
		g.metrics = metrics.New(cfg.registry, managerStats{g})
		observers = append(observers, g.metrics.Observer())
	}

	mgrOpts := []breaker.ManagerOption{breaker.WithLogger(log)}
	if cfg.defaults != nil {
		mgrOpts = append(mgrOpts, breaker.WithDefaults(*cfg.defaults))
	}
	if cfg.source != nil {
		mgrOpts = append(mgrOpts, breaker.WithConfigSource(cfg.source))
	}
	if len(observers) > 0 {
		mgrOpts = append(mgrOpts, breaker.WithObserver(breaker.MultiObserver(observers...)))
	}
	g.manager = breaker.NewManager(mgrOpts...)

	return g
}

// Manager returns the breaker registry shared by everything the guard
// wraps.
func (g *Guard) Manager() *breaker.Manager { return g.manager }

// Completer wraps an AI completion provider with the guard's breaker
// manager and logger. Per-wrapper options may override both.
func (g *Guard) Completer(inner connector.Completer, opts ...connector.WrapperOption) (*connector.GuardedCompleter, error) {
	return connector.NewGuardedCompleter(inner, g.manager, g.wrapperOpts(opts)...)
}

// Messenger wraps a chat platform connector with the guard's breaker
// manager and logger. Per-wrapper options may override both.
func (g *Guard) Messenger(inner connector.Messenger, opts ...connector.WrapperOption) (*connector.GuardedMessenger, error) {
	return connector.NewGuardedMessenger(inner, g.manager, g.wrapperOpts(opts)...)
}

func (g *Guard) wrapperOpts(opts []connector.WrapperOption) []connector.WrapperOption {
	return append([]connector.WrapperOption{connector.WithLogger(g.log)}, opts...)
}

// Breaker returns the guard's full decorator chain for a service: the
// configured decorators plus circuit breaking at OrderBreaker, composed
// lowest order outermost.
func (g *Guard) Breaker(service string) Decorator {
	var b compose.Builder[Decorator]
	for _, od := range g.decorators {
		b.Add(od.order, od.d)
	}
	b.Add(OrderBreaker, g.breakerDecorator(service))
	return Chain(b.Items()...)
}

func (g *Guard) breakerDecorator(service string) Decorator {
	return func(op Operation) Operation {
		return func(ctx context.Context) error {
			return g.manager.Do(ctx, service, op)
		}
	}
}
