package connector

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outguard/outguard/breaker"
	"github.com/outguard/outguard/contextx"
)

var (
	_ Completer = (*GuardedCompleter)(nil)
	_ Messenger = (*GuardedMessenger)(nil)
)

// WrapperOption customizes a guarded wrapper.
type WrapperOption func(*wrapperOptions)

type wrapperOptions struct {
	service string
	cfg     *breaker.Config
	log     *zap.Logger
	tracer  trace.Tracer
}

// WithService overrides the breaker service name. By default the
// wrapper uses the inner connector's Name, so connectors sharing a name
// share a breaker.
func WithService(service string) WrapperOption {
	return func(o *wrapperOptions) { o.service = service }
}

// WithConfig registers a custom breaker config for the service at
// construction time. Construction fails if the config is invalid.
func WithConfig(cfg breaker.Config) WrapperOption {
	return func(o *wrapperOptions) { o.cfg = &cfg }
}

// WithLogger sets the logger used for best-effort failure reports.
func WithLogger(log *zap.Logger) WrapperOption {
	return func(o *wrapperOptions) { o.log = log }
}

// WithTracer wraps critical operations in client spans.
func WithTracer(tracer trace.Tracer) WrapperOption {
	return func(o *wrapperOptions) { o.tracer = tracer }
}

// guard holds the pieces shared by the guarded wrappers.
type guard struct {
	service string
	mgr     *breaker.Manager
	log     *zap.Logger
	tracer  trace.Tracer

	bestEffortLog rate.Sometimes
}

func newGuard(name string, mgr *breaker.Manager, opts []WrapperOption) (*guard, error) {
	var o wrapperOptions
	for _, opt := range opts {
		opt(&o)
	}
	service := o.service
	if service == "" {
		service = name
	}
	if o.cfg != nil {
		if err := mgr.Register(service, *o.cfg); err != nil {
			return nil, err
		}
	}
	log := o.log
	if log == nil {
		log = zap.NewNop()
	}
	return &guard{
		service:       service,
		mgr:           mgr,
		log:           log,
		tracer:        o.tracer,
		bestEffortLog: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}, nil
}

// guardedCall runs a critical operation through the service's breaker,
// inside a client span when a tracer is configured. Rejections surface
// as *breaker.OpenError before the inner connector is touched.
func guardedCall[T any](ctx context.Context, g *guard, opName string, op func(context.Context) (T, error)) (T, error) {
	ctx, span := g.startSpan(ctx, opName)
	v, err := breaker.Execute(ctx, g.mgr, g.service, op)
	finishSpan(span, err)
	return v, err
}

// bestEffort runs op outside the breaker. Failures are logged and
// swallowed: the call neither trips the circuit nor reports an error,
// and an open circuit does not gate it.
func (g *guard) bestEffort(ctx context.Context, opName string, op func(context.Context) error) error {
	if err := op(ctx); err != nil {
		g.bestEffortLog.Do(func() {
			g.log.Warn("best-effort connector call failed",
				zap.String("service", g.service),
				zap.String("operation", opName),
				zap.String("request_id", contextx.RequestIDFromContext(ctx)),
				zap.Error(err))
		})
	}
	return nil
}

func (g *guard) startSpan(ctx context.Context, opName string) (context.Context, trace.Span) {
	if g.tracer == nil {
		return ctx, nil
	}
	return g.tracer.Start(ctx, g.service+"."+opName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("connector.service", g.service),
			attribute.String("connector.operation", opName),
		))
}

func finishSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// stats reports the breaker snapshot for the service plus the inner
// connector's own stats when it exposes them.
func (g *guard) stats(inner any) map[string]any {
	out := map[string]any{
		"service": g.service,
		"circuit": g.mgr.Lookup(g.service).Stats(),
	}
	if sr, ok := inner.(StatsReporter); ok {
		out["connector"] = sr.ConnectorStats()
	}
	return out
}

// GuardedCompleter wraps a Completer with circuit breaking. It is
// itself a Completer, so call sites swap it in unchanged.
type GuardedCompleter struct {
	inner Completer
	g     *guard
}

// NewGuardedCompleter wraps inner with the breaker mgr manages for its
// service name (or the WithService override).
func NewGuardedCompleter(inner Completer, mgr *breaker.Manager, opts ...WrapperOption) (*GuardedCompleter, error) {
	g, err := newGuard(inner.Name(), mgr, opts)
	if err != nil {
		return nil, err
	}
	return &GuardedCompleter{inner: inner, g: g}, nil
}

// Name returns the inner connector's name.
func (c *GuardedCompleter) Name() string { return c.inner.Name() }

// Complete is critical: it runs through the breaker, and provider
// errors pass through unchanged.
func (c *GuardedCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return guardedCall(ctx, c.g, "complete", func(ctx context.Context) (*Completion, error) {
		return c.inner.Complete(ctx, req)
	})
}

// Stats reports the breaker snapshot plus the inner connector's stats
// when it implements StatsReporter.
func (c *GuardedCompleter) Stats() map[string]any { return c.g.stats(c.inner) }

// GuardedMessenger wraps a Messenger with circuit breaking on the
// delivery path. It is itself a Messenger.
type GuardedMessenger struct {
	inner Messenger
	g     *guard
}

// NewGuardedMessenger wraps inner with the breaker mgr manages for its
// service name (or the WithService override).
func NewGuardedMessenger(inner Messenger, mgr *breaker.Manager, opts ...WrapperOption) (*GuardedMessenger, error) {
	g, err := newGuard(inner.Name(), mgr, opts)
	if err != nil {
		return nil, err
	}
	return &GuardedMessenger{inner: inner, g: g}, nil
}

// Name returns the inner connector's name.
func (m *GuardedMessenger) Name() string { return m.inner.Name() }

// Send is critical: it runs through the breaker, and platform errors
// pass through unchanged.
func (m *GuardedMessenger) Send(ctx context.Context, msg Message) (*Receipt, error) {
	return guardedCall(ctx, m.g, "send", func(ctx context.Context) (*Receipt, error) {
		return m.inner.Send(ctx, msg)
	})
}

// SendTyping is best effort: it always returns nil and never touches
// the breaker.
func (m *GuardedMessenger) SendTyping(ctx context.Context, channel string) error {
	return m.g.bestEffort(ctx, "send_typing", func(ctx context.Context) error {
		return m.inner.SendTyping(ctx, channel)
	})
}

// SetWebhook is best effort, like SendTyping.
func (m *GuardedMessenger) SetWebhook(ctx context.Context, url string) error {
	return m.g.bestEffort(ctx, "set_webhook", func(ctx context.Context) error {
		return m.inner.SetWebhook(ctx, url)
	})
}

// Stats reports the breaker snapshot plus the inner connector's stats
// when it implements StatsReporter.
func (m *GuardedMessenger) Stats() map[string]any { return m.g.stats(m.inner) }
