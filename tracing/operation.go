package tracing

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/outguard/outguard"
)

// Operation returns a decorator that wraps any guarded operation in a
// span named name. If cfg is nil the decorator is a no-op passthrough.
func Operation(cfg *TracingConfig, name string) outguard.Decorator {
	if cfg == nil {
		return func(op outguard.Operation) outguard.Operation { return op }
	}
	return func(op outguard.Operation) outguard.Operation {
		return func(ctx context.Context) error {
			ctx, span := cfg.tracer().Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			err := op(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		}
	}
}
