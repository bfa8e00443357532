package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"

	"github.com/outguard/outguard/breaker"
)

// BreakerOption customizes the breaker client interceptor.
type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	namer func(fullMethod string) string
}

// WithServiceNamer overrides how a breaker service name is derived from
// a full method name. The default uses the gRPC service component, so
// all methods of one service share a breaker.
func WithServiceNamer(f func(fullMethod string) string) BreakerOption {
	return func(o *breakerOptions) { o.namer = f }
}

// BreakerUnaryClient returns a unary client interceptor that routes
// every outbound RPC through the breaker mgr manages for the target
// service. Rejections surface as *breaker.OpenError without the RPC
// going out; upstream errors pass through unchanged and count as
// failures.
func BreakerUnaryClient(mgr *breaker.Manager, opts ...BreakerOption) grpc.UnaryClientInterceptor {
	o := breakerOptions{namer: serviceFromMethod}
	for _, opt := range opts {
		opt(&o)
	}

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		callOpts ...grpc.CallOption,
	) error {
		return mgr.Do(ctx, o.namer(method), func(ctx context.Context) error {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		})
	}
}

// serviceFromMethod extracts the service component from a full method
// name of the form "/package.Service/Method".
func serviceFromMethod(fullMethod string) string {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i]
	}
	return name
}
