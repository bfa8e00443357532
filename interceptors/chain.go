package interceptors

import (
	"context"

	"google.golang.org/grpc"
)

// ChainUnaryClient composes multiple unary client interceptors into a
// single one. Interceptors execute in the order they appear.
func ChainUnaryClient(ics ...grpc.UnaryClientInterceptor) grpc.UnaryClientInterceptor {
	switch len(ics) {
	case 0:
		return nil
	case 1:
		return ics[0]
	}

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		curr := invoker
		for i := len(ics) - 1; i > 0; i-- {
			next := curr
			ic := ics[i]
			curr = func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
				return ic(ctx, method, req, reply, cc, next, opts...)
			}
		}
		return ics[0](ctx, method, req, reply, cc, curr, opts...)
	}
}

// ChainStreamClient composes multiple stream client interceptors into a
// single one. Interceptors execute in the order they appear.
func ChainStreamClient(ics ...grpc.StreamClientInterceptor) grpc.StreamClientInterceptor {
	switch len(ics) {
	case 0:
		return nil
	case 1:
		return ics[0]
	}

	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		curr := streamer
		for i := len(ics) - 1; i > 0; i-- {
			next := curr
			ic := ics[i]
			curr = func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
				return ic(ctx, desc, cc, method, next, opts...)
			}
		}
		return ics[0](ctx, desc, cc, method, curr, opts...)
	}
}
