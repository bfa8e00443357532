package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/outguard/outguard/contextx"
	"github.com/outguard/outguard/requestcache"
)

// DedupOption customizes the dedup client interceptor.
type DedupOption func(*dedupOptions)

type dedupOptions struct {
	ttl     time.Duration
	methods map[string]struct{}
}

// WithTTL keeps resolved replies cached for ttl after the RPC
// completes. The default of zero deduplicates in-flight calls only.
func WithTTL(ttl time.Duration) DedupOption {
	return func(o *dedupOptions) { o.ttl = ttl }
}

// WithMethods restricts deduplication to the listed full method names.
// Without it every proto unary RPC on the connection is deduplicated,
// so wrap only clients whose methods are idempotent.
func WithMethods(methods ...string) DedupOption {
	return func(o *dedupOptions) {
		o.methods = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			o.methods[m] = struct{}{}
		}
	}
}

// DedupUnaryClient returns a unary client interceptor that collapses
// identical concurrent RPCs into one upstream call. Identity is the
// full method name plus the marshaled request; the marshaled reply is
// shared with every collapsed caller. Failed RPCs are never retained:
// the error goes to all callers and the next identical call goes
// upstream again. contextx.WithDedupTTL overrides the retention TTL
// per call. Non-proto requests pass through untouched.
func DedupUnaryClient(c *requestcache.Cache[[]byte], opts ...DedupOption) grpc.UnaryClientInterceptor {
	var o dedupOptions
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
		if o.methods != nil {
			if _, ok := o.methods[method]; !ok {
				return invoker(ctx, method, req, reply, cc, callOpts...)
			}
		}
		reqMsg, reqOK := req.(proto.Message)
		replyMsg, replyOK := reply.(proto.Message)
		if !reqOK || !replyOK {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}
		body, err := proto.Marshal(reqMsg)
		if err != nil {
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}

		ttl := o.ttl
		if d, ok := contextx.DedupTTLFromContext(ctx); ok {
			ttl = d
		}

		wire, err := c.GetOrCompute(ctx, method+":"+string(body), ttl, func(ctx context.Context) ([]byte, error) {
			if err := invoker(ctx, method, req, reply, cc, callOpts...); err != nil {
				return nil, err
			}
			return proto.Marshal(replyMsg)
		})
		if err != nil {
			return err
		}
		return proto.Unmarshal(wire, replyMsg)
	}
}
