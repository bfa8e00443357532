// Package statsvc exposes breaker and cache statistics over gRPC as the
// outguard.v1.Stats service. It uses [grpc.ServiceDesc] registration so
// that no protobuf code generation is required.
//
// Because the request/response types are plain Go structs (not generated
// protobuf messages), the package registers a thin codec wrapper that
// JSON-encodes Stats types while delegating all other messages to the
// standard proto codec. Import this package (or call [Register]) to
// activate the codec automatically.
package statsvc

import (
	"cmp"
	"context"
	"slices"

	"google.golang.org/grpc"

	"github.com/outguard/outguard/breaker"
	"github.com/outguard/outguard/requestcache"
)

// GetRequest is the input for the Get method.
type GetRequest struct{}

// BreakerStats is the wire form of a breaker snapshot.
type BreakerStats struct {
	Service           string `json:"service"`
	State             string `json:"state"`
	WindowFailures    int    `json:"window_failures"`
	OpenedAtUnix      int64  `json:"opened_at_unix,omitempty"`
	HalfOpenAttempts  int    `json:"half_open_attempts"`
	HalfOpenSuccesses int    `json:"half_open_successes"`
	HalfOpenInFlight  int    `json:"half_open_in_flight"`
}

// CacheStats is the wire form of a request cache snapshot.
type CacheStats struct {
	Name    string  `json:"name"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
}

// GetResponse is the full snapshot, breakers sorted by service name.
type GetResponse struct {
	Breakers []BreakerStats `json:"breakers"`
	Caches   []CacheStats   `json:"caches,omitempty"`
}

// HealthzRequest is the input for the Healthz method.
type HealthzRequest struct{}

// HealthzResponse reports overall health: ok unless any breaker is open.
type HealthzResponse struct {
	Ok           bool     `json:"ok"`
	OpenServices []string `json:"open_services,omitempty"`
}

// Handler is the interface a Stats service implementation must satisfy.
type Handler interface {
	Get(ctx context.Context, req *GetRequest) (*GetResponse, error)
	Healthz(ctx context.Context, req *HealthzRequest) (*HealthzResponse, error)
}

// StatsSource is the read side of a request cache. Every
// *requestcache.Cache satisfies it.
type StatsSource interface {
	Stats() requestcache.Stats
}

// HandlerOption customizes the handler returned by NewHandler.
type HandlerOption func(*statsHandler)

// WithCache includes a named cache in Get snapshots.
func WithCache(name string, src StatsSource) HandlerOption {
	return func(h *statsHandler) {
		h.caches = append(h.caches, namedCache{name: name, src: src})
	}
}

// NewHandler returns a Handler that snapshots the manager's live
// registry on every call.
func NewHandler(mgr *breaker.Manager, opts ...HandlerOption) Handler {
	h := &statsHandler{mgr: mgr}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type namedCache struct {
	name string
	src  StatsSource
}

type statsHandler struct {
	mgr    *breaker.Manager
	caches []namedCache
}

func (h *statsHandler) Get(_ context.Context, _ *GetRequest) (*GetResponse, error) {
	stats := h.mgr.Stats()
	out := &GetResponse{Breakers: make([]BreakerStats, 0, len(stats))}
	for _, st := range stats {
		bs := BreakerStats{
			Service:           st.Service,
			State:             st.State.String(),
			WindowFailures:    st.WindowFailures,
			HalfOpenAttempts:  st.HalfOpenAttempts,
			HalfOpenSuccesses: st.HalfOpenSuccesses,
			HalfOpenInFlight:  st.HalfOpenInFlight,
		}
		if !st.OpenedAt.IsZero() {
			bs.OpenedAtUnix = st.OpenedAt.Unix()
		}
		out.Breakers = append(out.Breakers, bs)
	}
	slices.SortFunc(out.Breakers, func(a, b BreakerStats) int {
		return cmp.Compare(a.Service, b.Service)
	})

	for _, c := range h.caches {
		s := c.src.Stats()
		out.Caches = append(out.Caches, CacheStats{
			Name:    c.name,
			Hits:    s.Hits,
			Misses:  s.Misses,
			HitRate: s.HitRate,
			Size:    s.Size,
		})
	}
	return out, nil
}

func (h *statsHandler) Healthz(_ context.Context, _ *HealthzRequest) (*HealthzResponse, error) {
	var open []string
	for service, st := range h.mgr.Stats() {
		if st.State == breaker.StateOpen {
			open = append(open, service)
		}
	}
	slices.Sort(open)
	return &HealthzResponse{Ok: len(open) == 0, OpenServices: open}, nil
}

// ServiceDesc is the grpc.ServiceDesc for the outguard.v1.Stats service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "outguard.v1.Stats",
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Get",
			Handler:    getHandler,
		},
		{
			MethodName: "Healthz",
			Handler:    healthzHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "outguard/v1/stats.proto",
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Get(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/outguard.v1.Stats/Get",
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Get(ctx, r.(*GetRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func healthzHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(HealthzRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Healthz(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/outguard.v1.Stats/Healthz",
	}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(Handler).Healthz(ctx, r.(*HealthzRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Register registers a Stats service implementation on the given gRPC
// server.
func Register(s *grpc.Server, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}
