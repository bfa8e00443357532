package statsvc

import (
	"encoding/json"
	"fmt"

	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/protobuf/proto"
)

// statsMsg is a marker interface satisfied by the Stats service's
// request and response types.
type statsMsg interface {
	isStatsMsg()
}

func (*GetRequest) isStatsMsg()      {}
func (*GetResponse) isStatsMsg()     {}
func (*HealthzRequest) isStatsMsg()  {}
func (*HealthzResponse) isStatsMsg() {}

func init() {
	// Replace the default proto codec with a thin wrapper that
	// JSON-encodes Stats types and delegates all other (protobuf)
	// messages to proto.Marshal.
	grpcEncoding.RegisterCodec(statsCodec{})
}

// statsCodec wraps the default proto codec. It handles the Stats
// service's types via JSON and delegates all other types to
// proto.Marshal/Unmarshal.
type statsCodec struct{}

func (statsCodec) Name() string { return "proto" }

func (statsCodec) Marshal(v any) ([]byte, error) {
	if _, ok := v.(statsMsg); ok {
		return json.Marshal(v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("stats codec: unsupported message type %T", v)
}

func (statsCodec) Unmarshal(data []byte, v any) error {
	if _, ok := v.(statsMsg); ok {
		return json.Unmarshal(data, v)
	}
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("stats codec: unsupported message type %T", v)
}
