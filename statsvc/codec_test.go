package statsvc

import (
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestCodecRoundTripsStatsTypes(t *testing.T) {
	in := &HealthzResponse{Ok: false, OpenServices: []string{"alpha"}}
	data, err := statsCodec{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := new(HealthzResponse)
	if err := (statsCodec{}).Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Ok || len(out.OpenServices) != 1 || out.OpenServices[0] != "alpha" {
		t.Fatalf("round trip = %+v", out)
	}
}

func TestCodecFallsBackToProto(t *testing.T) {
	in := wrapperspb.String("acorn")
	data, err := statsCodec{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := new(wrapperspb.StringValue)
	if err := (statsCodec{}).Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Value != "acorn" {
		t.Fatalf("round trip = %q, want acorn", out.Value)
	}
}

func TestCodecRejectsUnknownTypes(t *testing.T) {
	if _, err := (statsCodec{}).Marshal(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if err := (statsCodec{}).Unmarshal(nil, 42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
