package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"

	"github.com/outguard/outguard"
)

func TestOperation_WrapsSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)

	var called bool
	op := outguard.Operation(func(context.Context) error {
		called = true
		return nil
	})

	if err := Operation(cfg, "refresh-cache")(op)(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("operation was not called")
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "refresh-cache" {
		t.Fatalf("span name = %q, want refresh-cache", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Fatalf("status = %v, want ok", spans[0].Status().Code)
	}
}

func TestOperation_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)

	boom := errors.New("boom")
	op := outguard.Operation(func(context.Context) error { return boom })

	if err := Operation(cfg, "flaky")(op)(t.Context()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("status = %v, want error", spans[0].Status().Code)
	}
}

func TestOperation_NilConfig_Passthrough(t *testing.T) {
	var called bool
	op := outguard.Operation(func(context.Context) error {
		called = true
		return nil
	})

	if err := Operation(nil, "noop")(op)(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("operation was not called")
	}
}
