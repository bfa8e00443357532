package outguard

import (
	"context"
	"testing"

	"github.com/outguard/outguard/contextx"
)

func tagDecorator(tag string, log *[]string) Decorator {
	return func(op Operation) Operation {
		return func(ctx context.Context) error {
			*log = append(*log, tag+":before")
			err := op(ctx)
			*log = append(*log, tag+":after")
			return err
		}
	}
}

func TestChainOrder(t *testing.T) {
	var log []string
	op := func(context.Context) error {
		log = append(log, "op")
		return nil
	}

	wrapped := Wrap(op, tagDecorator("A", &log), tagDecorator("B", &log))
	if err := wrapped(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"A:before", "B:before", "op", "B:after", "A:after"}
	if len(log) != len(expected) {
		t.Fatalf("log mismatch: got %v, want %v", log, expected)
	}
	for i := range expected {
		if log[i] != expected[i] {
			t.Fatalf("log[%d] = %q, want %q\nfull: %v", i, log[i], expected[i], log)
		}
	}
}

func TestWrapWithoutDecorators(t *testing.T) {
	called := false
	op := func(context.Context) error {
		called = true
		return nil
	}
	if err := Wrap(op)(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("operation was not called")
	}
}

func TestRequestIDDecorator(t *testing.T) {
	var seen string
	op := func(ctx context.Context) error {
		seen = contextx.RequestIDFromContext(ctx)
		return nil
	}

	if err := RequestID()(op)(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 32 {
		t.Fatalf("request id = %q, want 32 hex chars", seen)
	}

	// An existing ID is preserved.
	ctx := contextx.WithRequestID(t.Context(), "fixed")
	if err := RequestID()(op)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "fixed" {
		t.Fatalf("request id = %q, want fixed", seen)
	}
}
