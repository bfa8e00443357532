// Package outguard layers circuit breaking and request deduplication
// over calls to flaky external services. The subpackages provide the
// building blocks (breaker, requestcache, connector, policy,
// interceptors); this package ties them together behind a small facade
// built from composable operation decorators.
package outguard

import "context"

// Operation is the minimal unit of work that decorators wrap.
type Operation func(ctx context.Context) error

// Decorator transforms an Operation, allowing pre/post behavior composition.
type Decorator func(Operation) Operation

// Chain composes decorators from left to right, i.e., Chain(A, B)(op) => A(B(op)).
func Chain(ds ...Decorator) Decorator {
	return func(next Operation) Operation {
		for i := len(ds) - 1; i >= 0; i-- {
			next = ds[i](next)
		}
		return next
	}
}

// Wrap applies the decorator chain to an operation and returns the wrapped operation.
func Wrap(op Operation, ds ...Decorator) Operation {
	if len(ds) == 0 {
		return op
	}
	return Chain(ds...)(op)
}
