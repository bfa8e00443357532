// Package compose provides ordered assembly for decorator chains: items
// are collected with an order value and emitted lowest-first.
package compose

import (
	"cmp"
	"slices"
)

// entry pairs an item with its execution order. Lower orders run first.
type entry[T any] struct {
	item  T
	order int
}

// Builder collects items with a deterministic execution order. The zero
// value is ready to use.
type Builder[T any] struct {
	entries []entry[T]
}

// Add registers an item with the given order.
func (b *Builder[T]) Add(order int, item T) {
	b.entries = append(b.entries, entry[T]{item: item, order: order})
}

// Items sorts the collected entries by order (stable, so equal orders
// keep insertion order) and returns the items lowest-first.
func (b *Builder[T]) Items() []T {
	slices.SortStableFunc(b.entries, func(a, c entry[T]) int {
		return cmp.Compare(a.order, c.order)
	})

	out := make([]T, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e.item)
	}
	return out
}
