package requestcache

import "time"

// TieredStore layers two stores: reads check the first level, then the
// second, backfilling second-level hits into the first; writes go to
// both. The typical pairing is a bounded in-process first level with a
// shared Redis second level.
type TieredStore[V any] struct {
	l1, l2 Store[V]
}

// NewTieredStore creates a two-level store.
func NewTieredStore[V any](l1, l2 Store[V]) *TieredStore[V] {
	return &TieredStore[V]{l1: l1, l2: l2}
}

// Get checks the first level, then the second. A second-level hit is
// backfilled into the first without expiry, since the original TTL is
// unknown; a bounded first level evicts it eventually.
func (s *TieredStore[V]) Get(key string) (V, bool) {
	if v, ok := s.l1.Get(key); ok {
		return v, true
	}
	v, ok := s.l2.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	s.l1.Set(key, v, 0)
	return v, true
}

// Set writes the value to the second level, then the first.
func (s *TieredStore[V]) Set(key string, v V, ttl time.Duration) {
	s.l2.Set(key, v, ttl)
	s.l1.Set(key, v, ttl)
}

// Delete removes the key from both levels.
func (s *TieredStore[V]) Delete(key string) {
	s.l2.Delete(key)
	s.l1.Delete(key)
}

// Clear clears both levels.
func (s *TieredStore[V]) Clear() {
	s.l2.Clear()
	s.l1.Clear()
}

// Len sums both levels; shared levels report 0 of their own.
func (s *TieredStore[V]) Len() int {
	return s.l1.Len() + s.l2.Len()
}
