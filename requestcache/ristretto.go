package requestcache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoStore is a bounded in-process Store backed by ristretto, for
// high-cardinality key spaces where an unbounded map would be a leak.
// Admission may drop or evict entries under pressure; callers only lose
// a recompute, never correctness.
type RistrettoStore[V any] struct {
	rc *ristretto.Cache[string, V]
}

// NewRistrettoStore creates a store bounded to roughly maxEntries (each
// entry has a cost of 1).
func NewRistrettoStore[V any](maxEntries int64) (*RistrettoStore[V], error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoStore[V]{rc: rc}, nil
}

// Get retrieves a value by key.
func (s *RistrettoStore[V]) Get(key string) (V, bool) {
	return s.rc.Get(key)
}

// Set stores a value under key. Writes are flushed before returning so a
// caller observes its own write.
func (s *RistrettoStore[V]) Set(key string, v V, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0 // ristretto rejects negative TTLs; store without expiry
	}
	s.rc.SetWithTTL(key, v, 1, ttl)
	s.rc.Wait()
}

// Delete removes a key.
func (s *RistrettoStore[V]) Delete(key string) {
	s.rc.Del(key)
	s.rc.Wait()
}

// Clear removes everything.
func (s *RistrettoStore[V]) Clear() {
	s.rc.Clear()
}

// Len reports 0: ristretto does not expose an entry count.
func (s *RistrettoStore[V]) Len() int { return 0 }

// Close releases the store's internal goroutines.
func (s *RistrettoStore[V]) Close() {
	s.rc.Close()
}
