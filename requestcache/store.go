package requestcache

import (
	"sync"
	"time"
)

// Store holds resolved values between flights. Implementations must be
// safe for concurrent use; expired entries behave as misses.
type Store[V any] interface {
	// Get retrieves a value by key. The boolean indicates a hit.
	Get(key string) (V, bool)

	// Set stores a value under key. A ttl <= 0 stores it without
	// automatic expiry.
	Set(key string, v V, ttl time.Duration)

	// Delete removes a key.
	Delete(key string)

	// Clear removes everything.
	Clear()

	// Len reports locally held entries. Stores shared between processes
	// report 0.
	Len() int
}

type memoryEntry[V any] struct {
	val       V
	expiresAt time.Time // zero when the entry does not expire
}

// MemoryStore is the default Store: a mutex-guarded map with lazy
// expiry. TTLs are exact on read and Len counts only live entries.
type MemoryStore[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	nowFunc func() time.Time // for testing; defaults to time.Now
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{
		entries: make(map[string]memoryEntry[V]),
		nowFunc: time.Now,
	}
}

// Get retrieves a value by key, dropping it when its deadline has passed.
func (s *MemoryStore[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expiresAt.IsZero() && !s.nowFunc().Before(e.expiresAt) {
		delete(s.entries, key)
		var zero V
		return zero, false
	}
	return e.val, true
}

// Set stores a value under key. A ttl <= 0 stores it without expiry.
func (s *MemoryStore[V]) Set(key string, v V, ttl time.Duration) {
	e := memoryEntry[V]{val: v}
	if ttl > 0 {
		e.expiresAt = s.nowFunc().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Delete removes a key.
func (s *MemoryStore[V]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear removes everything.
func (s *MemoryStore[V]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry[V])
	s.mu.Unlock()
}

// Len reports the number of unexpired entries.
func (s *MemoryStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	n := 0
	for _, e := range s.entries {
		if e.expiresAt.IsZero() || now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
