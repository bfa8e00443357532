package requestcache

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func redisStore(t *testing.T) *RedisStore[string] {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(t.Context()).Err(); err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}
	return NewRedisStore[string](client, nil, WithKeyPrefix("outguard:test:"+t.Name()+":"))
}

func TestRedisStoreGetSet(t *testing.T) {
	s := redisStore(t)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected miss")
	}

	s.Set("k", "v1", 10*time.Second)
	if v, ok := s.Get("k"); !ok || v != "v1" {
		t.Fatalf("got %q, %v; want %q, true", v, ok, "v1")
	}

	s.Delete("k")
	if _, ok := s.Get("k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisStoreClear(t *testing.T) {
	s := redisStore(t)

	s.Set("a", "1", time.Minute)
	s.Set("b", "2", time.Minute)
	s.Clear()

	if _, ok := s.Get("a"); ok {
		t.Fatal("expected empty store after clear")
	}
	if _, ok := s.Get("b"); ok {
		t.Fatal("expected empty store after clear")
	}
}

func TestRedisStoreThroughCache(t *testing.T) {
	s := redisStore(t)
	c := NewWithStore[string](s)

	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		return "resolved", nil
	}

	v, err := c.GetOrCompute(t.Context(), "k", 30*time.Second, compute)
	if err != nil {
		t.Fatalf("GetOrCompute 1: %v", err)
	}
	if v != "resolved" {
		t.Fatalf("got %q, want %q", v, "resolved")
	}

	// Served from Redis via the JSON codec; compute not called again.
	v, err = c.GetOrCompute(t.Context(), "k", 30*time.Second, compute)
	if err != nil {
		t.Fatalf("GetOrCompute 2: %v", err)
	}
	if v != "resolved" {
		t.Fatalf("got %q, want %q", v, "resolved")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("compute called %d times, want 1", n)
	}
}

func TestRedisStoreFailSoft(t *testing.T) {
	// Bogus address: reads are misses, writes are discarded, nothing
	// panics and nothing errors.
	client := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStore[string](client, nil, WithRedisTimeout(500*time.Millisecond))

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected miss on unreachable Redis")
	}
	s.Set("k", "v", time.Second)
	s.Delete("k")
	s.Clear()
}
