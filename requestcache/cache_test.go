package requestcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrComputeCollapsesConcurrentCallers(t *testing.T) {
	c := New[string]()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(context.Context) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		return "value", nil
	}

	const callers = 8
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.GetOrCompute(t.Context(), "k", time.Minute, compute)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(t.Context(), "k", time.Minute, compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond) // let the callers pile up on the flight
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("compute called %d times, want 1", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != "value" {
			t.Fatalf("caller %d: got %q, want %q", i, results[i], "value")
		}
	}

	st := c.Stats()
	if st.Misses != 1 || st.Hits != callers-1 {
		t.Fatalf("stats: got %d hits / %d misses, want %d / 1", st.Hits, st.Misses, callers-1)
	}
}

func TestGetOrComputeFlightOnlyTTL(t *testing.T) {
	c := New[int]()

	var calls atomic.Int32
	compute := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	// ttl == 0: nothing is retained, every new flight recomputes.
	for want := 1; want <= 3; want++ {
		v, err := c.GetOrCompute(t.Context(), "k", 0, compute)
		if err != nil {
			t.Fatalf("GetOrCompute %d: %v", want, err)
		}
		if v != want {
			t.Fatalf("got %d, want %d", v, want)
		}
	}
	if st := c.Stats(); st.Size != 0 {
		t.Fatalf("Size: got %d, want 0", st.Size)
	}
}

func TestGetOrComputeErrorReachesAllWaiters(t *testing.T) {
	c := New[string]()
	errBoom := errors.New("boom")

	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = c.GetOrCompute(t.Context(), "k", time.Minute, func(context.Context) (string, error) {
			close(started)
			<-release
			return "", errBoom
		})
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = c.GetOrCompute(t.Context(), "k", time.Minute, func(context.Context) (string, error) {
			t.Error("joiner must not compute")
			return "", nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != errBoom {
			t.Fatalf("waiter %d: expected the compute error, got %v", i, err)
		}
	}

	// Nothing was cached; an immediate retry recomputes and can succeed.
	v, err := c.GetOrCompute(t.Context(), "k", time.Minute, func(context.Context) (string, error) {
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if v != "recovered" {
		t.Fatalf("retry: got %q, want %q", v, "recovered")
	}
}

func TestGetOrComputeTTLExpiry(t *testing.T) {
	store := NewMemoryStore[string]()
	now := time.Now()
	store.nowFunc = func() time.Time { return now }
	c := NewWithStore[string](store)

	var calls atomic.Int32
	compute := func(context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}

	for i := 0; i < 2; i++ {
		if _, err := c.GetOrCompute(t.Context(), "k", time.Minute, compute); err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("compute calls before expiry: got %d, want 1", n)
	}

	now = now.Add(time.Minute) // the entry expires exactly at its deadline

	if _, err := c.GetOrCompute(t.Context(), "k", time.Minute, compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("compute calls after expiry: got %d, want 2", n)
	}
}

func TestCacheGetSetDelete(t *testing.T) {
	c := New[int]()

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss")
	}
	c.Set("k", 7, 0)
	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Fatalf("got %d, %v; want 7, true", v, ok)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after delete")
	}

	// Direct reads and writes leave the hit/miss counters alone.
	if st := c.Stats(); st.Total != 0 {
		t.Fatalf("Total: got %d, want 0", st.Total)
	}
}

func TestDeleteDetachesInFlight(t *testing.T) {
	c := New[string]()

	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	var first string
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, _ = c.GetOrCompute(t.Context(), "k", time.Minute, func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
	}()
	<-started

	c.Delete("k") // detaches the running flight

	// A new caller starts a fresh computation instead of joining.
	var second string
	done := make(chan struct{})
	go func() {
		defer close(done)
		second, _ = c.GetOrCompute(t.Context(), "k", time.Minute, func(context.Context) (string, error) {
			return "new", nil
		})
	}()
	<-done

	close(release)
	wg.Wait()

	if first != "old" {
		t.Fatalf("existing waiter: got %q, want %q", first, "old")
	}
	if second != "new" {
		t.Fatalf("new caller: got %q, want %q", second, "new")
	}
	// The detached flight resolved for its waiter but must not have
	// overwritten the fresh result in the store.
	if v, ok := c.Get("k"); !ok || v != "new" {
		t.Fatalf("store: got %q, %v; want %q, true", v, ok, "new")
	}
}

func TestClearWipesStoreAndCounts(t *testing.T) {
	c := New[string]()

	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	if st := c.Stats(); st.Size != 2 {
		t.Fatalf("Size before clear: got %d, want 2", st.Size)
	}

	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected empty store after clear")
	}
	if st := c.Stats(); st.Size != 0 {
		t.Fatalf("Size after clear: got %d, want 0", st.Size)
	}
}

func TestCacheStats(t *testing.T) {
	c := New[string]()

	if st := c.Stats(); st.HitRate != 0 {
		t.Fatalf("HitRate with no traffic: got %g, want 0", st.HitRate)
	}

	seed := func(context.Context) (string, error) { return "v", nil }
	if _, err := c.GetOrCompute(t.Context(), "a", time.Minute, seed); err != nil { // miss
		t.Fatalf("GetOrCompute: %v", err)
	}
	if _, err := c.GetOrCompute(t.Context(), "a", time.Minute, seed); err != nil { // hit
		t.Fatalf("GetOrCompute: %v", err)
	}
	if _, err := c.GetOrCompute(t.Context(), "b", 0, seed); err != nil { // miss, flight-only
		t.Fatalf("GetOrCompute: %v", err)
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 || st.Total != 3 {
		t.Fatalf("stats: got %d hits / %d misses / %d total, want 1 / 2 / 3", st.Hits, st.Misses, st.Total)
	}
	if want := 1.0 / 3.0; st.HitRate != want {
		t.Fatalf("HitRate: got %g, want %g", st.HitRate, want)
	}
	if st.Size != 1 {
		t.Fatalf("Size: got %d, want 1", st.Size)
	}
}

func TestNamespacePartitionsSharedStore(t *testing.T) {
	store := NewMemoryStore[string]()
	a := NewWithStore[string](store, WithNamespace("a"))
	b := NewWithStore[string](store, WithNamespace("b"))

	a.Set("k", "from-a", time.Minute)
	if _, ok := b.Get("k"); ok {
		t.Fatal("namespaces must not share keys")
	}
	if v, ok := a.Get("k"); !ok || v != "from-a" {
		t.Fatalf("a.Get: got %q, %v; want %q, true", v, ok, "from-a")
	}
	if _, ok := store.Get("a:k"); !ok {
		t.Fatal("expected the namespaced key in the shared store")
	}
}
