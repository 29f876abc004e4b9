package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/charles-997/budge/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[core.Money](10, time.Minute)

	if _, ok := c.Get("b1"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set("b1", core.Cents(2500))
	got, ok := c.Get("b1")
	if !ok || got != core.Cents(2500) {
		t.Fatalf("Get = %v, %v; want 25.00, true", got, ok)
	}

	c.Set("b1", core.Cents(100))
	if got, _ := c.Get("b1"); got != core.Cents(100) {
		t.Errorf("overwrite: got %v", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}

	c.Delete("b1")
	if _, ok := c.Get("b1"); ok {
		t.Error("expected miss after Delete")
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 2 {
		t.Errorf("stats = %+v, want 2 hits and 2 misses", s)
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now least recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.Now)

	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(30 * time.Second)
	c.Set("b", 3) // refreshes b's expiry

	clock.Advance(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if got, ok := c.Get("b"); !ok || got != 3 {
		t.Errorf("b = %v, %v; want 3, true", got, ok)
	}

	clock.Advance(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestManager_CleansRegisteredCaches(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Second).WithClock(clock.Now)
	c.Set("a", 1)
	clock.Advance(2 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow = %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartCleanup(ctx, 10*time.Millisecond)
	m.Stop()
	m.Stop() // second stop is a no-op
}
