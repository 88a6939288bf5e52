package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewMemoryCache(clock)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k1", []byte("v1"), time.Minute)

	value, ok := c.Get(ctx, "k1")
	if !ok || string(value) != "v1" {
		t.Fatalf("expected fresh entry, got %q ok=%v", value, ok)
	}

	now = now.Add(30 * time.Second)
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Fatalf("entry expired before its ttl")
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatalf("entry survived past its ttl")
	}
}

func TestMemoryCacheZeroTTLDisablesStorage(t *testing.T) {
	c := NewMemoryCache(nil)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k1", []byte("v1"), 0)
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatalf("zero ttl must not store entries")
	}
}

func TestMemoryCacheCleanup(t *testing.T) {
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewMemoryCache(clock).(*memoryCache)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "stale", []byte("x"), time.Second)
	c.Set(ctx, "fresh", []byte("y"), time.Hour)

	now = now.Add(time.Minute)
	c.cleanup()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries["stale"]; ok {
		t.Fatalf("cleanup kept an expired entry")
	}
	if _, ok := c.entries["fresh"]; !ok {
		t.Fatalf("cleanup dropped a live entry")
	}
}
