// Package cache provides the explicit TTL cache used by the enrichment
// collaborators. The cache is passed by reference rather than living as
// process-wide ambient state, so tests can inject a clock and verify
// expiry deterministically.
package cache

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// Cache is a key/value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Close()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryCache returns an in-process Cache. A nil clock uses time.Now.
func NewMemoryCache(now func() time.Time) Cache {
	if now == nil {
		now = time.Now
	}
	c := &memoryCache{
		entries: make(map[string]memoryEntry),
		now:     now,
		stopCh:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *memoryCache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

func (c *memoryCache) cleanup() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *memoryCache) Close() {
	c.once.Do(func() {
		close(c.stopCh)
	})
}
