package secretcache

import (
	"context"
	"sync"
	"time"

	"github.com/avoytenko/gatekeeper/internal/logger"
)

type entry struct {
	code       string
	insertedAt time.Time
}

// MemoryCache is a mutex protected map with lazy expiry on read and an
// optional background sweep for entries nobody reads again
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl time.Duration
	now func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Put(ctx context.Context, key string, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict before insert, the old code must never outlive the new one
	delete(c.entries, key)
	c.entries[key] = entry{code: code, insertedAt: c.now()}

	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}

	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return "", false, nil
	}

	return e.code, true, nil
}

func (c *MemoryCache) Evict(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// StartSweep drops dead entries periodically until the context is cancelled
// Lazy expiry on Get keeps correctness without it, the sweep only bounds memory
func (c *MemoryCache) StartSweep(ctx context.Context, interval time.Duration, l logger.Logger) <-chan struct{} {
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				l.Debug("Secret cache sweep stopped by context")
				return

			case <-ticker.C:
				swept := c.sweep()
				if swept > 0 {
					l.Debug("Secret cache sweep", "evicted", swept)
				}
			}
		}
	}()

	return stopped
}

func (c *MemoryCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	swept := 0
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, key)
			swept++
		}
	}

	return swept
}
