package memory

import (
	"context"
	"sync"
	"time"

	"github.com/manorfm/identityserver/internal/domain"
)

// Cache is an in-process marker cache with per-key expiry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	clock   domain.Clock
}

// NewCache creates an empty cache reading time from clock
func NewCache(clock domain.Clock) *Cache {
	return &Cache{entries: make(map[string]time.Time), clock: clock}
}

func (c *Cache) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if exp, ok := c.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.entries[key] = now.Add(ttl)
	c.purge(now)
	return true, nil
}

// purge drops expired entries; callers hold the lock
func (c *Cache) purge(now time.Time) {
	for k, exp := range c.entries {
		if !now.Before(exp) {
			delete(c.entries, k)
		}
	}
}
