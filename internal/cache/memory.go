package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBalanceCache is a map-backed cache for tests and single-device
// runs without Redis. TTLs are honored lazily on read.
type MemoryBalanceCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	balancePaise int64
	expiresAt    time.Time
}

func NewMemoryBalanceCache() *MemoryBalanceCache {
	return &MemoryBalanceCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryBalanceCache) Get(_ context.Context, clientID string) (int64, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[clientID]
	c.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, clientID)
		c.mu.Unlock()
		return 0, false, nil
	}
	return entry.balancePaise, true, nil
}

func (c *MemoryBalanceCache) Set(_ context.Context, clientID string, balancePaise int64, ttl time.Duration) error {
	entry := memoryEntry{balancePaise: balancePaise}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[clientID] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryBalanceCache) Invalidate(_ context.Context, clientID string) error {
	c.mu.Lock()
	delete(c.entries, clientID)
	c.mu.Unlock()
	return nil
}
