package ratelimit

import (
	"context"
	"sync"
	"time"
)

const DefaultMaxKeys = 10000

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter is the per-process fallback. It holds at most maxKeys
// windows; expired windows are swept lazily when the map is full, and if
// that frees nothing the window closest to expiry is evicted.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	maxKeys int
	now     func() time.Time
}

func NewMemoryCounter(maxKeys int, now func() time.Time) *MemoryCounter {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		entries: make(map[string]memoryEntry),
		maxKeys: maxKeys,
		now:     now,
	}
}

func (c *MemoryCounter) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		if !ok && len(c.entries) >= c.maxKeys {
			c.makeRoom(now)
		}
		entry = memoryEntry{expiresAt: now.Add(window)}
	}
	entry.count++
	c.entries[key] = entry
	return entry.count, entry.expiresAt.Sub(now), nil
}

func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCounter) makeRoom(now time.Time) {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			continue
		}
		if oldestKey == "" || entry.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt = key, entry.expiresAt
		}
	}
	if len(c.entries) >= c.maxKeys && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
