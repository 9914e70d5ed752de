package cache

import (
	"context"
	"sync"
	"time"
)

var _ Cache = (*Memory)(nil)

// Memory is an in-process Cache used in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// Broken simulates an unreachable backend: every Get misses and
	// every Set is dropped.
	Broken bool
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Broken {
		return nil, false
	}

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}

func (c *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Broken {
		return
	}

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
}

func (c *Memory) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Broken {
		return
	}

	delete(c.entries, key)
}

// Len returns the number of live entries (test helper).
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
