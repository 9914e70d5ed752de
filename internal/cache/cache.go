package cache

import (
	"context"
	"time"
)

// Cache is a fail-open byte cache. Implementations swallow backend
// errors: a failed Get is a miss and a failed Set is a no-op, so the
// caller's path never depends on the cache being up.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Nop discards everything. Used when caching is disabled.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(ctx context.Context, key string) ([]byte, bool)                 { return nil, false }
func (Nop) Set(ctx context.Context, key string, value []byte, d time.Duration) {}
func (Nop) Delete(ctx context.Context, key string)                             {}
