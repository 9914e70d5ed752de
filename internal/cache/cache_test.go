package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCache(rdb, "test"), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "filters:owner-1", []byte(`["a","b"]`), time.Hour)

	val, ok := c.Get(ctx, "filters:owner-1")
	if !ok {
		t.Fatal("Get() miss after Set()")
	}
	if string(val) != `["a","b"]` {
		t.Errorf("Get() = %q", val)
	}
}

func TestRedisCache_Miss(t *testing.T) {
	c, _ := newTestRedisCache(t)

	if _, ok := c.Get(context.Background(), "nope"); ok {
		t.Error("Get() of unknown key should miss")
	}
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "short", []byte("x"), time.Minute)
	mr.FastForward(2 * time.Minute)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("Get() should miss after TTL expiry")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Hour)
	c.Delete(ctx, "k")

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get() should miss after Delete()")
	}
}

func TestRedisCache_FailOpen(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	mr.Close()

	// Backend is gone; calls must not panic or error, just miss.
	c.Set(ctx, "k", []byte("v"), time.Hour)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get() against a dead backend should miss")
	}
	c.Delete(ctx, "k")
}

func TestMemory_BasicAndBroken(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 0)
	if val, ok := c.Get(ctx, "k"); !ok || string(val) != "v" {
		t.Errorf("Get() = %q, %v", val, ok)
	}

	c.Broken = true
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("broken cache should always miss")
	}
	c.Set(ctx, "k2", []byte("v2"), 0)
	c.Broken = false
	if _, ok := c.Get(ctx, "k2"); ok {
		t.Error("Set() while broken should be dropped")
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Hour)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Nop cache should never hit")
	}
}
