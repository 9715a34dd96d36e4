package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

// roundTrip exercises the Get/Set contract shared by every backend.
func roundTrip(t *testing.T, c ResponseCache) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "k", []byte("v1"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v1" {
		t.Fatalf("expected hit with v1, got ok=%v value=%q err=%v", ok, value, err)
	}

	// Overwrite-on-collision upsert
	if err := c.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, ok, _ = c.Get(ctx, "k")
	if !ok || string(value) != "v2" {
		t.Fatalf("expected overwritten value v2, got %q", value)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	roundTrip(t, c)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCache_ClosedReturnsErr(t *testing.T) {
	c := NewMemoryCache()
	c.Close()

	if _, _, err := c.Get(context.Background(), "k"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := c.Set(context.Background(), "k", nil, 0); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func newTestBadger(t *testing.T) *BadgerCache {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("opening in-memory badger: %v", err)
	}
	c := NewBadgerCacheFromDB(db)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBadgerCache(t *testing.T) {
	roundTrip(t, newTestBadger(t))
}

func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCache(t *testing.T) {
	roundTrip(t, newTestRedis(t))
}

func TestRedisCache_DownIsAnError(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer c.Close()
	mr.Close()

	// Callers treat errors as misses; the cache itself just reports them.
	if _, ok, err := c.Get(context.Background(), "k"); err == nil || ok {
		t.Errorf("expected error from unreachable redis, got ok=%v err=%v", ok, err)
	}
}
