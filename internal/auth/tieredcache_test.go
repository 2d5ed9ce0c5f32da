package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbay/storefront/internal/adapters/memcache"
	mockauth "github.com/marketbay/storefront/internal/mocks/auth"
)

// fakeClock is a mutable clock shared between the cache and its stores.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestTieredCache(clock *fakeClock) (*TieredCache, *memcache.Store, *memcache.Store) {
	volatile := memcache.NewWithClock(clock.Now)
	durable := memcache.NewWithClock(clock.Now)
	cache := NewTieredCache(TieredCacheOptions{
		Volatile: volatile,
		Durable:  durable,
		Logger:   slog.New(slog.DiscardHandler),
		Now:      clock.Now,
	})
	return cache, volatile, durable
}

func TestTieredCacheWriteReadRoundTrip(t *testing.T) {
	cache, _, _ := newTestTieredCache(newFakeClock())
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}
	cache.Write(ctx, TierVolatile, "k", payload{Name: "alice"}, 0)

	var out payload
	require.True(t, cache.Read(ctx, TierVolatile, "k", &out))
	assert.Equal(t, "alice", out.Name)
}

func TestTieredCacheTiersAreIndependent(t *testing.T) {
	cache, _, _ := newTestTieredCache(newFakeClock())
	ctx := context.Background()

	cache.Write(ctx, TierVolatile, "k", "volatile-value", 0)
	cache.Write(ctx, TierDurable, "k", "durable-value", 0)

	var v, d string
	require.True(t, cache.Read(ctx, TierVolatile, "k", &v))
	require.True(t, cache.Read(ctx, TierDurable, "k", &d))
	assert.Equal(t, "volatile-value", v)
	assert.Equal(t, "durable-value", d)

	cache.ClearTier(ctx, TierVolatile)
	assert.False(t, cache.Read(ctx, TierVolatile, "k", &v))
	assert.True(t, cache.Read(ctx, TierDurable, "k", &d))
}

func TestTieredCacheExpiredEntryReadsAbsent(t *testing.T) {
	clock := newFakeClock()
	cache, _, _ := newTestTieredCache(clock)
	ctx := context.Background()

	cache.Write(ctx, TierDurable, "token", "tok-1", time.Hour)

	var out string
	require.True(t, cache.Read(ctx, TierDurable, "token", &out))

	clock.Advance(2 * time.Hour)
	assert.False(t, cache.Read(ctx, TierDurable, "token", &out))
}

func TestTieredCacheWrittenAt(t *testing.T) {
	clock := newFakeClock()
	cache, _, _ := newTestTieredCache(clock)
	ctx := context.Background()

	wrote := clock.Now()
	cache.Write(ctx, TierVolatile, "k", 42, 0)
	clock.Advance(time.Minute)

	at, ok := cache.WrittenAt(ctx, TierVolatile, "k")
	require.True(t, ok)
	assert.True(t, at.Equal(wrote))

	_, ok = cache.WrittenAt(ctx, TierVolatile, "missing")
	assert.False(t, ok)
}

func TestTieredCacheCorruptEntryEvictedOnRead(t *testing.T) {
	clock := newFakeClock()
	volatile := memcache.NewWithClock(clock.Now)
	cache := NewTieredCache(TieredCacheOptions{
		Volatile: volatile,
		Durable:  memcache.NewWithClock(clock.Now),
		Logger:   slog.New(slog.DiscardHandler),
		Now:      clock.Now,
	})
	ctx := context.Background()

	require.NoError(t, volatile.Set(ctx, "k", []byte("not json"), 0))

	var out string
	assert.False(t, cache.Read(ctx, TierVolatile, "k", &out))

	// Evicted, not just skipped.
	data, err := volatile.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestTieredCacheDegradesToNoOpOnStoreFailure(t *testing.T) {
	failing := &mockauth.FailingCacheStore{Err: errors.New("backing store down")}
	cache := NewTieredCache(TieredCacheOptions{
		Volatile: failing,
		Durable:  failing,
		Logger:   slog.New(slog.DiscardHandler),
	})
	ctx := context.Background()

	// None of these may panic or surface the failure.
	cache.Write(ctx, TierVolatile, "k", "v", 0)
	cache.Remove(ctx, TierDurable, "k")
	cache.ClearTier(ctx, TierVolatile)

	var out string
	assert.False(t, cache.Read(ctx, TierDurable, "k", &out))
	_, ok := cache.WrittenAt(ctx, TierVolatile, "k")
	assert.False(t, ok)
}

func TestTieredCacheRemoveAbsentKeyIsNoOp(t *testing.T) {
	cache, _, _ := newTestTieredCache(newFakeClock())
	cache.Remove(context.Background(), TierVolatile, "never-written")
}
