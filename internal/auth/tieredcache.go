package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/marketbay/storefront/internal/ports"
)

// Tier selects one of the two independent cache tiers.
type Tier int

const (
	// TierVolatile is scoped to the current browsing session and cleared on
	// logout or restart of the hosting process.
	TierVolatile Tier = iota

	// TierDurable survives restarts. Writing to it is a deliberate trust
	// decision ("remember me") and is never the default at any call site.
	TierDurable
)

// String returns the tier label used in logs.
func (t Tier) String() string {
	if t == TierDurable {
		return "durable"
	}
	return "volatile"
}

// cacheEnvelope wraps stored values with a write timestamp and optional expiry.
type cacheEnvelope struct {
	Value     json.RawMessage `json:"value"`
	WrittenAt time.Time       `json:"written_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// TieredCacheOptions groups dependencies for TieredCache.
type TieredCacheOptions struct {
	Volatile ports.CacheStore
	Durable  ports.CacheStore
	Logger   *slog.Logger
	Now      func() time.Time // injectable clock for tests
}

// TieredCache is key/value storage with a volatile and a durable tier.
// The cache is an optimization, never a dependency for correctness: when a
// backing store is unavailable, reads report absent and writes succeed
// silently.
type TieredCache struct {
	volatile ports.CacheStore
	durable  ports.CacheStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewTieredCache creates a TieredCache from the given options.
func NewTieredCache(opts TieredCacheOptions) *TieredCache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &TieredCache{
		volatile: opts.Volatile,
		durable:  opts.Durable,
		logger:   logger,
		now:      nowFn,
	}
}

// Write stores value under key in the given tier with the current timestamp.
// A positive ttl sets the entry's expiry; ttl <= 0 means no expiry.
func (c *TieredCache) Write(ctx context.Context, tier Tier, key string, value any, ttl time.Duration) {
	store := c.store(tier)
	if store == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug("cache write skipped: marshal failed", "tier", tier.String(), "key", key, "error", err)
		return
	}

	env := cacheEnvelope{Value: raw, WrittenAt: c.now()}
	if ttl > 0 {
		exp := c.now().Add(ttl)
		env.ExpiresAt = &exp
	}

	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Debug("cache write skipped: envelope marshal failed", "tier", tier.String(), "key", key, "error", err)
		return
	}

	if err := store.Set(ctx, key, data, ttl); err != nil {
		c.logger.Debug("cache write degraded to no-op", "tier", tier.String(), "key", key, "error", err)
	}
}

// Read unmarshals the entry for key from the given tier into out and reports
// whether a live entry was found. Expired entries are evicted on read.
func (c *TieredCache) Read(ctx context.Context, tier Tier, key string, out any) bool {
	store := c.store(tier)
	if store == nil {
		return false
	}

	data, err := store.Get(ctx, key)
	if err != nil {
		c.logger.Debug("cache read degraded to absent", "tier", tier.String(), "key", key, "error", err)
		return false
	}
	if len(data) == 0 {
		return false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Unreadable entries are treated like corrupt data: evict and miss.
		_ = store.Delete(ctx, key)
		c.logger.Debug("cache entry evicted: envelope unmarshal failed", "tier", tier.String(), "key", key, "error", err)
		return false
	}

	if env.ExpiresAt != nil && c.now().After(*env.ExpiresAt) {
		if err := store.Delete(ctx, key); err != nil {
			c.logger.Debug("expired cache entry eviction failed", "tier", tier.String(), "key", key, "error", err)
		}
		return false
	}

	if out != nil {
		if err := json.Unmarshal(env.Value, out); err != nil {
			_ = store.Delete(ctx, key)
			c.logger.Debug("cache entry evicted: value unmarshal failed", "tier", tier.String(), "key", key, "error", err)
			return false
		}
	}
	return true
}

// WrittenAt returns the write timestamp of a live entry, or false when absent.
func (c *TieredCache) WrittenAt(ctx context.Context, tier Tier, key string) (time.Time, bool) {
	store := c.store(tier)
	if store == nil {
		return time.Time{}, false
	}

	data, err := store.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return time.Time{}, false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return time.Time{}, false
	}
	if env.ExpiresAt != nil && c.now().After(*env.ExpiresAt) {
		return time.Time{}, false
	}
	return env.WrittenAt, true
}

// Remove deletes key from the given tier. Removing an absent key is not an error.
func (c *TieredCache) Remove(ctx context.Context, tier Tier, key string) {
	store := c.store(tier)
	if store == nil {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		c.logger.Debug("cache remove degraded to no-op", "tier", tier.String(), "key", key, "error", err)
	}
}

// ClearTier removes every entry from the given tier.
func (c *TieredCache) ClearTier(ctx context.Context, tier Tier) {
	store := c.store(tier)
	if store == nil {
		return
	}
	if err := store.Clear(ctx); err != nil {
		c.logger.Debug("cache clear degraded to no-op", "tier", tier.String(), "error", err)
	}
}

func (c *TieredCache) store(tier Tier) ports.CacheStore {
	if tier == TierDurable {
		return c.durable
	}
	return c.volatile
}
