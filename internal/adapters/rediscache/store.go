package rediscache

// Package rediscache provides the Redis-backed cache store for the durable
// tier. The durable tier is the only resource shared across coordinator
// instances; writes are last-writer-wins with no cross-instance locking,
// which is acceptable because it holds only a remember-me token and every
// instance re-validates against the identity provider at startup.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketbay/storefront/internal/ports"
)

// Store is a Redis-backed cache store.
// TTL semantics are delegated to Redis key expiry.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.CacheStore = (*Store)(nil)

// NewStore creates a Store with the default key prefix.
func NewStore(client redis.UniversalClient) *Store {
	return NewStoreWithPrefix(client, "storefront:durable:")
}

// NewStoreWithPrefix creates a Store with a custom key prefix.
func NewStoreWithPrefix(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Set stores value under key. ttl <= 0 stores without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the stored value, or nil when the key is absent or expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Delete removes key. Removing an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every key under the store's prefix, scanning in batches so
// unrelated keys sharing the connection are untouched.
func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
