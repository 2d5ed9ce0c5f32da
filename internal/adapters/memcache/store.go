package memcache

// Package memcache provides the in-process cache store backing the volatile
// tier. Entries live only as long as the hosting process, which is exactly
// the volatile tier's contract.

import (
	"context"
	"sync"
	"time"

	"github.com/marketbay/storefront/internal/ports"
)

// Store is an in-memory key/value store with per-entry TTL.
// Concurrency: methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time // injectable clock for tests
}

type entry struct {
	value  []byte
	expiry time.Time // zero means no expiry
}

var _ ports.CacheStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Store with a custom clock (useful for tests).
func NewWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{items: make(map[string]entry), now: now}
}

// Set stores value under key. ttl <= 0 means no expiry.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}

	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry{value: cp, expiry: exp}
	return nil
}

// Get returns the stored value, or nil when absent or expired.
// Expired entries are evicted on read.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	if !e.expiry.IsZero() && s.now().After(e.expiry) {
		delete(s.items, key)
		return nil, nil
	}

	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

// Delete removes key. Removing an absent key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Clear removes every entry.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]entry)
	return nil
}

// Len returns the number of live entries, counting expired but unevicted ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
