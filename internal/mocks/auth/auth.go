package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	"github.com/marketbay/storefront/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.RoleStore  = (*MemoryRoleStore)(nil)
	_ ports.CacheStore = (*FailingCacheStore)(nil)
)

// MemoryRoleStore is an in-memory RoleStore keyed by user ID.
//
// FetchFunc, when set, overrides FetchRole entirely so tests can script
// store-level failures. Err short-circuits every lookup with that error.
type MemoryRoleStore struct {
	FetchFunc func(ctx context.Context, userID string) (string, bool, error)
	Err       error

	mu    sync.Mutex
	roles map[string]string
	calls int
}

// NewMemoryRoleStore creates a MemoryRoleStore seeded with the given roles.
func NewMemoryRoleStore(roles map[string]string) *MemoryRoleStore {
	seeded := make(map[string]string, len(roles))
	for k, v := range roles {
		seeded[k] = v
	}
	return &MemoryRoleStore{roles: seeded}
}

// FetchRole returns the seeded role for userID, or found=false when absent.
func (s *MemoryRoleStore) FetchRole(ctx context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.FetchFunc != nil {
		return s.FetchFunc(ctx, userID)
	}
	if s.Err != nil {
		return "", false, s.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[userID]
	return role, ok, nil
}

// SetRole installs or replaces the role for userID.
func (s *MemoryRoleStore) SetRole(userID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = role
}

// DeleteRole removes the record for userID.
func (s *MemoryRoleStore) DeleteRole(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, userID)
}

// Calls reports how many lookups were made, across all users.
func (s *MemoryRoleStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FailingCacheStore is a CacheStore whose every operation fails with Err.
// Used to exercise graceful degradation in the caching layer.
type FailingCacheStore struct {
	Err error
}

func (s *FailingCacheStore) Set(context.Context, string, []byte, time.Duration) error {
	return s.Err
}

func (s *FailingCacheStore) Get(context.Context, string) ([]byte, error) {
	return nil, s.Err
}

func (s *FailingCacheStore) Delete(context.Context, string) error {
	return s.Err
}

func (s *FailingCacheStore) Clear(context.Context) error {
	return s.Err
}
