package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/auth.

import (
	"context"
	"time"

	domainauth "github.com/marketbay/storefront/internal/domain/auth"
)

// IdentityProvider is the opaque identity capability consumed by the session
// coordinator. Its wire protocol is an adapter concern.
type IdentityProvider interface {
	// SignIn exchanges credentials for an authenticated identity.
	SignIn(ctx context.Context, email, password string) (domainauth.Identity, error)

	// SignOut revokes the provider-side session. Best effort: callers proceed
	// with local cleanup regardless of the result.
	SignOut(ctx context.Context) error

	// CurrentSession returns the provider's authoritative view of the active
	// session, or nil when the provider holds none.
	CurrentSession(ctx context.Context) (*domainauth.Identity, error)

	// Subscribe registers a handler for asynchronous auth-change notifications
	// (background token refresh, remote sign-out). It returns an unsubscribe
	// function. Handlers must be cheap: they are invoked from the provider's
	// own delivery path.
	Subscribe(handler func(domainauth.ProviderEvent)) (unsubscribe func())
}

// RoleStore is the external source of truth for authorization roles.
type RoleStore interface {
	// FetchRole returns the raw role value for userID. found is false when no
	// record exists; err reports store-level failures (connectivity,
	// authorization), which must not be conflated with a missing record.
	FetchRole(ctx context.Context, userID string) (role string, found bool, err error)
}

// CacheStore is a single cache tier backing store. Implementations degrade
// gracefully: availability failures surface as errors so the caching layer
// can treat them as misses, never as correctness failures.
type CacheStore interface {
	// Set stores a value with the given TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the stored value, or nil with no error when key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key in the tier.
	Clear(ctx context.Context) error
}
