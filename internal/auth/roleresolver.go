package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/marketbay/storefront/internal/domain/auth"
	"github.com/marketbay/storefront/internal/ports"
)

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Store  ports.RoleStore
	Logger *slog.Logger

	// MemoTTL bounds how long a resolved role is served without re-fetching.
	// Zero disables memoization.
	MemoTTL time.Duration

	Now func() time.Time // injectable clock for tests
}

// RoleResolver performs read-through role fetches against the external role
// store. Concurrent resolves for the same user collapse into one fetch.
type RoleResolver struct {
	store   ports.RoleStore
	logger  *slog.Logger
	memoTTL time.Duration
	now     func() time.Time

	group singleflight.Group

	mu   sync.Mutex
	memo map[string]memoizedRole
}

type memoizedRole struct {
	role      domainauth.Role
	expiresAt time.Time
}

// NewRoleResolver creates a RoleResolver from the given options.
func NewRoleResolver(opts RoleResolverOptions) *RoleResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &RoleResolver{
		store:   opts.Store,
		logger:  logger,
		memoTTL: opts.MemoTTL,
		now:     nowFn,
		memo:    make(map[string]memoizedRole),
	}
}

// Resolve returns the authoritative role for userID.
//
// A missing record resolves to the default role rather than failing. A role
// value outside the closed enumeration is treated as corrupt data: logged and
// replaced with the default role. A store-level failure propagates as
// ErrRoleResolution because it must not silently downgrade a legitimate role.
func (r *RoleResolver) Resolve(ctx context.Context, userID string) (domainauth.Role, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user ID is required", ErrRoleResolution)
	}

	if role, ok := r.memoized(userID); ok {
		return role, nil
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.fetch(ctx, userID)
	})
	if err != nil {
		return "", err
	}

	role, ok := v.(domainauth.Role)
	if !ok {
		return "", fmt.Errorf("%w: unexpected resolver result", ErrRoleResolution)
	}
	return role, nil
}

// Invalidate forces the next Resolve for userID to bypass memoization.
func (r *RoleResolver) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memo, userID)
}

func (r *RoleResolver) fetch(ctx context.Context, userID string) (domainauth.Role, error) {
	raw, found, err := r.store.FetchRole(ctx, userID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %w", ErrRoleResolution, err)
		}
		return "", fmt.Errorf("%w: fetch role: %w", ErrRoleResolution, err)
	}

	if !found {
		r.remember(userID, domainauth.DefaultRole)
		return domainauth.DefaultRole, nil
	}

	role, parseErr := domainauth.ParseRole(raw)
	if parseErr != nil {
		// Corrupt data in the role store: fall back rather than propagate an
		// invalid value into the session.
		r.logger.Warn("role store returned value outside enumeration, falling back to default",
			"user_id", userID,
			"raw_role", raw,
			"fallback", string(domainauth.DefaultRole),
		)
		r.remember(userID, domainauth.DefaultRole)
		return domainauth.DefaultRole, nil
	}

	r.remember(userID, role)
	return role, nil
}

func (r *RoleResolver) memoized(userID string) (domainauth.Role, bool) {
	if r.memoTTL <= 0 {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memo[userID]
	if !ok {
		return "", false
	}
	if r.now().After(m.expiresAt) {
		delete(r.memo, userID)
		return "", false
	}
	return m.role, true
}

func (r *RoleResolver) remember(userID string, role domainauth.Role) {
	if r.memoTTL <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo[userID] = memoizedRole{role: role, expiresAt: r.now().Add(r.memoTTL)}
}
