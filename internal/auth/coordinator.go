package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/marketbay/storefront/internal/domain/auth"
	"github.com/marketbay/storefront/internal/observability/statsd"
	"github.com/marketbay/storefront/internal/ports"
)

// Cache keys used by the coordinator. The durable tier holds exactly one
// entry, written only when the caller opted into persistence at login.
const (
	cacheKeyUser          = "auth:user"
	cacheKeyRole          = "auth:role"
	cacheKeyRememberToken = "auth:remember_token"
)

// DefaultPersistTTL is the default lifetime of the durable remember-me token.
const DefaultPersistTTL = 30 * 24 * time.Hour

// DefaultSuppressWindow is the default dead time after a foreground
// transition during which redundant re-validation is suppressed.
const DefaultSuppressWindow = 5 * time.Second

// cachedUser is the volatile-tier user snapshot consulted during restoration.
type cachedUser struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// rememberToken is the durable-tier entry layout.
type rememberToken struct {
	Token string `json:"token"`
}

// Snapshot is the externally observable coordinator state.
// IsAuthenticated is derived, never stored: it is true iff user, role, and
// token are all present, the cached role matches the in-memory role, and
// readiness is Ready. Any partial state reads as false.
type Snapshot struct {
	State           domainauth.State
	Readiness       domainauth.Readiness
	IsAuthenticated bool
	UserID          string
	Email           string
	Role            domainauth.Role
}

// CoordinatorOptions groups dependencies for the SessionCoordinator.
type CoordinatorOptions struct {
	Provider   ports.IdentityProvider
	Resolver   *RoleResolver
	Cache      *TieredCache
	Visibility *VisibilityTracker
	Metrics    statsd.Sink
	Logger     *slog.Logger

	// PersistTTL is the durable token lifetime; defaults to DefaultPersistTTL.
	PersistTTL time.Duration

	// SuppressWindow is the visibility dead time; defaults to DefaultSuppressWindow.
	SuppressWindow time.Duration

	Now func() time.Time // injectable clock for tests
}

// SessionCoordinator owns the canonical in-memory session and drives the
// auth state machine. It consumes the tiered cache, the role resolver, the
// visibility tracker, and the identity provider's event stream, and exposes
// the contract the rest of the application builds on.
//
// Explicit calls (Login, Logout) must not overlap; this is a caller contract.
// Provider events are funneled through a single processing goroutine so they
// never mutate state concurrently with each other.
type SessionCoordinator struct {
	provider   ports.IdentityProvider
	resolver   *RoleResolver
	cache      *TieredCache
	visibility *VisibilityTracker
	metrics    statsd.Sink
	logger     *slog.Logger

	persistTTL     time.Duration
	suppressWindow time.Duration
	now            func() time.Time

	mu            sync.Mutex
	state         domainauth.State
	readiness     domainauth.Readiness
	session       domainauth.Session
	cachedRole    domainauth.Role // mirror of the volatile-tier role entry
	midTransition bool
	forcedOut     bool // remote sign-out arrived while a transition was in flight
	started       bool
	closed        bool
	subscribers   map[string]func(Snapshot)

	inbox       chan domainauth.ProviderEvent
	stop        chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewSessionCoordinator creates a coordinator from the given options.
func NewSessionCoordinator(opts CoordinatorOptions) *SessionCoordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	persistTTL := opts.PersistTTL
	if persistTTL <= 0 {
		persistTTL = DefaultPersistTTL
	}
	suppress := opts.SuppressWindow
	if suppress <= 0 {
		suppress = DefaultSuppressWindow
	}
	visibility := opts.Visibility
	if visibility == nil {
		visibility = NewVisibilityTracker(nowFn)
	}
	return &SessionCoordinator{
		provider:       opts.Provider,
		resolver:       opts.Resolver,
		cache:          opts.Cache,
		visibility:     visibility,
		metrics:        opts.Metrics,
		logger:         logger,
		persistTTL:     persistTTL,
		suppressWindow: suppress,
		now:            nowFn,
		state:          domainauth.StateSignedOut,
		readiness:      domainauth.ReadinessNotReady,
		subscribers:    make(map[string]func(Snapshot)),
		inbox:          make(chan domainauth.ProviderEvent, 16),
		stop:           make(chan struct{}),
	}
}

// Visibility returns the tracker consumers feed foreground transitions into.
func (c *SessionCoordinator) Visibility() *VisibilityTracker {
	return c.visibility
}

// Start runs startup restoration exactly once and begins consuming the
// provider's event stream. Readiness moves NotReady -> Loading -> Ready
// exactly once; consumers must not make access decisions before Ready.
//
// A provider outage during restoration is recoverable: Start returns an
// error wrapping ErrProviderUnavailable, but the coordinator still settles
// signed out with readiness Ready so the application can render and retry.
func (c *SessionCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("coordinator already started")
	}
	c.started = true
	c.readiness = domainauth.ReadinessLoading
	c.mu.Unlock()
	c.notify()

	restoreErr := c.restore(ctx)

	c.unsubscribe = c.provider.Subscribe(func(ev domainauth.ProviderEvent) {
		select {
		case c.inbox <- ev:
		default:
			c.count("auth.event.dropped", map[string]string{"reason": "inbox_full"})
			c.logger.Warn("provider event dropped: inbox full", "kind", string(ev.Kind))
		}
	})

	c.wg.Add(1)
	go c.processEvents()

	c.mu.Lock()
	c.readiness = domainauth.ReadinessReady
	c.mu.Unlock()
	c.notify()

	return restoreErr
}

// Close stops event processing and detaches from the provider.
func (c *SessionCoordinator) Close() {
	c.mu.Lock()
	if c.closed || !c.started {
		c.closed = true
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	close(c.stop)
	c.wg.Wait()
}

// GetState returns a consistent snapshot of the coordinator state.
func (c *SessionCoordinator) GetState() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for state-change notifications (readiness,
// authentication, role). It returns an unsubscribe function.
func (c *SessionCoordinator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	id := uuid.NewString()
	c.mu.Lock()
	c.subscribers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Login drives SignedOut -> Authenticating -> SignedIn (or back to
// SignedOut). On success the session is populated atomically, the volatile
// tier receives user and role entries, and, when persist is true, the
// durable tier receives a remember-me token with the configured TTL.
//
// Fails with ErrInvalidCredentials, ErrRoleResolution, or
// ErrProviderUnavailable; every failure leaves the coordinator fully signed
// out with no partial state in any tier.
func (c *SessionCoordinator) Login(ctx context.Context, email, password string, persist bool) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.midTransition {
		c.mu.Unlock()
		return ErrLoginInFlight
	}
	c.midTransition = true
	c.forcedOut = false
	c.state = domainauth.StateAuthenticating
	c.mu.Unlock()
	c.notify()

	identity, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		c.settleSignedOut(ctx, false)
		if errors.Is(err, ErrInvalidCredentials) {
			c.count("auth.login.failure", map[string]string{"reason": "invalid_credentials"})
			return ErrInvalidCredentials
		}
		c.count("auth.login.failure", map[string]string{"reason": "provider_unavailable"})
		return fmt.Errorf("%w: sign in: %w", ErrProviderUnavailable, err)
	}

	role, err := c.resolver.Resolve(ctx, identity.UserID)
	if err != nil {
		// Provider accepted but the role is unknowable: roll back completely
		// rather than leave a session without a role.
		c.settleSignedOut(ctx, true)
		c.count("auth.login.failure", map[string]string{"reason": "role_resolution"})
		return err
	}

	c.mu.Lock()
	if c.forcedOut {
		// A remote sign-out arrived while we were authenticating; it wins.
		c.clearSessionLocked()
		c.midTransition = false
		c.mu.Unlock()
		c.clearTiers(ctx, true)
		c.notify()
		c.count("auth.login.failure", map[string]string{"reason": "remote_signout"})
		return nil
	}
	c.session = domainauth.Session{
		UserID:        identity.UserID,
		Email:         identity.Email,
		Role:          role,
		Token:         identity.Token,
		TokenIssuedAt: identity.IssuedAt,
	}
	c.cachedRole = role
	c.state = domainauth.StateSignedIn
	c.midTransition = false
	c.mu.Unlock()

	c.cache.Write(ctx, TierVolatile, cacheKeyUser, cachedUser{UserID: identity.UserID, Email: identity.Email}, 0)
	c.cache.Write(ctx, TierVolatile, cacheKeyRole, role, 0)
	if persist {
		c.cache.Write(ctx, TierDurable, cacheKeyRememberToken, rememberToken{Token: identity.Token}, c.persistTTL)
	}

	c.count("auth.login.success", map[string]string{"role": string(role)})
	c.notify()
	return nil
}

// Logout clears the in-memory session, the whole volatile tier, and the
// durable token, and only then attempts the provider's remote sign-out.
// Local cleanup is unconditional: Logout never fails observably and is
// idempotent.
func (c *SessionCoordinator) Logout(ctx context.Context) {
	c.mu.Lock()
	c.midTransition = true
	c.clearSessionLocked()
	c.midTransition = false
	c.mu.Unlock()

	c.clearTiers(ctx, true)
	c.notify()

	if err := c.provider.SignOut(ctx); err != nil {
		// Remote confirmation is best effort; local state is already clean.
		c.logger.Warn("provider sign-out failed, local session already cleared", "error", err)
	}
	c.count("auth.logout", nil)
}

// RefreshRole re-resolves the current user's role against the role store.
// force bypasses resolver memoization. A mismatch between the freshly
// resolved role and the in-memory role is a detected inconsistency: the
// coordinator transitions through Desynchronized and force-clears back to
// SignedOut rather than guessing which value is correct.
func (c *SessionCoordinator) RefreshRole(ctx context.Context, force bool) error {
	c.mu.Lock()
	if c.state != domainauth.StateSignedIn {
		c.mu.Unlock()
		return nil
	}
	userID := c.session.UserID
	current := c.session.Role
	c.mu.Unlock()

	if force {
		c.resolver.Invalidate(userID)
	}
	role, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	if role != current {
		c.desynchronize(ctx, userID, current, role)
		return nil
	}

	c.mu.Lock()
	if c.state == domainauth.StateSignedIn && c.session.UserID == userID {
		c.cachedRole = role
	}
	c.mu.Unlock()
	c.cache.Write(ctx, TierVolatile, cacheKeyRole, role, 0)
	return nil
}

// restore implements the startup restoration algorithm. It runs before any
// consumer reads the session.
func (c *SessionCoordinator) restore(ctx context.Context) error {
	var snapshot cachedUser
	haveSnapshot := c.cache.Read(ctx, TierVolatile, cacheKeyUser, &snapshot)
	var cached domainauth.Role
	haveCachedRole := c.cache.Read(ctx, TierVolatile, cacheKeyRole, &cached) && cached.Valid()

	identity, err := c.provider.CurrentSession(ctx)
	if err != nil {
		c.count("auth.restore.failure", map[string]string{"reason": "provider_unavailable"})
		c.logger.Warn("startup restoration could not reach identity provider", "error", err)
		return fmt.Errorf("%w: current session: %w", ErrProviderUnavailable, err)
	}

	if identity == nil {
		// The provider is authoritative: no session means every tier is stale.
		c.clearTiers(ctx, true)
		c.mu.Lock()
		c.clearSessionLocked()
		c.mu.Unlock()
		c.count("auth.restore.signed_out", nil)
		return nil
	}

	if haveSnapshot && haveCachedRole && snapshot.UserID == identity.UserID {
		// Fast path: cached role belongs to this user, populate immediately
		// and re-validate the role opportunistically in the background.
		c.mu.Lock()
		c.session = domainauth.Session{
			UserID:        identity.UserID,
			Email:         identity.Email,
			Role:          cached,
			Token:         identity.Token,
			TokenIssuedAt: identity.IssuedAt,
		}
		c.cachedRole = cached
		c.state = domainauth.StateSignedIn
		c.mu.Unlock()
		c.count("auth.restore.fast_path", nil)

		c.wg.Add(1)
		go c.revalidateRole(identity.UserID)
		return nil
	}

	// Full path: no usable cache or a user mismatch; fetch the role fresh
	// before declaring readiness.
	role, err := c.resolver.Resolve(ctx, identity.UserID)
	if err != nil {
		c.clearTiers(ctx, true)
		c.mu.Lock()
		c.clearSessionLocked()
		c.mu.Unlock()
		c.count("auth.restore.failure", map[string]string{"reason": "role_resolution"})
		c.logger.Warn("startup restoration role fetch failed, settling signed out", "user_id", identity.UserID, "error", err)
		return nil
	}

	c.mu.Lock()
	c.session = domainauth.Session{
		UserID:        identity.UserID,
		Email:         identity.Email,
		Role:          role,
		Token:         identity.Token,
		TokenIssuedAt: identity.IssuedAt,
	}
	c.cachedRole = role
	c.state = domainauth.StateSignedIn
	c.mu.Unlock()

	c.cache.Write(ctx, TierVolatile, cacheKeyUser, cachedUser{UserID: identity.UserID, Email: identity.Email}, 0)
	c.cache.Write(ctx, TierVolatile, cacheKeyRole, role, 0)
	c.count("auth.restore.full_path", nil)
	return nil
}

// revalidateRole opportunistically confirms a fast-path cached role against
// the role store. Errors are background noise; a mismatch forces a desync.
func (c *SessionCoordinator) revalidateRole(userID string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.resolver.Invalidate(userID)
	role, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		c.logger.Debug("background role re-validation failed", "user_id", userID, "error", err)
		return
	}

	c.mu.Lock()
	signedIn := c.state == domainauth.StateSignedIn && c.session.UserID == userID
	current := c.session.Role
	c.mu.Unlock()
	if !signedIn {
		return
	}
	if role != current {
		c.desynchronize(ctx, userID, current, role)
		return
	}
	c.cache.Write(ctx, TierVolatile, cacheKeyRole, role, 0)
}

// processEvents is the coordinator's single event-processing path. Provider
// callbacks only enqueue; all mutation happens here or in explicit calls,
// never in the provider's delivery goroutine.
func (c *SessionCoordinator) processEvents() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case ev := <-c.inbox:
			c.handleEvent(ev)
		}
	}
}

func (c *SessionCoordinator) handleEvent(ev domainauth.ProviderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if ev.Kind == domainauth.EventSignedOut || ev.Identity == nil {
		// Sign-out always wins, even against an in-flight explicit call and
		// regardless of the suppression window.
		c.mu.Lock()
		if c.midTransition {
			c.forcedOut = true
		}
		wasSignedIn := c.state == domainauth.StateSignedIn
		c.clearSessionLocked()
		c.mu.Unlock()
		c.clearTiers(ctx, true)
		if wasSignedIn {
			c.notify()
		}
		c.count("auth.event.signed_out", nil)
		return
	}

	c.mu.Lock()
	if c.midTransition {
		c.mu.Unlock()
		c.count("auth.event.dropped", map[string]string{"reason": "mid_transition"})
		return
	}
	state := c.state
	session := c.session
	c.mu.Unlock()

	switch state {
	case domainauth.StateSignedIn:
		c.handleEventSignedIn(ctx, ev, session)
	case domainauth.StateSignedOut:
		if ev.Kind == domainauth.EventSignedIn {
			// Sign-in from elsewhere (another tab): validate fully.
			c.adoptIdentity(ctx, *ev.Identity)
			return
		}
		c.count("auth.event.dropped", map[string]string{"reason": "no_session"})
	default:
		// Authenticating is covered by the midTransition guard above;
		// Desynchronized sessions are never resurrected by events.
		c.count("auth.event.dropped", map[string]string{"reason": state.String()})
	}
}

func (c *SessionCoordinator) handleEventSignedIn(ctx context.Context, ev domainauth.ProviderEvent, session domainauth.Session) {
	identity := *ev.Identity

	if identity.UserID != session.UserID {
		// A different principal took over the provider session: the held
		// session is gone, validate the new one from scratch.
		c.mu.Lock()
		c.clearSessionLocked()
		c.mu.Unlock()
		c.clearTiers(ctx, true)
		c.notify()
		c.adoptIdentity(ctx, identity)
		return
	}

	if identity.Token == session.Token {
		// Refresh notification for the token already held: nothing to do.
		c.count("auth.event.noop", map[string]string{"reason": "token_unchanged"})
		return
	}

	if ev.Kind == domainauth.EventTokenRefreshed {
		// Role does not change on token refresh.
		c.mu.Lock()
		if c.state == domainauth.StateSignedIn && c.session.UserID == identity.UserID {
			c.session.Token = identity.Token
			c.session.TokenIssuedAt = identity.IssuedAt
		}
		c.mu.Unlock()
		c.count("auth.event.token_refreshed", nil)
		c.notify()
		return
	}

	// A sign-in notification for the user we already hold. A tab regaining
	// focus commonly replays one of these; within the suppression window the
	// in-memory session already matches and full re-validation is noise.
	if c.visibility.ShouldSuppress(c.suppressWindow) {
		c.count("auth.event.suppressed", nil)
		return
	}

	c.mu.Lock()
	if c.state == domainauth.StateSignedIn && c.session.UserID == identity.UserID {
		c.session.Token = identity.Token
		c.session.TokenIssuedAt = identity.IssuedAt
	}
	c.mu.Unlock()
	c.notify()

	c.resolver.Invalidate(identity.UserID)
	role, err := c.resolver.Resolve(ctx, identity.UserID)
	if err != nil {
		c.logger.Debug("event-driven role re-validation failed", "user_id", identity.UserID, "error", err)
		return
	}
	c.mu.Lock()
	mismatch := c.state == domainauth.StateSignedIn && c.session.UserID == identity.UserID && c.session.Role != role
	current := c.session.Role
	c.mu.Unlock()
	if mismatch {
		c.desynchronize(ctx, identity.UserID, current, role)
	}
}

// adoptIdentity validates a provider-announced identity and signs it in.
// Used for sign-in notifications arriving while no session is held.
func (c *SessionCoordinator) adoptIdentity(ctx context.Context, identity domainauth.Identity) {
	role, err := c.resolver.Resolve(ctx, identity.UserID)
	if err != nil {
		c.logger.Warn("could not resolve role for externally announced session, staying signed out",
			"user_id", identity.UserID, "error", err)
		c.count("auth.event.dropped", map[string]string{"reason": "role_resolution"})
		return
	}

	c.mu.Lock()
	if c.midTransition || c.state != domainauth.StateSignedOut {
		c.mu.Unlock()
		c.count("auth.event.dropped", map[string]string{"reason": "state_changed"})
		return
	}
	c.session = domainauth.Session{
		UserID:        identity.UserID,
		Email:         identity.Email,
		Role:          role,
		Token:         identity.Token,
		TokenIssuedAt: identity.IssuedAt,
	}
	c.cachedRole = role
	c.state = domainauth.StateSignedIn
	c.mu.Unlock()

	c.cache.Write(ctx, TierVolatile, cacheKeyUser, cachedUser{UserID: identity.UserID, Email: identity.Email}, 0)
	c.cache.Write(ctx, TierVolatile, cacheKeyRole, role, 0)
	c.count("auth.event.adopted", map[string]string{"role": string(role)})
	c.notify()
}

// desynchronize handles a detected role inconsistency: announce the
// Desynchronized state, then force a full clear back to SignedOut. The
// coordinator never keeps serving a desynchronized session.
func (c *SessionCoordinator) desynchronize(ctx context.Context, userID string, held, resolved domainauth.Role) {
	c.logger.Warn("role desynchronization detected, forcing full clear",
		"user_id", userID,
		"held_role", string(held),
		"resolved_role", string(resolved),
	)
	c.count("auth.desync", nil)

	c.mu.Lock()
	c.state = domainauth.StateDesynchronized
	c.mu.Unlock()
	c.notify()

	c.mu.Lock()
	c.clearSessionLocked()
	c.mu.Unlock()
	c.clearTiers(ctx, true)
	c.notify()
}

// settleSignedOut rolls back a failed transition, leaving no partial state.
func (c *SessionCoordinator) settleSignedOut(ctx context.Context, clearDurable bool) {
	c.mu.Lock()
	c.clearSessionLocked()
	c.midTransition = false
	c.mu.Unlock()
	c.clearTiers(ctx, clearDurable)
	c.notify()
}

// clearSessionLocked resets the in-memory session. Caller holds c.mu.
func (c *SessionCoordinator) clearSessionLocked() {
	c.session = domainauth.Session{}
	c.cachedRole = ""
	c.state = domainauth.StateSignedOut
}

// clearTiers empties the volatile tier and, when requested, removes the
// durable remember-me token.
func (c *SessionCoordinator) clearTiers(ctx context.Context, durableToken bool) {
	c.cache.ClearTier(ctx, TierVolatile)
	if durableToken {
		c.cache.Remove(ctx, TierDurable, cacheKeyRememberToken)
	}
}

func (c *SessionCoordinator) snapshotLocked() Snapshot {
	authenticated := c.readiness == domainauth.ReadinessReady &&
		c.state == domainauth.StateSignedIn &&
		!c.session.IsZero() &&
		c.session.Consistent() &&
		c.cachedRole == c.session.Role
	return Snapshot{
		State:           c.state,
		Readiness:       c.readiness,
		IsAuthenticated: authenticated,
		UserID:          c.session.UserID,
		Email:           c.session.Email,
		Role:            c.session.Role,
	}
}

// notify delivers the current snapshot to subscribers. Callbacks run without
// the coordinator lock held, so they may call GetState freely.
func (c *SessionCoordinator) notify() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *SessionCoordinator) count(name string, tags map[string]string) {
	if c.metrics == nil {
		return
	}
	c.metrics.Count(name, 1, tags)
}
