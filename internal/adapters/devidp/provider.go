package devidp

// Package devidp provides a config-driven IdentityProvider for local
// development and tests. It keeps the provider-side session in memory and
// exposes Emit* helpers that simulate changes originating elsewhere
// (another tab, a background refresh) through the subscription stream.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/marketbay/storefront/internal/domain/auth"
	"github.com/marketbay/storefront/internal/ports"
)

// Config controls the dev identity provider.
type Config struct {
	UserID   string
	Email    string
	Password string // empty accepts any non-empty password

	Now func() time.Time // injectable clock for tests
}

// Provider implements ports.IdentityProvider in memory.
//
// The optional *Func fields override individual operations, mirroring how
// tests script failure cases without a separate mock type.
type Provider struct {
	SignInFunc         func(ctx context.Context, email, password string) (domainauth.Identity, error)
	CurrentSessionFunc func(ctx context.Context) (*domainauth.Identity, error)
	SignOutFunc        func(ctx context.Context) error

	cfg Config
	now func() time.Time

	mu      sync.Mutex
	current *domainauth.Identity
	subs    map[int]func(domainauth.ProviderEvent)
	nextSub int
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev idp: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev idp: Email is required")
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Provider{
		cfg:  cfg,
		now:  nowFn,
		subs: make(map[int]func(domainauth.ProviderEvent)),
	}, nil
}

// SignIn validates credentials against the configured identity and mints a
// fresh opaque token. The resulting session becomes the provider's current
// session; no notification is emitted for locally initiated sign-ins.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if p.SignInFunc != nil {
		return p.SignInFunc(ctx, email, password)
	}

	if email != p.cfg.Email || password == "" {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	if p.cfg.Password != "" && password != p.cfg.Password {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}

	identity := domainauth.Identity{
		UserID:   p.cfg.UserID,
		Email:    p.cfg.Email,
		Token:    uuid.NewString(),
		IssuedAt: p.now(),
	}

	p.mu.Lock()
	cp := identity
	p.current = &cp
	p.mu.Unlock()

	return identity, nil
}

// SignOut drops the provider-side session.
func (p *Provider) SignOut(ctx context.Context) error {
	if p.SignOutFunc != nil {
		return p.SignOutFunc(ctx)
	}
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	return nil
}

// CurrentSession returns the provider's authoritative session, or nil.
func (p *Provider) CurrentSession(ctx context.Context) (*domainauth.Identity, error) {
	if p.CurrentSessionFunc != nil {
		return p.CurrentSessionFunc(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, nil
	}
	cp := *p.current
	return &cp, nil
}

// Subscribe registers a notification handler and returns its unsubscribe
// function.
func (p *Provider) Subscribe(handler func(domainauth.ProviderEvent)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = handler
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// SetCurrent installs a provider-side session without emitting events.
// Useful for arranging restoration scenarios.
func (p *Provider) SetCurrent(identity *domainauth.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if identity == nil {
		p.current = nil
		return
	}
	cp := *identity
	p.current = &cp
}

// EmitTokenRefreshed simulates a background token refresh: the current
// session's token is replaced (or kept, when token matches the one held) and
// a TokenRefreshed notification is delivered.
func (p *Provider) EmitTokenRefreshed(token string) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return
	}
	if token != "" {
		p.current.Token = token
		p.current.IssuedAt = p.now()
	}
	cp := *p.current
	p.mu.Unlock()

	p.emit(domainauth.ProviderEvent{
		Kind:     domainauth.EventTokenRefreshed,
		Identity: &cp,
		At:       p.now(),
	})
}

// EmitRemoteSignIn simulates a sign-in performed elsewhere.
func (p *Provider) EmitRemoteSignIn(identity domainauth.Identity) {
	p.mu.Lock()
	cp := identity
	p.current = &cp
	p.mu.Unlock()

	emitted := identity
	p.emit(domainauth.ProviderEvent{
		Kind:     domainauth.EventSignedIn,
		Identity: &emitted,
		At:       p.now(),
	})
}

// EmitRemoteSignOut simulates a sign-out performed elsewhere.
func (p *Provider) EmitRemoteSignOut() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.emit(domainauth.ProviderEvent{
		Kind: domainauth.EventSignedOut,
		At:   p.now(),
	})
}

func (p *Provider) emit(ev domainauth.ProviderEvent) {
	p.mu.Lock()
	handlers := make([]func(domainauth.ProviderEvent), 0, len(p.subs))
	for _, h := range p.subs {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
