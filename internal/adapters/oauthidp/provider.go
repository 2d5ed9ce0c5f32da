package oauthidp

// Package oauthidp implements the identity-provider port against an
// OAuth2/OIDC server using the resource-owner password grant. Token
// verification is delegated to go-oidc; this adapter never inspects token
// cryptography itself.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/marketbay/storefront/internal/domain/auth"
	"github.com/marketbay/storefront/internal/ports"
)

// ProviderConfig holds configuration for the OAuth identity provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	DiscoveryURL string
	Scope        string

	// UserIDPath and EmailPath are JMESPath expressions evaluated against
	// the verified ID-token claims. Defaults: "sub" and "email".
	UserIDPath string
	EmailPath  string

	HTTPClient *http.Client // optional, defaults to a 30s-timeout client
}

// Provider implements ports.IdentityProvider using OAuth2 + OIDC.
type Provider struct {
	config   *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	client   *http.Client

	userIDPath string
	emailPath  string

	mu       sync.Mutex
	identity *domainauth.Identity
	source   oauth2.TokenSource
	subs     map[int]func(domainauth.ProviderEvent)
	nextSub  int
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider discovers the OIDC endpoints and constructs the provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	userIDPath := cfg.UserIDPath
	if userIDPath == "" {
		userIDPath = "sub"
	}
	emailPath := cfg.EmailPath
	if emailPath == "" {
		emailPath = "email"
	}

	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")

	discoveryCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
		verifier:   op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		client:     httpClient,
		userIDPath: userIDPath,
		emailPath:  emailPath,
		subs:       make(map[int]func(domainauth.ProviderEvent)),
	}, nil
}

// SignIn exchanges credentials through the password grant and verifies the
// resulting ID token. A 4xx token response maps to ErrInvalidCredentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domainauth.Identity, error) {
	grantCtx := context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.config.PasswordCredentialsToken(grantCtx, email, password)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil &&
			rErr.Response.StatusCode >= 400 && rErr.Response.StatusCode < 500 {
			return domainauth.Identity{}, domainauth.ErrInvalidCredentials
		}
		return domainauth.Identity{}, fmt.Errorf("password grant: %w", err)
	}

	identity, err := p.identityFromToken(ctx, token)
	if err != nil {
		return domainauth.Identity{}, err
	}

	p.mu.Lock()
	cp := identity
	p.identity = &cp
	p.source = p.config.TokenSource(grantCtx, token)
	p.mu.Unlock()

	return identity, nil
}

// SignOut drops the provider-side session. Revocation at the server is the
// caller's routing concern; the coordinator treats this as best effort.
func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.identity = nil
	p.source = nil
	p.mu.Unlock()
	return nil
}

// CurrentSession returns the active session, refreshing the access token
// through the underlying token source when it has expired. A rotation is
// announced to subscribers as a TokenRefreshed notification.
func (p *Provider) CurrentSession(_ context.Context) (*domainauth.Identity, error) {
	p.mu.Lock()
	identity := p.identity
	source := p.source
	p.mu.Unlock()

	if identity == nil || source == nil {
		return nil, nil
	}

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	p.mu.Lock()
	if p.identity == nil {
		p.mu.Unlock()
		return nil, nil
	}
	rotated := token.AccessToken != p.identity.Token
	if rotated {
		p.identity.Token = token.AccessToken
		p.identity.IssuedAt = time.Now()
	}
	cp := *p.identity
	p.mu.Unlock()

	if rotated {
		p.emit(domainauth.ProviderEvent{
			Kind:     domainauth.EventTokenRefreshed,
			Identity: &cp,
			At:       time.Now(),
		})
	}
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

func (p *Provider) identityFromToken(ctx context.Context, token *oauth2.Token) (domainauth.Identity, error) {
	rawID, _ := token.Extra("id_token").(string)
	if rawID == "" {
		return domainauth.Identity{}, errors.New("missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", err)
	}

	userID, err := stringClaim(claims, p.userIDPath)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract user id: %w", err)
	}
	email, err := stringClaim(claims, p.emailPath)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract email: %w", err)
	}
	if userID == "" {
		return domainauth.Identity{}, errors.New("id_token has no user identifier")
	}

	return domainauth.Identity{
		UserID:   userID,
		Email:    email,
		Token:    token.AccessToken,
		IssuedAt: time.Now(),
	}, nil
}

// stringClaim evaluates a JMESPath expression against claims and coerces the
// result to a string. A missing claim yields "" with no error.
func stringClaim(claims map[string]any, path string) (string, error) {
	v, err := jmespath.Search(path, claims)
	if err != nil {
		return "", fmt.Errorf("jmespath %q: %w", path, err)
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("claim at %q is not a string", path)
	}
	return s, nil
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
