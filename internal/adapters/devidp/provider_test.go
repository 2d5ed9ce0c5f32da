package devidp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/marketbay/storefront/internal/domain/auth"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		UserID:   "dev-user",
		Email:    "dev@example.com",
		Password: "secret",
	})
	require.NoError(t, err)
	return p
}

func TestNewProviderRequiresIdentity(t *testing.T) {
	_, err := NewProvider(Config{Email: "dev@example.com"})
	assert.Error(t, err)

	_, err = NewProvider(Config{UserID: "dev-user"})
	assert.Error(t, err)
}

func TestSignInMintsSession(t *testing.T) {
	p := newTestProvider(t)

	identity, err := p.SignIn(context.Background(), "dev@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", identity.UserID)
	assert.NotEmpty(t, identity.Token)

	current, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, identity.Token, current.Token)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.SignIn(context.Background(), "dev@example.com", "wrong")
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)

	_, err = p.SignIn(context.Background(), "other@example.com", "secret")
	assert.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
}

func TestSignOutDropsSession(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.SignIn(context.Background(), "dev@example.com", "secret")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(context.Background()))

	current, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestEmitTokenRefreshedNotifiesSubscribers(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.SignIn(context.Background(), "dev@example.com", "secret")
	require.NoError(t, err)

	var events []domainauth.ProviderEvent
	unsubscribe := p.Subscribe(func(ev domainauth.ProviderEvent) {
		events = append(events, ev)
	})

	p.EmitTokenRefreshed("tok-2")
	require.Len(t, events, 1)
	assert.Equal(t, domainauth.EventTokenRefreshed, events[0].Kind)
	require.NotNil(t, events[0].Identity)
	assert.Equal(t, "tok-2", events[0].Identity.Token)

	unsubscribe()
	p.EmitTokenRefreshed("tok-3")
	assert.Len(t, events, 1)
}

func TestEmitRemoteSignOutDeliversNilIdentity(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.SignIn(context.Background(), "dev@example.com", "secret")
	require.NoError(t, err)

	var events []domainauth.ProviderEvent
	p.Subscribe(func(ev domainauth.ProviderEvent) { events = append(events, ev) })

	p.EmitRemoteSignOut()
	require.Len(t, events, 1)
	assert.Equal(t, domainauth.EventSignedOut, events[0].Kind)
	assert.Nil(t, events[0].Identity)

	current, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}
