package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoleStoreSeededLookup(t *testing.T) {
	store := NewMemoryRoleStore(map[string]string{"u-1": "seller"})

	role, found, err := store.FetchRole(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "seller", role)

	_, found, err = store.FetchRole(context.Background(), "u-2")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, store.Calls())
}

func TestMemoryRoleStoreErrShortCircuits(t *testing.T) {
	store := NewMemoryRoleStore(map[string]string{"u-1": "seller"})
	store.Err = errors.New("connection refused")

	_, _, err := store.FetchRole(context.Background(), "u-1")
	assert.Error(t, err)
}

func TestFailingCacheStore(t *testing.T) {
	boom := errors.New("tier down")
	store := &FailingCacheStore{Err: boom}

	assert.ErrorIs(t, store.Set(context.Background(), "k", []byte("v"), 0), boom)
	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Delete(context.Background(), "k"), boom)
	assert.ErrorIs(t, store.Clear(context.Background()), boom)
}
