package memcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := New()

	got, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpiredEntryEvictedOnRead(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := NewWithClock(clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestStoredValueIsCopied(t *testing.T) {
	store := New()
	ctx := context.Background()

	value := []byte("original")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClearRemovesEverything(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, 0, store.Len())
}
