package pgroles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbay/storefront/internal/testutil"
)

func TestFetchRoleRoundTrip(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.UpsertRole(ctx, "it-user-1", "seller"))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM user_roles WHERE user_id = 'it-user-1'`)
	})

	role, found, err := store.FetchRole(ctx, "it-user-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "seller", role)
}

func TestFetchRoleMissingRecord(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	store := NewStore(pool)

	_, found, err := store.FetchRole(context.Background(), "it-user-never-seen")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpsertRoleReplacesExisting(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.UpsertRole(ctx, "it-user-2", "buyer"))
	require.NoError(t, store.UpsertRole(ctx, "it-user-2", "admin"))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM user_roles WHERE user_id = 'it-user-2'`)
	})

	role, found, err := store.FetchRole(ctx, "it-user-2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "admin", role)
}

func TestFetchRoleRequiresUserID(t *testing.T) {
	store := NewStore(nil)

	_, _, err := store.FetchRole(context.Background(), "")
	assert.Error(t, err)
}
