package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

func TestKeyValueStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := NewKeyValueStore(0)

	_, err := store.GetItem(ctx, "favorites")
	assert.ErrorIs(t, err, domain.ErrKeyMissing)

	require.NoError(t, store.SetItem(ctx, "favorites", "[]"))
	value, err := store.GetItem(ctx, "favorites")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	require.NoError(t, store.RemoveItem(ctx, "favorites"))
	_, err = store.GetItem(ctx, "favorites")
	assert.ErrorIs(t, err, domain.ErrKeyMissing)

	// removing a missing key is not an error
	assert.NoError(t, store.RemoveItem(ctx, "favorites"))
}

func TestKeyValueStore_Quota(t *testing.T) {
	ctx := context.Background()
	store := NewKeyValueStore(20)

	require.NoError(t, store.SetItem(ctx, "k", "0123456789"))
	usage, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), usage.UsedBytes)
	assert.Equal(t, int64(20), usage.QuotaBytes)

	err = store.SetItem(ctx, "other", "0123456789")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	// replacing a value only counts the difference
	require.NoError(t, store.SetItem(ctx, "k", "0123456789abcdefgh"))
	usage, _ = store.Usage(ctx)
	assert.Equal(t, int64(19), usage.UsedBytes)

	value, _ := store.GetItem(ctx, "k")
	assert.Equal(t, "0123456789abcdefgh", value)
}

func TestKeyValueStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewKeyValueStore(0)
	assert.Error(t, store.SetItem(ctx, "k", "v"))
}

func TestStoreFactory_SharesOrigin(t *testing.T) {
	ctx := context.Background()
	factory := NewStoreFactory(0)

	a, err := factory.Open(ctx, "origin-a")
	require.NoError(t, err)
	again, err := factory.Open(ctx, "origin-a")
	require.NoError(t, err)
	b, err := factory.Open(ctx, "origin-b")
	require.NoError(t, err)

	require.NoError(t, a.SetItem(ctx, "favorites", "[]"))

	value, err := again.GetItem(ctx, "favorites")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	_, err = b.GetItem(ctx, "favorites")
	assert.ErrorIs(t, err, domain.ErrKeyMissing)
}

func TestKeyValueStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store := NewKeyValueStore(0)
	require.NoError(t, store.SetItem(ctx, "k", "v"))

	store.SetUnavailable(true)
	_, err := store.GetItem(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, store.SetItem(ctx, "k", "w"), domain.ErrStorageUnavailable)
	assert.ErrorIs(t, store.RemoveItem(ctx, "k"), domain.ErrStorageUnavailable)
	_, err = store.Usage(ctx)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	store.SetUnavailable(false)
	value, err := store.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}
