package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

func TestSafeStorage_ReadJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s, _ := newSafeStorage(t)
		var got []domain.FavoriteItem
		err := s.ReadJSON(ctx, "favorites", contracts.FavoritesListRecord, &got)
		assert.ErrorIs(t, err, domain.ErrKeyMissing)
		assert.Equal(t, domain.KindKeyMissing, domain.KindOf(err))
	})

	t.Run("valid list", func(t *testing.T) {
		s, kv := newSafeStorage(t)
		require.NoError(t, kv.SetItem(ctx, "favorites", `[{"id":"1","name":"Granite"}]`))
		var got []domain.FavoriteItem
		require.NoError(t, s.ReadJSON(ctx, "favorites", contracts.FavoritesListRecord, &got))
		require.Len(t, got, 1)
		assert.Equal(t, "Granite", got[0].Name)
	})

	t.Run("not json", func(t *testing.T) {
		s, kv := newSafeStorage(t)
		require.NoError(t, kv.SetItem(ctx, "favorites", `{{{`))
		var got []domain.FavoriteItem
		err := s.ReadJSON(ctx, "favorites", contracts.FavoritesListRecord, &got)
		assert.ErrorIs(t, err, domain.ErrCorruptRecord)
	})

	t.Run("wrong shape", func(t *testing.T) {
		s, kv := newSafeStorage(t)
		require.NoError(t, kv.SetItem(ctx, "favorites", `{"id":"1"}`))
		var got []domain.FavoriteItem
		err := s.ReadJSON(ctx, "favorites", contracts.FavoritesListRecord, &got)
		assert.ErrorIs(t, err, domain.ErrCorruptRecord)
	})

	t.Run("unavailable", func(t *testing.T) {
		s, kv := newSafeStorage(t)
		kv.failGet = true
		var got []domain.FavoriteItem
		err := s.ReadJSON(ctx, "favorites", contracts.FavoritesListRecord, &got)
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
		assert.ErrorIs(t, err, errDiskGone)
	})
}

func TestSafeStorage_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		s, kv := newSafeStorage(t)
		require.NoError(t, s.Write(ctx, "favorites", items("1")))
		raw, err := kv.GetItem(ctx, "favorites")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"1","name":"Memorial 1"}]`, raw)
	})

	t.Run("quota", func(t *testing.T) {
		s, kv := newSafeStorage(t)
		kv.failSet = domain.ErrQuotaExceeded
		err := s.Write(ctx, "favorites", items("1"))
		assert.Equal(t, domain.KindQuotaExceeded, domain.KindOf(err))
	})

	t.Run("unavailable", func(t *testing.T) {
		s, kv := newSafeStorage(t)
		kv.failSet = errDiskGone
		err := s.Write(ctx, "favorites", items("1"))
		assert.Equal(t, domain.KindStorageUnavailable, domain.KindOf(err))
	})

	t.Run("unserializable", func(t *testing.T) {
		s, _ := newSafeStorage(t)
		err := s.Write(ctx, "favorites", make(chan int))
		assert.ErrorIs(t, err, domain.ErrCorruptRecord)
	})
}

func TestReadOrDefault(t *testing.T) {
	ctx := context.Background()
	s, kv := newSafeStorage(t)

	def := []domain.FavoriteItem{}
	got := ReadOrDefault(ctx, s, "favorites", contracts.FavoritesListRecord, def)
	assert.Empty(t, got)

	require.NoError(t, kv.SetItem(ctx, "favorites", `[{"id":"7"}]`))
	got = ReadOrDefault(ctx, s, "favorites", contracts.FavoritesListRecord, def)
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].ID)
}
