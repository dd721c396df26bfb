package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

func TestAddFavorite_NewItem(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, newKeyFailingStore(), clock)
	store.Initialize(ctx)

	added := store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1", Title: "Granite Cross", Price: 8820})
	require.True(t, added)

	state := store.State()
	assert.Equal(t, 1, state.TotalFavorites)
	assert.True(t, store.IsFavorite("t1"))
	assert.Equal(t, clock.Now().UnixMilli(), state.Favorites[0].AddedAt)
	assert.Nil(t, state.Error)
	assert.False(t, state.IsLoading)
}

func TestAddFavorite_IgnoresCallerAddedAt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, newKeyFailingStore(), clock)

	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1", AddedAt: 42}))
	assert.Equal(t, clock.Now().UnixMilli(), store.State().Favorites[0].AddedAt)
}

func TestAddFavorite_RejectsDuplicateAndEmptyID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newKeyFailingStore(), newFakeClock())

	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))
	assert.False(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1", Title: "again"}))
	assert.False(t, store.AddFavorite(ctx, domain.FavoriteItem{}))

	state := store.State()
	assert.Equal(t, 1, state.TotalFavorites)
	assert.Empty(t, state.Favorites[0].Title)
}

func TestGetSortedFavorites(t *testing.T) {
	ctx := context.Background()
	kv := newKeyFailingStore()
	require.NoError(t, kv.SetItem(ctx, "favorites", `[{"id":"t1","addedAt":100},{"id":"t2","addedAt":200}]`))

	store := newTestStore(t, kv, newFakeClock())
	store.Initialize(ctx)

	assert.Equal(t, []string{"t2", "t1"}, ids(store.GetSortedFavorites(false)))
	assert.Equal(t, []string{"t1", "t2"}, ids(store.GetSortedFavorites(true)))
	// the store itself keeps insertion order
	assert.Equal(t, []string{"t1", "t2"}, ids(store.State().Favorites))
}

func TestGetSortedFavorites_StableOnTies(t *testing.T) {
	ctx := context.Background()
	kv := newKeyFailingStore()
	require.NoError(t, kv.SetItem(ctx, "favorites",
		`[{"id":"a","addedAt":5},{"id":"b","addedAt":1},{"id":"c","addedAt":5},{"id":"d","addedAt":1}]`))

	store := newTestStore(t, kv, newFakeClock())
	store.Initialize(ctx)

	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(store.GetSortedFavorites(true)))
	assert.Equal(t, []string{"a", "c", "b", "d"}, ids(store.GetSortedFavorites(false)))
}

func TestGetSortedFavorites_ReversesWithDistinctTimes(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(t, newKeyFailingStore(), clock)

	for i := 0; i < 6; i++ {
		require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: fmt.Sprintf("t%d", i)}))
		clock.Advance(time.Second)
	}

	asc := ids(store.GetSortedFavorites(true))
	desc := ids(store.GetSortedFavorites(false))
	for i := range asc {
		assert.Equal(t, asc[i], desc[len(desc)-1-i])
	}
}

func TestGetPaginatedFavorites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newKeyFailingStore(), newFakeClock())
	for i := 0; i < 14; i++ {
		require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: fmt.Sprintf("t%02d", i)}))
	}

	first := store.GetPaginatedFavorites(1, 12)
	assert.Len(t, first.Items, 12)
	assert.True(t, first.HasNextPage)
	assert.False(t, first.HasPrevPage)
	assert.Equal(t, 2, first.TotalPages)
	assert.Equal(t, 14, first.TotalItems)

	second := store.GetPaginatedFavorites(2, 12)
	assert.Len(t, second.Items, 2)
	assert.False(t, second.HasNextPage)
	assert.True(t, second.HasPrevPage)
	assert.Equal(t, 2, second.TotalPages)

	t.Run("defaults", func(t *testing.T) {
		page := store.GetPaginatedFavorites(0, 0)
		assert.Equal(t, 1, page.CurrentPage)
		assert.Len(t, page.Items, 12)
	})

	t.Run("past the end", func(t *testing.T) {
		page := store.GetPaginatedFavorites(5, 12)
		assert.Empty(t, page.Items)
		assert.NotNil(t, page.Items)
		assert.False(t, page.HasNextPage)
	})
}

func TestPaginate_HugeValues(t *testing.T) {
	items := []domain.FavoriteItem{{ID: "a"}, {ID: "b"}}
	maxInt := int(^uint(0) >> 1)

	for _, page := range []int{1 << 62, maxInt, 1<<62 + 1} {
		result := Paginate(items, page, 12, 12)
		assert.Empty(t, result.Items, "page=%d", page)
		assert.Equal(t, 1, result.TotalPages)
		assert.Equal(t, 2, result.TotalItems)
		assert.False(t, result.HasNextPage)
		assert.True(t, result.HasPrevPage)
	}

	for _, limit := range []int{1 << 62, maxInt} {
		result := Paginate(items, 1, limit, 12)
		assert.Equal(t, []string{"a", "b"}, ids(result.Items), "limit=%d", limit)
		assert.Equal(t, 1, result.TotalPages)

		result = Paginate(items, 2, limit, 12)
		assert.Empty(t, result.Items)
	}

	assert.Empty(t, Paginate(items, maxInt, maxInt, 12).Items)
}

func TestPaginate_PagesReconstructList(t *testing.T) {
	for n := 0; n <= 25; n++ {
		items := make([]domain.FavoriteItem, n)
		for i := range items {
			items[i] = domain.FavoriteItem{ID: fmt.Sprintf("%d", i)}
		}
		for limit := 1; limit <= 7; limit++ {
			first := Paginate(items, 1, limit, 12)
			expectedPages := (n + limit - 1) / limit
			if expectedPages == 0 {
				expectedPages = 1
			}
			require.Equal(t, expectedPages, first.TotalPages, "n=%d limit=%d", n, limit)

			var all []domain.FavoriteItem
			for page := 1; page <= first.TotalPages; page++ {
				all = append(all, Paginate(items, page, limit, 12).Items...)
			}
			require.Equal(t, ids(items), ids(all), "n=%d limit=%d", n, limit)
		}
	}
}

func TestPersistFailure_KeepsInMemoryList(t *testing.T) {
	ctx := context.Background()
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, newFakeClock())
	store.Initialize(ctx)

	kv.failWrites("favorites", domain.ErrQuotaExceeded)
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))

	state := store.State()
	assert.Equal(t, 1, state.TotalFavorites)
	require.NotNil(t, state.Error)
	assert.Equal(t, ErrMsgSaveFailed, *state.Error)
	assert.True(t, store.IsFavorite("t1"))

	kv.failWrites("favorites", nil)
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t2"}))
	assert.Nil(t, store.State().Error)
	assert.JSONEq(t, mustJSON(t, store.State().Favorites), rawValue(t, kv, "favorites"))
}

func TestInitialize_StaleCacheVersionFallsBackToPrimary(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	require.NoError(t, kv.SetItem(ctx, "favorites_cache",
		fmt.Sprintf(`{"data":[{"id":"stale"}],"timestamp":%d,"version":0}`, clock.Now().UnixMilli())))
	require.NoError(t, kv.SetItem(ctx, "favorites", `[{"id":"a","title":"Angel","addedAt":5}]`))

	store := newTestStore(t, kv, clock)
	store.Initialize(ctx)

	assert.Equal(t, []string{"a"}, ids(store.State().Favorites))
	assert.Nil(t, store.State().Error)

	var envelope domain.CacheEnvelope
	require.NoError(t, json.Unmarshal([]byte(rawValue(t, kv, "favorites_cache")), &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, []string{"a"}, ids(envelope.Data))
}

func TestInitialize_PrefersValidCache(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	require.NoError(t, kv.SetItem(ctx, "favorites_cache",
		fmt.Sprintf(`{"data":[{"id":"cached","addedAt":1}],"timestamp":%d,"version":1}`, clock.Now().UnixMilli())))
	require.NoError(t, kv.SetItem(ctx, "favorites", `[{"id":"primary","addedAt":1}]`))

	store := newTestStore(t, kv, clock)
	store.Initialize(ctx)
	assert.Equal(t, []string{"cached"}, ids(store.State().Favorites))
}

func TestInitialize_MissingPrimaryIsEmpty(t *testing.T) {
	store := newTestStore(t, newKeyFailingStore(), newFakeClock())
	store.Initialize(context.Background())

	state := store.State()
	assert.Empty(t, state.Favorites)
	assert.NotNil(t, state.Favorites)
	assert.Nil(t, state.Error)
	assert.False(t, state.IsLoading)
}

func TestInitialize_RecoversFromBackup(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	require.NoError(t, kv.SetItem(ctx, "favorites", `{"broken":`))
	require.NoError(t, kv.SetItem(ctx, "favorites_backup", `{"data":[{"id":"b1","addedAt":7}],"timestamp":1}`))

	store := newTestStore(t, kv, clock)
	store.Initialize(ctx)

	state := store.State()
	assert.Equal(t, []string{"b1"}, ids(state.Favorites))
	require.NotNil(t, state.Error)
	assert.Equal(t, ErrMsgLoadFailed, *state.Error)
	assert.JSONEq(t, `[{"id":"b1","addedAt":7}]`, rawValue(t, kv, "favorites"))
}

func TestInitialize_UnrecoverableLeavesEmptyList(t *testing.T) {
	ctx := context.Background()
	kv := newKeyFailingStore()
	kv.SetUnavailable(true)

	store := newTestStore(t, kv, newFakeClock())
	store.Initialize(ctx)

	state := store.State()
	assert.Empty(t, state.Favorites)
	require.NotNil(t, state.Error)
	assert.False(t, state.IsLoading)

	// mutations still work in memory
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "x"}))
	assert.True(t, store.IsFavorite("x"))
	assert.NotNil(t, store.State().Error)
}

func TestInitialize_NormalizesLegacyRecords(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	require.NoError(t, kv.SetItem(ctx, "favorites",
		`[{"id":"old","name":"Legacy"},{"id":"new","addedAt":3},{"id":"old","name":"Copy"}]`))

	store := newTestStore(t, kv, clock)
	store.Initialize(ctx)

	favorites := store.State().Favorites
	require.Equal(t, []string{"old", "new"}, ids(favorites))
	assert.Equal(t, "Legacy", favorites[0].Name)
	assert.Equal(t, clock.Now().UnixMilli(), favorites[0].AddedAt)
	assert.Equal(t, int64(3), favorites[1].AddedAt)
}

func TestClearAllFavorites(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, clock)
	store.Initialize(ctx)

	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t2"}))
	clock.Advance(time.Second)

	store.ClearAllFavorites(ctx)

	assert.Equal(t, 0, store.State().TotalFavorites)
	assert.Equal(t, "[]", rawValue(t, kv, "favorites"))

	var cache domain.CacheEnvelope
	require.NoError(t, json.Unmarshal([]byte(rawValue(t, kv, "favorites_cache")), &cache))
	assert.Empty(t, cache.Data)

	var backup domain.BackupEnvelope
	require.NoError(t, json.Unmarshal([]byte(rawValue(t, kv, "favorites_backup")), &backup))
	assert.Empty(t, backup.Data)
	assert.Equal(t, clock.Now().UnixMilli(), backup.Timestamp)
}

func TestRemoveFavorite_Idempotent(t *testing.T) {
	ctx := context.Background()
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, newFakeClock())

	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t2"}))

	store.RemoveFavorite(ctx, "t1")
	once := store.State().Favorites
	store.RemoveFavorite(ctx, "t1")
	assert.Equal(t, once, store.State().Favorites)
	assert.Equal(t, []string{"t2"}, ids(once))

	store.RemoveFavorite(ctx, "missing")
	assert.Equal(t, []string{"t2"}, ids(store.State().Favorites))
	assert.Nil(t, store.State().Error)
	assert.JSONEq(t, mustJSON(t, once), rawValue(t, kv, "favorites"))
}

func TestAddFavorite_PersistsZeroAndNullDisplayFields(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, clock)

	var item domain.FavoriteItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","title":"","price":0,"image":null}`), &item))
	require.True(t, store.AddFavorite(ctx, item))

	expected := fmt.Sprintf(`[{"id":"t1","title":"","price":0,"image":null,"addedAt":%d}]`, clock.Now().UnixMilli())
	assert.JSONEq(t, expected, rawValue(t, kv, "favorites"))

	reloaded := newTestStore(t, kv, clock)
	reloaded.Initialize(ctx)
	assert.JSONEq(t, expected, mustJSON(t, reloaded.State().Favorites))
}

func TestRoundTrip_ReloadYieldsSameList(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()

	first := newTestStore(t, kv, clock)
	require.True(t, first.AddFavorite(ctx, domain.FavoriteItem{
		ID:    "t1",
		Title: "Black Granite",
		Price: 1200.5,
		Extra: map[string]json.RawMessage{"material": json.RawMessage(`"granite"`)},
	}))
	clock.Advance(time.Second)
	require.True(t, first.AddFavorite(ctx, domain.FavoriteItem{ID: "t2", Name: "Marble Angel"}))
	want := first.State().Favorites

	t.Run("from cache", func(t *testing.T) {
		reloaded := newTestStore(t, kv, clock)
		reloaded.Initialize(ctx)
		assert.Equal(t, want, reloaded.State().Favorites)
	})

	t.Run("from primary", func(t *testing.T) {
		first.RefreshCache(ctx)
		reloaded := newTestStore(t, kv, clock)
		reloaded.Initialize(ctx)
		assert.Equal(t, want, reloaded.State().Favorites)
	})
}

func TestBackupIsThrottled(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, clock)

	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))
	clock.Advance(10 * time.Second)
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t2"}))

	var backup domain.BackupEnvelope
	require.NoError(t, json.Unmarshal([]byte(rawValue(t, kv, "favorites_backup")), &backup))
	assert.Equal(t, []string{"t1"}, ids(backup.Data))

	clock.Advance(time.Minute)
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t3"}))
	require.NoError(t, json.Unmarshal([]byte(rawValue(t, kv, "favorites_backup")), &backup))
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(backup.Data))
}

func TestBackupFailureDoesNotSetError(t *testing.T) {
	ctx := context.Background()
	kv := newKeyFailingStore()
	kv.failWrites("favorites_backup", domain.ErrQuotaExceeded)
	kv.failWrites("favorites_cache", domain.ErrQuotaExceeded)
	store := newTestStore(t, kv, newFakeClock())

	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))
	assert.Nil(t, store.State().Error)
}

func TestRefreshCache(t *testing.T) {
	ctx := context.Background()
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, newFakeClock())
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))
	require.True(t, store.GetStorageInfo(ctx).CacheValid)

	store.RefreshCache(ctx)

	assert.False(t, store.GetStorageInfo(ctx).CacheValid)
	assert.True(t, store.IsFavorite("t1"))
	assert.NotEmpty(t, rawValue(t, kv, "favorites"))
}

func TestGetStorageInfo(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, clock)
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1", Title: "Cross"}))

	info := store.GetStorageInfo(ctx)
	assert.Equal(t, int64(1<<20), info.QuotaBytes)
	assert.Positive(t, info.UsedBytes)
	assert.Equal(t, info.QuotaBytes-info.UsedBytes, info.AvailableBytes)
	assert.Equal(t, int64(len(mustJSON(t, store.State().Favorites))), info.ListBytes)
	assert.Equal(t, 1, info.ItemCount)
	assert.True(t, info.CacheValid)
	require.NotNil(t, info.BackupAt)
	assert.Equal(t, clock.Now().UnixMilli(), *info.BackupAt)
	assert.Contains(t, info.UsedHuman, "B")
	assert.Contains(t, info.AvailableHuman, "KiB")
}

func TestGetStorageInfo_Unavailable(t *testing.T) {
	kv := newKeyFailingStore()
	store := newTestStore(t, kv, newFakeClock())
	kv.SetUnavailable(true)

	info := store.GetStorageInfo(context.Background())
	assert.Zero(t, info.QuotaBytes)
	assert.False(t, info.CacheValid)
	assert.Nil(t, info.BackupAt)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newKeyFailingStore(), newFakeClock())

	updates, cancel := store.Subscribe()
	require.True(t, store.AddFavorite(ctx, domain.FavoriteItem{ID: "t1"}))

	select {
	case state := <-updates:
		assert.Equal(t, 1, state.TotalFavorites)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}

	cancel()
	cancel()
	_, ok := <-updates
	assert.False(t, ok)

	store.Close()
	closed, _ := store.Subscribe()
	_, ok = <-closed
	assert.False(t, ok)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
