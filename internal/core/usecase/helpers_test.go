package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/adapters/memory"
	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

// keyFailingStore fails writes of selected keys and otherwise delegates to memory.
type keyFailingStore struct {
	*memory.KeyValueStore

	mu       sync.Mutex
	failKeys map[string]error
}

func newKeyFailingStore() *keyFailingStore {
	return &keyFailingStore{
		KeyValueStore: memory.NewKeyValueStore(1 << 20),
		failKeys:      make(map[string]error),
	}
}

func (s *keyFailingStore) failWrites(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failKeys, key)
		return
	}
	s.failKeys[key] = err
}

func (s *keyFailingStore) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	err := s.failKeys[key]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.KeyValueStore.SetItem(ctx, key, value)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(clock *fakeClock) FavoritesStoreConfig {
	cfg := DefaultFavoritesStoreConfig("origin", "tab-1")
	cfg.Now = clock.Now
	return cfg
}

func newTestStore(t *testing.T, kv *keyFailingStore, clock *fakeClock) *FavoritesStore {
	t.Helper()
	store, err := NewFavoritesStore(kv, testConfig(clock), contextkeys.NoopLogger())
	require.NoError(t, err)
	return store
}

func ids(items []domain.FavoriteItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func rawValue(t *testing.T, kv *keyFailingStore, key string) string {
	t.Helper()
	value, err := kv.GetItem(context.Background(), key)
	require.NoError(t, err)
	return value
}
