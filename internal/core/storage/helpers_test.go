package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/adapters/memory"
	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

var errDiskGone = errors.New("disk gone")

// flakyStore fails the configured operations and otherwise delegates to memory.
type flakyStore struct {
	*memory.KeyValueStore
	failGet bool
	failSet error
}

func (f *flakyStore) GetItem(ctx context.Context, key string) (string, error) {
	if f.failGet {
		return "", errDiskGone
	}
	return f.KeyValueStore.GetItem(ctx, key)
}

func (f *flakyStore) SetItem(ctx context.Context, key, value string) error {
	if f.failSet != nil {
		return f.failSet
	}
	return f.KeyValueStore.SetItem(ctx, key, value)
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

func newSafeStorage(t *testing.T) (*SafeStorage, *flakyStore) {
	t.Helper()
	kv := &flakyStore{KeyValueStore: memory.NewKeyValueStore(0)}
	s, err := NewSafeStorage(kv, contextkeys.NoopLogger())
	require.NoError(t, err)
	return s, kv
}

func items(ids ...string) []domain.FavoriteItem {
	out := make([]domain.FavoriteItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.FavoriteItem{ID: id, Name: "Memorial " + id})
	}
	return out
}
