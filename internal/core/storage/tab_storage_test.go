package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/adapters/memory"
	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.StorageEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.StorageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func TestTabStorage_PublishesChanges(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	tab := NewTabStorage(memory.NewKeyValueStore(0), pub, "origin", "tab-1", contextkeys.NoopLogger())

	require.NoError(t, tab.SetItem(ctx, "favorites", "[]"))
	require.NoError(t, tab.SetItem(ctx, "favorites", "[]"))
	require.NoError(t, tab.SetItem(ctx, "favorites", `[{"id":"1"}]`))
	require.NoError(t, tab.RemoveItem(ctx, "favorites"))
	require.NoError(t, tab.RemoveItem(ctx, "favorites"))

	require.Len(t, pub.events, 3)

	first := pub.events[0]
	assert.Equal(t, "origin", first.Origin)
	assert.Equal(t, "tab-1", first.SourceTab)
	assert.Nil(t, first.OldValue)
	require.NotNil(t, first.NewValue)
	assert.Equal(t, "[]", *first.NewValue)

	second := pub.events[1]
	require.NotNil(t, second.OldValue)
	assert.Equal(t, "[]", *second.OldValue)

	removal := pub.events[2]
	assert.Nil(t, removal.NewValue)
	require.NotNil(t, removal.OldValue)
	assert.Equal(t, `[{"id":"1"}]`, *removal.OldValue)
}

func TestTabStorage_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	kv := memory.NewKeyValueStore(0)
	tab := NewTabStorage(kv, pub, "origin", "tab-1", contextkeys.NoopLogger())

	require.NoError(t, tab.SetItem(ctx, "favorites", "[]"))
	value, err := kv.GetItem(ctx, "favorites")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)
}

func TestTabStorage_FailedWriteIsNotPublished(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	tab := NewTabStorage(memory.NewKeyValueStore(5), pub, "origin", "tab-1", contextkeys.NoopLogger())

	err := tab.SetItem(ctx, "favorites", "0123456789")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Empty(t, pub.events)
}
