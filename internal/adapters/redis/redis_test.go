package redis_adapter

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	redisclient "github.com/apesoftware1/Memorial-sub001/pkg/redis"
)

func openClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := redisclient.NewClient(context.Background(), redisclient.Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func uniqueOrigin(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestDecodeEvent(t *testing.T) {
	_, err := decodeEvent([]byte(`{"origin":"o"}`))
	assert.Error(t, err)

	event, err := decodeEvent([]byte(`{"origin":"o","key":"favorites","newValue":null,"sourceTab":"t","occurredAt":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "o", event.Origin)
	assert.Nil(t, event.NewValue)
}

func TestKeyValueStore_SetGetRemoveAndQuota(t *testing.T) {
	ctx := context.Background()
	client := openClient(t)
	origin := uniqueOrigin(t)
	t.Cleanup(func() { client.Del(context.Background(), originKeyPrefix+origin) })

	store, err := NewKeyValueStore(client, origin, 20, contextkeys.NoopLogger())
	require.NoError(t, err)

	_, err = store.GetItem(ctx, "k1")
	assert.ErrorIs(t, err, domain.ErrKeyMissing)

	require.NoError(t, store.SetItem(ctx, "k1", "12345678"))
	assert.ErrorIs(t, store.SetItem(ctx, "k2", "123456789"), domain.ErrQuotaExceeded)

	usage, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), usage.UsedBytes)

	require.NoError(t, store.RemoveItem(ctx, "k1"))
	_, err = store.GetItem(ctx, "k1")
	assert.ErrorIs(t, err, domain.ErrKeyMissing)
}

func TestEventBus_SkipsSourceTab(t *testing.T) {
	client := openClient(t)
	bus, err := NewEventBus(client, contextkeys.NoopLogger())
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	origin := uniqueOrigin(t)
	tabA, err := bus.Subscribe(ctx, origin, "tab-a")
	require.NoError(t, err)
	tabB, err := bus.Subscribe(ctx, origin, "tab-b")
	require.NoError(t, err)

	value := `[]`
	require.NoError(t, bus.Publish(ctx, domain.StorageEvent{
		Origin:     origin,
		Key:        "favorites",
		NewValue:   &value,
		SourceTab:  "tab-a",
		OccurredAt: time.Now().UTC(),
	}))

	select {
	case got := <-tabB:
		assert.Equal(t, "tab-a", got.SourceTab)
	case <-time.After(3 * time.Second):
		t.Fatal("tab-b did not receive the event")
	}

	select {
	case got := <-tabA:
		t.Fatalf("source tab received its own event: %+v", got)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-tabB:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
