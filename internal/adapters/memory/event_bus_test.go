package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

func receive(t *testing.T, ch <-chan domain.StorageEvent) domain.StorageEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return domain.StorageEvent{}
}

func assertSilent(t *testing.T, ch <-chan domain.StorageEvent) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_DeliversToOtherTabsOnly(t *testing.T) {
	bus := NewEventBus(contextkeys.NoopLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tabA, err := bus.Subscribe(ctx, "origin", "tab-a")
	require.NoError(t, err)
	tabB, err := bus.Subscribe(ctx, "origin", "tab-b")
	require.NoError(t, err)
	otherOrigin, err := bus.Subscribe(ctx, "elsewhere", "tab-c")
	require.NoError(t, err)

	value := `[{"id":"1"}]`
	require.NoError(t, bus.Publish(ctx, domain.StorageEvent{
		Origin:    "origin",
		Key:       "favorites",
		NewValue:  &value,
		SourceTab: "tab-a",
	}))

	event := receive(t, tabB)
	assert.Equal(t, "favorites", event.Key)
	require.NotNil(t, event.NewValue)
	assert.Equal(t, value, *event.NewValue)

	assertSilent(t, tabA)
	assertSilent(t, otherOrigin)
}

func TestEventBus_UnsubscribeOnContextDone(t *testing.T) {
	bus := NewEventBus(contextkeys.NoopLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "origin", "tab-a")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
}

func TestEventBus_Closed(t *testing.T) {
	bus := NewEventBus(contextkeys.NoopLogger())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), domain.StorageEvent{Origin: "origin"})
	assert.ErrorIs(t, err, ErrBusClosed)

	_, err = bus.Subscribe(context.Background(), "origin", "tab")
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestEventBus_SlowTabStillGetsLatestWrite(t *testing.T) {
	bus := NewEventBus(contextkeys.NoopLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow, err := bus.Subscribe(ctx, "origin", "tab-b")
	require.NoError(t, err)

	total := subscriberBuffer + 20
	for i := 0; i < total; i++ {
		value := fmt.Sprintf("v%d", i)
		require.NoError(t, bus.Publish(ctx, domain.StorageEvent{
			Origin: "origin", Key: "favorites", NewValue: &value, SourceTab: "tab-a",
		}))
	}

	last := fmt.Sprintf("v%d", total-1)
	received := 0
	for {
		event := receive(t, slow)
		received++
		if *event.NewValue == last {
			break
		}
	}
	assert.LessOrEqual(t, received, total)
}
