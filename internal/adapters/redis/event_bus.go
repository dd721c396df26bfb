package redis_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

var ErrBusClosed = errors.New("redis event bus is closed")

const (
	eventChannelPrefix = "favorites:events:"
	subscriberBuffer   = 100
)

func eventChannel(origin string) string {
	return eventChannelPrefix + origin
}

// EventBus fans storage events out through Redis pub/sub, one channel per
// origin. Delivery is at-most-once: a tab that is not subscribed misses events.
type EventBus struct {
	client *redis.Client

	mu      sync.Mutex
	pubsubs map[*redis.PubSub]struct{}
	closed  bool

	logger port.LoggerPort
}

var _ port.StorageEventBusPort = (*EventBus)(nil)

func NewEventBus(client *redis.Client, baseLogger port.LoggerPort) (*EventBus, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &EventBus{
		client:  client,
		pubsubs: make(map[*redis.PubSub]struct{}),
		logger:  baseLogger.WithFields(port.Fields{"component": "RedisEventBus"}),
	}, nil
}

func (b *EventBus) Publish(ctx context.Context, event domain.StorageEvent) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal storage event: %w", err)
	}
	if err := b.client.Publish(ctx, eventChannel(event.Origin), body).Err(); err != nil {
		b.logger.Error("Failed to publish storage event", err, port.Fields{"origin": event.Origin, "key": event.Key})
		return err
	}
	return nil
}

func (b *EventBus) Subscribe(ctx context.Context, origin, tabID string) (<-chan domain.StorageEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, eventChannel(origin))
	// wait for the subscription confirmation so no event published after
	// Subscribe returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", eventChannel(origin), err)
	}

	b.mu.Lock()
	b.pubsubs[pubsub] = struct{}{}
	b.mu.Unlock()

	subLogger := b.logger.WithFields(port.Fields{"origin": origin, "tab_id": tabID})
	subLogger.Debug("Tab subscribed", nil)

	events := make(chan domain.StorageEvent, subscriberBuffer)
	go func() {
		defer func() {
			_ = pubsub.Close()
			b.mu.Lock()
			delete(b.pubsubs, pubsub)
			b.mu.Unlock()
			close(events)
			subLogger.Debug("Tab unsubscribed", nil)
		}()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				event, err := decodeEvent([]byte(msg.Payload))
				if err != nil {
					subLogger.Warn("Dropping invalid storage event", port.Fields{"error": err.Error()})
					continue
				}
				if event.SourceTab == tabID || event.Origin != origin {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// Close ends every subscription. The client is owned by the caller.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for ps := range b.pubsubs {
		_ = ps.Close()
	}
	return nil
}

func decodeEvent(body []byte) (domain.StorageEvent, error) {
	if err := contracts.Validate(contracts.StorageEventEvent, body); err != nil {
		return domain.StorageEvent{}, err
	}
	var event domain.StorageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.StorageEvent{}, fmt.Errorf("failed to unmarshal storage event: %w", err)
	}
	return event, nil
}
