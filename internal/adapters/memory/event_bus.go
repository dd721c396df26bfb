package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

var ErrBusClosed = errors.New("event bus is closed")

const subscriberBuffer = 100

type subscriber struct {
	tabID string
	ch    chan domain.StorageEvent
}

type eventWithContext struct {
	ctx   context.Context
	event domain.StorageEvent
}

// EventBus fans storage events out to every other tab of the same origin
// inside this process.
type EventBus struct {
	// subscribers by origin; one origin usually has several tabs
	subscribers map[string][]*subscriber
	mu          sync.RWMutex

	eventChan chan eventWithContext
	done      chan struct{}
	closeOnce sync.Once

	logger port.LoggerPort
}

var _ port.StorageEventBusPort = (*EventBus)(nil)

func NewEventBus(baseLogger port.LoggerPort) *EventBus {
	bus := &EventBus{
		subscribers: make(map[string][]*subscriber),
		eventChan:   make(chan eventWithContext, subscriberBuffer),
		done:        make(chan struct{}),
		logger:      baseLogger.WithFields(port.Fields{"component": "MemoryEventBus"}),
	}
	go bus.dispatcher()
	return bus
}

func (b *EventBus) dispatcher() {
	b.logger.Debug("Event bus dispatcher started", nil)
	for {
		select {
		case <-b.done:
			return
		case pkg := <-b.eventChan:
			b.dispatch(pkg)
		}
	}
}

func (b *EventBus) dispatch(pkg eventWithContext) {
	event := pkg.event
	eventLogger := contextkeys.LoggerFromContext(pkg.ctx).WithFields(port.Fields{
		"component":  "MemoryEventBus.dispatcher",
		"origin":     event.Origin,
		"key":        event.Key,
		"source_tab": event.SourceTab,
	})

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers[event.Origin] {
		if sub.tabID == event.SourceTab {
			continue
		}
		select {
		case sub.ch <- event:
			continue
		default:
		}
		// a slow tab loses its oldest event, never the latest write
		select {
		case dropped := <-sub.ch:
			eventLogger.Warn("Subscriber channel is full, oldest event dropped", port.Fields{
				"tab_id":      sub.tabID,
				"dropped_key": dropped.Key,
			})
		default:
		}
		select {
		case sub.ch <- event:
		default:
			eventLogger.Warn("Subscriber channel is full, event dropped", port.Fields{"tab_id": sub.tabID})
		}
	}
}

func (b *EventBus) Publish(ctx context.Context, event domain.StorageEvent) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	select {
	case b.eventChan <- eventWithContext{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *EventBus) Subscribe(ctx context.Context, origin, tabID string) (<-chan domain.StorageEvent, error) {
	select {
	case <-b.done:
		return nil, ErrBusClosed
	default:
	}

	sub := &subscriber{tabID: tabID, ch: make(chan domain.StorageEvent, subscriberBuffer)}

	b.mu.Lock()
	b.subscribers[origin] = append(b.subscribers[origin], sub)
	count := len(b.subscribers[origin])
	b.mu.Unlock()

	b.logger.Debug("Tab subscribed", port.Fields{"origin": origin, "tab_id": tabID, "tabs": count})

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.remove(origin, sub)
	}()

	return sub.ch, nil
}

func (b *EventBus) remove(origin string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[origin]
	remaining := make([]*subscriber, 0, len(subs))
	for _, s := range subs {
		if s != sub {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) == 0 {
		delete(b.subscribers, origin)
	} else {
		b.subscribers[origin] = remaining
	}
	close(sub.ch)
	b.logger.Debug("Tab unsubscribed", port.Fields{"origin": origin, "tab_id": sub.tabID, "tabs": len(remaining)})
}

func (b *EventBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	return nil
}
