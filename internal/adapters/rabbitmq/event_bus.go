package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/apesoftware1/Memorial-sub001/internal/constants"
	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/contracts"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
	"github.com/apesoftware1/Memorial-sub001/pkg/rabbitmq/rabbitmq_common"
	"github.com/apesoftware1/Memorial-sub001/pkg/rabbitmq/rabbitmq_consumer"
	"github.com/apesoftware1/Memorial-sub001/pkg/rabbitmq/rabbitmq_producer"
)

var ErrBusClosed = errors.New("rabbitmq event bus is closed")

const (
	publishTimeout   = 10 * time.Second
	subscriberBuffer = 100
)

// EventBus carries storage events between service instances over a fanout
// exchange. Every subscribed tab owns an exclusive queue, so each instance
// sees every event; origin and source tab are filtered on receipt.
type EventBus struct {
	manager   *rabbitmq_common.ConnectionManager
	publisher *rabbitmq_producer.Publisher
	exchange  string

	mu        sync.Mutex
	consumers map[*rabbitmq_consumer.Consumer]struct{}
	closed    bool

	logger port.LoggerPort
}

var _ port.StorageEventBusPort = (*EventBus)(nil)

func NewEventBus(manager *rabbitmq_common.ConnectionManager, exchange string, baseLogger port.LoggerPort) (*EventBus, error) {
	if manager == nil {
		return nil, fmt.Errorf("connection manager cannot be nil")
	}
	if exchange == "" {
		exchange = constants.StorageEventsExchange
	}

	publisher, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
		ExchangeName:             exchange,
		ExchangeType:             constants.StorageEventsExchangeType,
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   NewPkgLoggerBridge(baseLogger),
	}, manager)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage event publisher: %w", err)
	}

	return &EventBus{
		manager:   manager,
		publisher: publisher,
		exchange:  exchange,
		consumers: make(map[*rabbitmq_consumer.Consumer]struct{}),
		logger:    baseLogger.WithFields(port.Fields{"component": "RabbitMQEventBus", "exchange": exchange}),
	}, nil
}

func (b *EventBus) Publish(ctx context.Context, event domain.StorageEvent) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	msg, err := encodeEvent(ctx, event)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.publisher.Publish(publishCtx, "", msg); err != nil {
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

	subLogger := b.logger.WithFields(port.Fields{"origin": origin, "tab_id": tabID})
	events := make(chan domain.StorageEvent, subscriberBuffer)

	handler := func(ctx context.Context, d amqp.Delivery) error {
		event, err := decodeEvent(d.Body)
		if err != nil {
			subLogger.Warn("Dropping invalid storage event", port.Fields{"error": err.Error()})
			return err
		}
		if event.Origin != origin || event.SourceTab == tabID {
			return nil
		}
		select {
		case events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	consumer, err := rabbitmq_consumer.NewConsumer(rabbitmq_consumer.ConsumerConfig{
		ExclusiveQueue:  true,
		AutoDeleteQueue: true,
		ExchangeName:    b.exchange,
		ExchangeType:    constants.StorageEventsExchangeType,
		DeclareExchange: true,
		DurableExchange: true,
		PrefetchCount:   subscriberBuffer,
		ConsumerTag:     fmt.Sprintf("favorites-%s-%s", tabID, uuid.NewString()[:8]),
		Logger:          NewPkgLoggerBridge(subLogger),
	}, handler, b.manager)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage event consumer: %w", err)
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Close()
		return nil, err
	}

	b.mu.Lock()
	b.consumers[consumer] = struct{}{}
	b.mu.Unlock()

	subLogger.Debug("Tab subscribed", port.Fields{"queue": consumer.QueueName()})

	go func() {
		select {
		case <-ctx.Done():
		case <-consumer.Done():
		}
		_ = consumer.Close()
		<-consumer.Done()

		b.mu.Lock()
		delete(b.consumers, consumer)
		b.mu.Unlock()

		close(events)
		subLogger.Debug("Tab unsubscribed", nil)
	}()

	return events, nil
}

// Close stops every consumer and the publisher. The connection manager is
// owned by the caller.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := make([]*rabbitmq_consumer.Consumer, 0, len(b.consumers))
	for c := range b.consumers {
		consumers = append(consumers, c)
	}
	b.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
	return b.publisher.Close()
}

func encodeEvent(ctx context.Context, event domain.StorageEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal storage event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Type:        constants.StorageEventType,
		Timestamp:   event.OccurredAt,
		Headers: amqp.Table{
			"event-type":    constants.StorageEventType,
			"event-version": constants.StorageEventVersion,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}
	return msg, nil
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
