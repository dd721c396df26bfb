package rabbitmq_consumer

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/apesoftware1/Memorial-sub001/pkg/rabbitmq/rabbitmq_common"
)

// MessageHandler processes one delivery. A nil error acks it, any other
// error nacks it without requeue.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

type ConsumerConfig struct {
	// QueueName may be empty for a server-named queue.
	QueueName       string
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table

	ExchangeName    string
	ExchangeType    string
	DeclareExchange bool
	DurableExchange bool
	RoutingKey      string

	PrefetchCount int
	ConsumerTag   string

	Logger rabbitmq_common.Logger
}

// Consumer handles deliveries one at a time, in the order the broker sends them.
type Consumer struct {
	config    ConsumerConfig
	handler   MessageHandler
	channel   *amqp.Channel
	queueName string

	closeOnce sync.Once
	done      chan struct{}

	Logger rabbitmq_common.Logger
}

// NewConsumer declares the queue and binds it to the exchange.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *rabbitmq_common.ConnectionManager) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("consumer: message handler is required")
	}
	if connManager == nil {
		return nil, fmt.Errorf("consumer: connection manager is required")
	}
	if cfg.DeclareExchange && (cfg.ExchangeName == "" || cfg.ExchangeType == "") {
		return nil, fmt.Errorf("consumer: exchange name and type are required to declare an exchange")
	}

	logger := rabbitmq_common.WithValues(cfg.Logger, "exchange", cfg.ExchangeName)

	_, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to get channel from manager: %w", err)
	}

	c := &Consumer{
		config:  cfg,
		handler: handler,
		channel: ch,
		done:    make(chan struct{}),
		Logger:  logger,
	}
	if err := c.setup(); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) setup() error {
	if c.config.PrefetchCount > 0 {
		if err := c.channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("consumer: failed to set QoS: %w", err)
		}
	}

	if c.config.DeclareExchange {
		c.Logger.Debug("Declaring exchange", "type", c.config.ExchangeType)
		err := c.channel.ExchangeDeclare(
			c.config.ExchangeName,
			c.config.ExchangeType,
			c.config.DurableExchange,
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consumer: failed to declare exchange '%s': %w", c.config.ExchangeName, err)
		}
	}

	q, err := c.channel.QueueDeclare(
		c.config.QueueName,
		c.config.DurableQueue,
		c.config.AutoDeleteQueue,
		c.config.ExclusiveQueue,
		false, // no-wait
		c.config.QueueArgs,
	)
	if err != nil {
		return fmt.Errorf("consumer: failed to declare queue '%s': %w", c.config.QueueName, err)
	}
	c.queueName = q.Name

	if c.config.ExchangeName != "" {
		c.Logger.Debug("Binding queue", "queue", c.queueName)
		if err := c.channel.QueueBind(c.queueName, c.config.RoutingKey, c.config.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("consumer: failed to bind queue '%s' to '%s': %w", c.queueName, c.config.ExchangeName, err)
		}
	}
	return nil
}

// QueueName returns the declared name, also for server-named queues.
func (c *Consumer) QueueName() string {
	return c.queueName
}

// Start registers the consumer and handles deliveries in the background
// until ctx is done or the broker closes the channel.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		c.config.ConsumerTag,
		false, // auto-ack
		c.config.ExclusiveQueue,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer: failed to consume from '%s': %w", c.queueName, err)
	}

	c.Logger.Debug("Waiting for messages", "queue", c.queueName)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					c.Logger.Info("Delivery channel closed", "queue", c.queueName)
					return
				}
				if err := c.handler(ctx, d); err != nil {
					c.Logger.Warn("Handler rejected message", "queue", c.queueName, "error", err.Error())
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}

// Done is closed when the delivery loop has exited.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Close closes the channel, which also deletes exclusive queues.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.channel.Close()
		if err != nil {
			c.Logger.Error(err, "Error closing consumer channel")
		}
	})
	return err
}
