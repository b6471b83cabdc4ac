package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler processes one delivery. Returning nil acks it, returning an error
// wrapping ErrProtocolViolation drops it, any other error requeues it.
type Handler func(ctx context.Context, d amqp.Delivery) error

type consumeOptions struct {
	queue      string
	autoDelete bool
	prefetch   int
}

// ConsumeOption configures a subscription
type ConsumeOption func(*consumeOptions)

// WithQueueName binds a named queue instead of a server-named one
func WithQueueName(name string) ConsumeOption {
	return func(o *consumeOptions) {
		o.queue = name
	}
}

// WithAutoDelete removes the queue once its last consumer goes away
func WithAutoDelete() ConsumeOption {
	return func(o *consumeOptions) {
		o.autoDelete = true
	}
}

// WithPrefetch limits unacknowledged deliveries in flight
func WithPrefetch(n int) ConsumeOption {
	return func(o *consumeOptions) {
		o.prefetch = n
	}
}

// Consumer subscribes handlers to direct exchanges
type Consumer struct {
	conn     *Connection
	durable  bool
	interval time.Duration
	logger   *zap.Logger
}

// NewConsumer creates a consumer on top of conn
func NewConsumer(conn *Connection, durableExchanges bool, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:     conn,
		durable:  durableExchanges,
		interval: conn.interval,
		logger:   logger,
	}
}

// Consume binds a durable queue to exchange with routingKey and feeds every
// delivery to handler. It blocks until ctx is done, resubscribing after a
// lost connection. An exchange parameter clash stops it.
func (c *Consumer) Consume(ctx context.Context, handler Handler, exchange, routingKey string, opts ...ConsumeOption) error {
	o := consumeOptions{prefetch: 1}
	for _, opt := range opts {
		opt(&o)
	}

	for {
		err := c.consumeOnce(ctx, handler, exchange, routingKey, o)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrExchangeMismatch) || errors.Is(err, ErrConnectionClosed) {
			return err
		}

		c.logger.Warn("Subscription interrupted, resubscribing",
			zap.String("exchange", exchange),
			zap.Error(err),
			zap.Duration("retry_in", c.interval))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, handler Handler, exchange, routingKey string, o consumeOptions) error {
	transport, err := c.conn.Connect(ctx)
	if err != nil {
		return err
	}

	ch, err := transport.Channel()
	if err != nil {
		c.conn.Invalidate(transport)
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if o.prefetch > 0 {
		if err := ch.Qos(o.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	if err := declareExchange(ch, exchange, c.durable); err != nil {
		return err
	}

	queue, err := ch.QueueDeclare(o.queue, true, o.autoDelete, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(queue.Name, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue.Name, err)
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", queue.Name, err)
	}

	c.logger.Info("Subscribed to exchange",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
		zap.String("queue", queue.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.dispatch(ctx, handler, d)
		}
	}
}

// dispatch runs handler and settles the delivery from its outcome
func (c *Consumer) dispatch(ctx context.Context, handler Handler, d amqp.Delivery) {
	err := c.safeHandle(ctx, handler, d)

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to ack delivery", zap.Uint64("tag", d.DeliveryTag), zap.Error(ackErr))
		}
	case errors.Is(err, ErrProtocolViolation):
		c.logger.Error("Dropping unprocessable message",
			zap.String("message_id", d.MessageId),
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to nack delivery", zap.Uint64("tag", d.DeliveryTag), zap.Error(nackErr))
		}
	default:
		c.logger.Warn("Handler failed, requeueing message",
			zap.String("message_id", d.MessageId),
			zap.Error(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to nack delivery", zap.Uint64("tag", d.DeliveryTag), zap.Error(nackErr))
		}
	}
}

func (c *Consumer) safeHandle(ctx context.Context, handler Handler, d amqp.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrProtocolViolation, r)
		}
	}()
	return handler(ctx, d)
}
