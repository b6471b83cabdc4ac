package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// declareExchange declares a direct exchange, mapping a parameter clash to ErrExchangeMismatch
func declareExchange(ch Channel, name string, durable bool) error {
	err := ch.ExchangeDeclare(name, amqp.ExchangeDirect, durable, false, false, false, nil)
	if err == nil {
		return nil
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
		return fmt.Errorf("%w: %s: %s", ErrExchangeMismatch, name, amqpErr.Reason)
	}
	return fmt.Errorf("failed to declare exchange %s: %w", name, err)
}

// Publisher sends messages to direct exchanges
type Publisher struct {
	conn    *Connection
	durable bool
	logger  *zap.Logger
	newID   func() string
	now     func() time.Time
}

// NewPublisher creates a publisher on top of conn
func NewPublisher(conn *Connection, durableExchanges bool, logger *zap.Logger) *Publisher {
	return &Publisher{
		conn:    conn,
		durable: durableExchanges,
		logger:  logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Publish delivers msg to exchange with routingKey as a persistent message.
// A transport lost mid-publish is reopened and the publish retried once.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg Message) error {
	err := p.publish(ctx, exchange, routingKey, msg)
	if err == nil || !errors.Is(err, amqp.ErrClosed) {
		return err
	}

	p.logger.Warn("Broker connection lost while publishing, retrying once",
		zap.String("exchange", exchange),
		zap.String("operation", string(msg.Operation)),
		zap.Error(err))
	return p.publish(ctx, exchange, routingKey, msg)
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, msg Message) error {
	transport, err := p.conn.Connect(ctx)
	if err != nil {
		return err
	}

	ch, err := transport.Channel()
	if err != nil {
		p.conn.Invalidate(transport)
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := declareExchange(ch, exchange, p.durable); err != nil {
		return err
	}

	contentType := msg.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		Headers:      amqp.Table{HeaderOperation: string(msg.Operation)},
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    p.newID(),
		Timestamp:    p.now(),
		Body:         msg.Body,
	})
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			p.conn.Invalidate(transport)
		}
		return fmt.Errorf("failed to publish to %s: %w", exchange, err)
	}

	p.logger.Debug("Published message",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey),
		zap.String("operation", string(msg.Operation)))
	return nil
}
