package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used by the publisher and consumer
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Transport is a live broker connection able to open channels
type Transport interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a transport to the broker at url
type Dialer func(url string) (Transport, error)

// amqpTransport adapts *amqp.Connection to Transport
type amqpTransport struct {
	conn *amqp.Connection
}

func (t *amqpTransport) Channel() (Channel, error) {
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (t *amqpTransport) IsClosed() bool {
	return t.conn.IsClosed()
}

func (t *amqpTransport) Close() error {
	return t.conn.Close()
}

// DialAMQP is the default Dialer
func DialAMQP(url string) (Transport, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": "market-bot"},
	})
	if err != nil {
		return nil, err
	}
	return &amqpTransport{conn: conn}, nil
}
