package broker

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HeaderOperation is the message header carrying the operation
const HeaderOperation = "operation"

var (
	// ErrProtocolViolation marks a message that no handler can ever process.
	// The consumer drops such messages instead of requeueing them.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrExchangeMismatch is returned when an exchange already exists with other parameters
	ErrExchangeMismatch = errors.New("exchange declared with different parameters")
)

// Operation is the kind of change a message carries
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ParseOperation validates a raw header value
func ParseOperation(raw any) (Operation, error) {
	var value string
	switch v := raw.(type) {
	case string:
		value = v
	case []byte:
		value = string(v)
	default:
		return "", fmt.Errorf("%w: operation header %v (%T)", ErrProtocolViolation, raw, raw)
	}

	switch op := Operation(value); op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return op, nil
	default:
		return "", fmt.Errorf("%w: operation %q does not match any known operation", ErrProtocolViolation, value)
	}
}

// OperationOf reads the operation header of a delivery
func OperationOf(d amqp.Delivery) (Operation, error) {
	raw, ok := d.Headers[HeaderOperation]
	if !ok {
		return "", fmt.Errorf("%w: missing %q header", ErrProtocolViolation, HeaderOperation)
	}
	return ParseOperation(raw)
}

// Message is a domain event ready to be published
type Message struct {
	Operation   Operation
	Body        []byte
	ContentType string
}
