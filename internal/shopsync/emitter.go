package shopsync

import (
	"context"

	"go.uber.org/zap"

	"market/internal/broker"
	"market/internal/models"
)

// Publisher sends a message to an exchange
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg broker.Message) error
}

// Emitter publishes local shop changes for the peer service
type Emitter struct {
	pub        Publisher
	exchange   string
	routingKey string
	enabled    bool
	logger     *zap.Logger
}

// NewEmitter creates an emitter; a disabled emitter drops every event
func NewEmitter(pub Publisher, exchange, routingKey string, enabled bool, logger *zap.Logger) *Emitter {
	return &Emitter{
		pub:        pub,
		exchange:   exchange,
		routingKey: routingKey,
		enabled:    enabled && pub != nil,
		logger:     logger,
	}
}

// ShopCreated publishes a create event
func (e *Emitter) ShopCreated(ctx context.Context, shop models.Shop) error {
	return e.emitShop(ctx, broker.OperationCreate, shop)
}

// ShopUpdated publishes an update event
func (e *Emitter) ShopUpdated(ctx context.Context, shop models.Shop) error {
	return e.emitShop(ctx, broker.OperationUpdate, shop)
}

// ShopDeleted publishes a delete event carrying only the id
func (e *Emitter) ShopDeleted(ctx context.Context, id int64) error {
	return e.emit(ctx, broker.Message{
		Operation:   broker.OperationDelete,
		Body:        EncodeShopID(id),
		ContentType: "text/plain",
	}, id)
}

func (e *Emitter) emitShop(ctx context.Context, op broker.Operation, shop models.Shop) error {
	if !e.enabled {
		return nil
	}
	body, err := EncodeShop(shop)
	if err != nil {
		return err
	}
	return e.emit(ctx, broker.Message{Operation: op, Body: body}, shop.ID)
}

func (e *Emitter) emit(ctx context.Context, msg broker.Message, shopID int64) error {
	if !e.enabled {
		return nil
	}
	if err := e.pub.Publish(ctx, e.exchange, e.routingKey, msg); err != nil {
		e.logger.Error("Failed to publish shop event",
			zap.String("operation", string(msg.Operation)),
			zap.Int64("shop_id", shopID),
			zap.Error(err))
		return err
	}
	return nil
}
