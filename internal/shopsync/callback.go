// Package shopsync keeps the local shop table in step with the peer service
package shopsync

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"market/internal/broker"
	"market/internal/models"
	"market/internal/storage"
)

// Reconciler applies shop events received from the broker
type Reconciler struct {
	shops  storage.ShopStore
	equal  Comparator
	logger *zap.Logger
}

// NewReconciler creates a reconciler; a nil comparator means FieldsEqual
func NewReconciler(shops storage.ShopStore, equal Comparator, logger *zap.Logger) *Reconciler {
	if equal == nil {
		equal = FieldsEqual
	}
	return &Reconciler{
		shops:  shops,
		equal:  equal,
		logger: logger,
	}
}

// HandleShopEvent is a broker.Handler. Every branch is idempotent, so a
// redelivered message leaves the store unchanged.
func (r *Reconciler) HandleShopEvent(ctx context.Context, d amqp.Delivery) error {
	op, err := broker.OperationOf(d)
	if err != nil {
		return err
	}

	r.logger.Info("Received shop event",
		zap.String("operation", string(op)),
		zap.String("message_id", d.MessageId),
		zap.Int("body_size", len(d.Body)))

	switch op {
	case broker.OperationUpdate:
		return r.update(ctx, d.Body)
	case broker.OperationCreate:
		return r.create(ctx, d.Body)
	case broker.OperationDelete:
		return r.delete(ctx, d.Body)
	default:
		return fmt.Errorf("%w: operation %q does not match any known operation", broker.ErrProtocolViolation, op)
	}
}

// lookup returns the local shop, or false when it does not exist
func (r *Reconciler) lookup(ctx context.Context, id int64) (models.Shop, bool, error) {
	shop, err := r.shops.GetShop(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Shop{}, false, nil
	}
	if err != nil {
		return models.Shop{}, false, fmt.Errorf("failed to load shop %d: %w", id, err)
	}
	return shop, true, nil
}

func (r *Reconciler) update(ctx context.Context, body []byte) error {
	received, err := DecodeShop(body)
	if err != nil {
		return err
	}

	local, found, err := r.lookup(ctx, received.ID)
	if err != nil {
		return err
	}
	if !found {
		r.logger.Debug("Skipping update of unknown shop", zap.Int64("shop_id", received.ID))
		return nil
	}
	if r.equal(received, local) {
		return nil
	}

	if err := r.shops.SaveShop(ctx, received); err != nil {
		return fmt.Errorf("failed to save shop %d: %w", received.ID, err)
	}
	r.logger.Info("Shop updated from peer", zap.Int64("shop_id", received.ID))
	return nil
}

func (r *Reconciler) create(ctx context.Context, body []byte) error {
	received, err := DecodeShop(body)
	if err != nil {
		return err
	}

	_, found, err := r.lookup(ctx, received.ID)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	if err := r.shops.SaveShop(ctx, received); err != nil {
		return fmt.Errorf("failed to save shop %d: %w", received.ID, err)
	}
	r.logger.Info("Shop created from peer", zap.Int64("shop_id", received.ID))
	return nil
}

func (r *Reconciler) delete(ctx context.Context, body []byte) error {
	id, err := DecodeShopID(body)
	if err != nil {
		return err
	}

	_, found, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	err = r.shops.DeleteShop(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete shop %d: %w", id, err)
	}
	r.logger.Info("Shop deleted from peer", zap.Int64("shop_id", id))
	return nil
}
