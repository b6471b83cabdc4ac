package shopsync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"market/internal/models"
	"market/internal/storage"
)

var (
	// ErrShopExists is returned when a shop with the same id is already stored
	ErrShopExists = errors.New("shop already exists")
	// ErrAPIKeyTaken is returned when another shop uses the same API key
	ErrAPIKeyTaken = errors.New("api key already used by another shop")
)

// Catalog creates and removes shops locally and tells the peer about it
type Catalog struct {
	shops  storage.ShopStore
	events *Emitter
	logger *zap.Logger
}

// NewCatalog creates a catalog writing to shops and publishing through events
func NewCatalog(shops storage.ShopStore, events *Emitter, logger *zap.Logger) *Catalog {
	return &Catalog{shops: shops, events: events, logger: logger}
}

// AddShop stores a new shop and publishes a create event. The shop stays
// stored when publishing fails.
func (c *Catalog) AddShop(ctx context.Context, shop models.Shop) error {
	_, err := c.shops.GetShop(ctx, shop.ID)
	if err == nil {
		return fmt.Errorf("%w: %d", ErrShopExists, shop.ID)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	taken, err := c.shops.ShopExistsByAPIKey(ctx, shop.APIKey)
	if err != nil {
		return err
	}
	if taken {
		return ErrAPIKeyTaken
	}

	if err := c.shops.SaveShop(ctx, shop); err != nil {
		return err
	}
	c.logger.Info("Shop added", zap.Int64("shop_id", shop.ID), zap.String("name", shop.Name))

	if err := c.events.ShopCreated(ctx, shop); err != nil {
		return fmt.Errorf("shop %d saved but not published: %w", shop.ID, err)
	}
	return nil
}

// RemoveShop deletes a shop and publishes a delete event
func (c *Catalog) RemoveShop(ctx context.Context, id int64) error {
	if _, err := c.shops.GetShop(ctx, id); err != nil {
		return err
	}

	if err := c.shops.DeleteShop(ctx, id); err != nil {
		return err
	}
	c.logger.Info("Shop removed", zap.Int64("shop_id", id))

	if err := c.events.ShopDeleted(ctx, id); err != nil {
		return fmt.Errorf("shop %d deleted but not published: %w", id, err)
	}
	return nil
}
