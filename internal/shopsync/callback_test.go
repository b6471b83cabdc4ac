package shopsync

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market/internal/broker"
	"market/internal/models"
	"market/internal/storage"
	"market/internal/storage/stubs"
)

func delivery(t *testing.T, op broker.Operation, shop models.Shop) amqp.Delivery {
	t.Helper()
	body, err := EncodeShop(shop)
	require.NoError(t, err)
	return amqp.Delivery{
		Headers: amqp.Table{broker.HeaderOperation: string(op)},
		Body:    body,
	}
}

func deleteDelivery(id int64) amqp.Delivery {
	return amqp.Delivery{
		Headers: amqp.Table{broker.HeaderOperation: string(broker.OperationDelete)},
		Body:    EncodeShopID(id),
	}
}

func sampleShop(id int64) models.Shop {
	return models.Shop{
		ID:            id,
		Name:          "Garden",
		Slug:          "garden",
		ClientID:      "123456",
		APIKey:        "api-garden",
		VendorName:    "Simaland",
		IsActive:      true,
		PriceUpdating: true,
	}
}

func TestReconciler_DuplicateUpdatesWriteOnce(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	require.NoError(t, db.SaveShop(ctx, sampleShop(1)))
	r := NewReconciler(db, nil, zap.NewNop())

	changed := sampleShop(1)
	changed.Name = "Garden & Home"
	msg := delivery(t, broker.OperationUpdate, changed)

	before := db.ShopWrites()
	require.NoError(t, r.HandleShopEvent(ctx, msg))
	require.NoError(t, r.HandleShopEvent(ctx, msg))
	assert.Equal(t, before+1, db.ShopWrites())

	got, err := db.GetShop(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, changed, got)
}

func TestReconciler_UpdateOfUnknownShopIsNoop(t *testing.T) {
	db := stubs.NewMockDB()
	r := NewReconciler(db, nil, zap.NewNop())

	require.NoError(t, r.HandleShopEvent(context.Background(), delivery(t, broker.OperationUpdate, sampleShop(9))))
	assert.Equal(t, 0, db.ShopWrites())

	_, err := db.GetShop(context.Background(), 9)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReconciler_CreateDoesNotOverwrite(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	r := NewReconciler(db, nil, zap.NewNop())

	original := sampleShop(2)
	require.NoError(t, r.HandleShopEvent(ctx, delivery(t, broker.OperationCreate, original)))

	other := sampleShop(2)
	other.Name = "Impostor"
	other.IsActive = false
	require.NoError(t, r.HandleShopEvent(ctx, delivery(t, broker.OperationCreate, other)))

	got, err := db.GetShop(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, original, got)
	assert.Equal(t, 1, db.ShopWrites())
}

func TestReconciler_DeleteIsTerminal(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	require.NoError(t, db.SaveShop(ctx, sampleShop(3)))
	r := NewReconciler(db, nil, zap.NewNop())

	require.NoError(t, r.HandleShopEvent(ctx, deleteDelivery(3)))
	_, err := db.GetShop(ctx, 3)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	writes := db.ShopWrites()
	require.NoError(t, r.HandleShopEvent(ctx, deleteDelivery(3)))
	require.NoError(t, r.HandleShopEvent(ctx, deleteDelivery(404)))
	assert.Equal(t, writes, db.ShopWrites())
}

func TestReconciler_ProtocolViolations(t *testing.T) {
	r := NewReconciler(stubs.NewMockDB(), nil, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		d    amqp.Delivery
	}{
		{"missing header", amqp.Delivery{Body: []byte("1")}},
		{"unknown operation", amqp.Delivery{Headers: amqp.Table{broker.HeaderOperation: "upsert"}, Body: []byte("1")}},
		{"malformed entity", amqp.Delivery{Headers: amqp.Table{broker.HeaderOperation: "create"}, Body: []byte("{oops")}},
		{"empty list", amqp.Delivery{Headers: amqp.Table{broker.HeaderOperation: "update"}, Body: []byte("[]")}},
		{"non numeric delete", amqp.Delivery{Headers: amqp.Table{broker.HeaderOperation: "delete"}, Body: []byte("abc")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.HandleShopEvent(ctx, tt.d)
			assert.ErrorIs(t, err, broker.ErrProtocolViolation)
		})
	}
}

type failingStore struct {
	*stubs.MockDB
}

func (f failingStore) GetShop(ctx context.Context, id int64) (models.Shop, error) {
	return models.Shop{}, errors.New("connection reset")
}

func TestReconciler_StoreFailureIsRetryable(t *testing.T) {
	r := NewReconciler(failingStore{stubs.NewMockDB()}, nil, zap.NewNop())

	err := r.HandleShopEvent(context.Background(), deleteDelivery(1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, broker.ErrProtocolViolation)
}

func TestReconciler_LegacyCompareMissesSwappedValues(t *testing.T) {
	db := stubs.NewMockDB()
	ctx := context.Background()
	local := sampleShop(4)
	local.Name = "alpha"
	local.Slug = "beta"
	require.NoError(t, db.SaveShop(ctx, local))

	swapped := local
	swapped.Name, swapped.Slug = local.Slug, local.Name
	msg := delivery(t, broker.OperationUpdate, swapped)

	legacy := NewReconciler(db, ValueSetEqual, zap.NewNop())
	require.NoError(t, legacy.HandleShopEvent(ctx, msg))
	got, _ := db.GetShop(ctx, 4)
	assert.Equal(t, "alpha", got.Name)

	fixed := NewReconciler(db, FieldsEqual, zap.NewNop())
	require.NoError(t, fixed.HandleShopEvent(ctx, msg))
	got, _ = db.GetShop(ctx, 4)
	assert.Equal(t, "beta", got.Name)
}
