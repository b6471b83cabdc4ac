package storage

import (
	"context"
	"errors"

	"market/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ShopScope selects which shops a listing covers
type ShopScope struct {
	// ChatID limits the listing to shops linked to this chat. Zero means all shops.
	ChatID int64
}

// AllShops is the admin scope
var AllShops = ShopScope{}

// LinkedTo returns the seller scope for a chat
func LinkedTo(chatID int64) ShopScope {
	return ShopScope{ChatID: chatID}
}

// ShopStore defines shop data access
type ShopStore interface {
	// GetShop returns ErrNotFound if no shop has the id
	GetShop(ctx context.Context, id int64) (models.Shop, error)
	GetShopByAPIKey(ctx context.Context, apiKey string) (models.Shop, error)
	ShopExistsByAPIKey(ctx context.Context, apiKey string) (bool, error)

	// SaveShop inserts or overwrites the shop with the same id
	SaveShop(ctx context.Context, shop models.Shop) error
	DeleteShop(ctx context.Context, id int64) error

	ToggleActive(ctx context.Context, id int64) (models.Shop, error)
	TogglePriceUpdating(ctx context.Context, id int64) (models.Shop, error)

	// ListShops returns shops in [offset, offset+limit) ordered by id ascending,
	// and the total count of shops in the scope
	ListShops(ctx context.Context, scope ShopScope, limit, offset int) ([]models.Shop, int, error)
}

// UserDirectory defines telegram user operations
type UserDirectory interface {
	GetUser(ctx context.Context, chatID int64) (models.TelegramUser, error)
	GetRole(ctx context.Context, chatID int64) (models.Role, error)
	GetStatuses(ctx context.Context, chatID int64) (models.UserStatuses, error)

	LoginAdmin(ctx context.Context, chatID int64, profile models.Profile) error
	LoginSeller(ctx context.Context, chatID int64, profile models.Profile, shopID int64) error
	Logout(ctx context.Context, chatID int64) error

	LinkShop(ctx context.Context, chatID, shopID int64) error
	UnlinkShop(ctx context.Context, chatID, shopID int64) error
	IsLinked(ctx context.Context, chatID, shopID int64) (bool, error)

	// SetBanned reports whether the ban flag actually changed
	SetBanned(ctx context.Context, chatID int64, banned bool) (bool, error)
	SetSubscription(ctx context.Context, chatID int64, active bool) error
}

// AdminAuthenticator checks back-office admin credentials
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
}

// Storage defines the interface for data storage operations
type Storage interface {
	ShopStore
	UserDirectory
	AdminAuthenticator

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
