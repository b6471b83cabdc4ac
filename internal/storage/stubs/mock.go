package stubs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"market/internal/models"
	"market/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu         sync.RWMutex
	shops      map[int64]models.Shop
	users      map[int64]models.TelegramUser
	links      map[int64]map[int64]bool
	admins     map[string][]byte
	shopWrites int
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		shops:  make(map[int64]models.Shop),
		users:  make(map[int64]models.TelegramUser),
		links:  make(map[int64]map[int64]bool),
		admins: make(map[string][]byte),
	}
}

// Initialize is a no-op for the mock database
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// AddAdmin registers back-office credentials
func (m *MockDB) AddAdmin(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[username] = hash
	return nil
}

// PutUser stores a telegram user as is
func (m *MockDB) PutUser(user models.TelegramUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ChatID] = user
}

// ShopWrites returns how many shop mutations were persisted
func (m *MockDB) ShopWrites() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shopWrites
}

// GetShop returns a shop by id
func (m *MockDB) GetShop(ctx context.Context, id int64) (models.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shop, ok := m.shops[id]
	if !ok {
		return models.Shop{}, fmt.Errorf("shop %d: %w", id, storage.ErrNotFound)
	}
	return shop, nil
}

// GetShopByAPIKey returns the shop owning the api key
func (m *MockDB) GetShopByAPIKey(ctx context.Context, apiKey string) (models.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, shop := range m.sortedShops() {
		if shop.APIKey == apiKey {
			return shop, nil
		}
	}
	return models.Shop{}, fmt.Errorf("shop with api key: %w", storage.ErrNotFound)
}

// ShopExistsByAPIKey reports whether a shop owns the api key
func (m *MockDB) ShopExistsByAPIKey(ctx context.Context, apiKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, shop := range m.shops {
		if shop.APIKey == apiKey {
			return true, nil
		}
	}
	return false, nil
}

// SaveShop inserts or overwrites a shop
func (m *MockDB) SaveShop(ctx context.Context, shop models.Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shops[shop.ID] = shop
	m.shopWrites++
	return nil
}

// DeleteShop removes a shop and its links
func (m *MockDB) DeleteShop(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shops[id]; !ok {
		return fmt.Errorf("shop %d: %w", id, storage.ErrNotFound)
	}
	delete(m.shops, id)
	for _, linked := range m.links {
		delete(linked, id)
	}
	m.shopWrites++
	return nil
}

// ToggleActive flips is_active and returns the updated shop
func (m *MockDB) ToggleActive(ctx context.Context, id int64) (models.Shop, error) {
	return m.toggle(id, func(s *models.Shop) { s.IsActive = !s.IsActive })
}

// TogglePriceUpdating flips price_updating and returns the updated shop
func (m *MockDB) TogglePriceUpdating(ctx context.Context, id int64) (models.Shop, error) {
	return m.toggle(id, func(s *models.Shop) { s.PriceUpdating = !s.PriceUpdating })
}

func (m *MockDB) toggle(id int64, flip func(*models.Shop)) (models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shop, ok := m.shops[id]
	if !ok {
		return models.Shop{}, fmt.Errorf("shop %d: %w", id, storage.ErrNotFound)
	}
	flip(&shop)
	m.shops[id] = shop
	m.shopWrites++
	return shop, nil
}

// ListShops returns one page of shops ordered by id
func (m *MockDB) ListShops(ctx context.Context, scope storage.ShopScope, limit, offset int) ([]models.Shop, int, error) {
	if err := (models.PageCursor{Limit: limit, Offset: offset}).Validate(); err != nil {
		return nil, 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var scoped []models.Shop
	for _, shop := range m.sortedShops() {
		if scope.ChatID != 0 && !m.links[scope.ChatID][shop.ID] {
			continue
		}
		scoped = append(scoped, shop)
	}

	total := len(scoped)
	if offset >= total {
		return []models.Shop{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]models.Shop, end-offset)
	copy(page, scoped[offset:end])
	return page, total, nil
}

// sortedShops must be called with the lock held
func (m *MockDB) sortedShops() []models.Shop {
	shops := make([]models.Shop, 0, len(m.shops))
	for _, shop := range m.shops {
		shops = append(shops, shop)
	}
	sort.Slice(shops, func(i, j int) bool {
		return shops[i].ID < shops[j].ID
	})
	return shops
}

// GetUser returns a telegram user by chat id
func (m *MockDB) GetUser(ctx context.Context, chatID int64) (models.TelegramUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[chatID]
	if !ok {
		return models.TelegramUser{}, fmt.Errorf("telegram user %d: %w", chatID, storage.ErrNotFound)
	}
	return user, nil
}

// GetRole returns the stored role, or RoleUnset for unknown chats
func (m *MockDB) GetRole(ctx context.Context, chatID int64) (models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[chatID]
	if !ok {
		return models.RoleUnset, nil
	}
	return models.ParseRole(string(user.Role))
}

// GetStatuses returns the access flags of a chat
func (m *MockDB) GetStatuses(ctx context.Context, chatID int64) (models.UserStatuses, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[chatID]
	if !ok {
		return models.UserStatuses{}, nil
	}
	return models.UserStatuses{
		Exists:      true,
		IsBanned:    user.IsBanned,
		IsActive:    user.IsActive,
		IsLoggedOut: user.IsLoggedOut,
	}, nil
}

// LoginAdmin creates or updates the user as admin
func (m *MockDB) LoginAdmin(ctx context.Context, chatID int64, profile models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.login(chatID, profile, models.RoleAdmin)
	return nil
}

// LoginSeller creates or updates the user as seller and links the shop
func (m *MockDB) LoginSeller(ctx context.Context, chatID int64, profile models.Profile, shopID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shops[shopID]; !ok {
		return fmt.Errorf("shop %d: %w", shopID, storage.ErrNotFound)
	}
	m.login(chatID, profile, models.RoleSeller)
	m.link(chatID, shopID)
	return nil
}

func (m *MockDB) login(chatID int64, profile models.Profile, role models.Role) {
	user, ok := m.users[chatID]
	if !ok {
		user = models.TelegramUser{
			ChatID:    chatID,
			IsActive:  true,
			CreatedAt: time.Now(),
		}
	}
	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.Username = profile.Username
	user.Role = role
	user.IsLoggedOut = false
	m.users[chatID] = user
}

// Logout marks the user as logged out
func (m *MockDB) Logout(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[chatID]
	if !ok {
		return nil
	}
	user.IsLoggedOut = true
	m.users[chatID] = user
	return nil
}

// LinkShop links a shop to a chat
func (m *MockDB) LinkShop(ctx context.Context, chatID, shopID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shops[shopID]; !ok {
		return fmt.Errorf("shop %d: %w", shopID, storage.ErrNotFound)
	}
	m.link(chatID, shopID)
	return nil
}

func (m *MockDB) link(chatID, shopID int64) {
	if m.links[chatID] == nil {
		m.links[chatID] = make(map[int64]bool)
	}
	m.links[chatID][shopID] = true
}

// UnlinkShop removes the link between a shop and a chat
func (m *MockDB) UnlinkShop(ctx context.Context, chatID, shopID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.links[chatID], shopID)
	return nil
}

// IsLinked reports whether the shop is linked to the chat
func (m *MockDB) IsLinked(ctx context.Context, chatID, shopID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.links[chatID][shopID], nil
}

// SetBanned updates the ban flag of a known user
func (m *MockDB) SetBanned(ctx context.Context, chatID int64, banned bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[chatID]
	if !ok {
		return false, fmt.Errorf("telegram user %d: %w", chatID, storage.ErrNotFound)
	}
	if user.IsBanned == banned {
		return false, nil
	}
	user.IsBanned = banned
	m.users[chatID] = user
	return true, nil
}

// SetSubscription updates the subscription flag of a known user
func (m *MockDB) SetSubscription(ctx context.Context, chatID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[chatID]
	if !ok {
		return fmt.Errorf("telegram user %d: %w", chatID, storage.ErrNotFound)
	}
	user.IsActive = active
	m.users[chatID] = user
	return nil
}

// Authenticate checks admin credentials against bcrypt hashes
func (m *MockDB) Authenticate(ctx context.Context, username, password string) (bool, error) {
	m.mu.RLock()
	hash, ok := m.admins[username]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
