package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"market/internal/models"
	"market/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Rows are versioned: every write inserts a new version of the row and reads
// collapse versions with FINAL. Deletes insert a tombstone (is_deleted = 1).

const shopColumns = `id, name, slug, client_id, api_key, shipper_api_key, vendor_name,
	is_active, price_updating, individual_updating_time`

type ClickHouseDB struct {
	conn clickhouse.Conn
	now  func() time.Time
}

// connOptions describes a native-protocol connection
func connOptions(host string, port int, database, user, password string, useTLS bool) *clickhouse.Options {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}
	return options
}

// OpenDB opens a database/sql handle with the same options as NewClickHouseDB
func OpenDB(host string, port int, database, user, password string, useTLS bool) *sql.DB {
	return clickhouse.OpenDB(connOptions(host, port, database, user, password, useTLS))
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(connOptions(host, port, database, user, password, useTLS))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, now: time.Now}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return nil
}

func (db *ClickHouseDB) version() uint64 {
	return uint64(db.now().UnixNano())
}

func scanShop(row interface{ Scan(dest ...any) error }) (models.Shop, error) {
	var shop models.Shop
	err := row.Scan(
		&shop.ID,
		&shop.Name,
		&shop.Slug,
		&shop.ClientID,
		&shop.APIKey,
		&shop.ShipperAPIKey,
		&shop.VendorName,
		&shop.IsActive,
		&shop.PriceUpdating,
		&shop.IndividualUpdatingTime,
	)
	return shop, err
}

// GetShop returns a shop by id
func (db *ClickHouseDB) GetShop(ctx context.Context, id int64) (models.Shop, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops FINAL WHERE id = ? AND is_deleted = 0`, id)
	shop, err := scanShop(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Shop{}, fmt.Errorf("shop %d: %w", id, storage.ErrNotFound)
		}
		return models.Shop{}, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

// GetShopByAPIKey returns the shop owning the api key
func (db *ClickHouseDB) GetShopByAPIKey(ctx context.Context, apiKey string) (models.Shop, error) {
	row := db.conn.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops FINAL
		WHERE api_key = ? AND is_deleted = 0 ORDER BY id LIMIT 1`, apiKey)
	shop, err := scanShop(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Shop{}, fmt.Errorf("shop with api key: %w", storage.ErrNotFound)
		}
		return models.Shop{}, fmt.Errorf("failed to get shop by api key: %w", err)
	}
	return shop, nil
}

// ShopExistsByAPIKey reports whether a shop owns the api key
func (db *ClickHouseDB) ShopExistsByAPIKey(ctx context.Context, apiKey string) (bool, error) {
	var count uint64
	err := db.conn.QueryRow(ctx, `SELECT count() FROM shops FINAL WHERE api_key = ? AND is_deleted = 0`, apiKey).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check api key: %w", err)
	}
	return count > 0, nil
}

// SaveShop inserts a new version of the shop
func (db *ClickHouseDB) SaveShop(ctx context.Context, shop models.Shop) error {
	err := db.conn.Exec(ctx, `INSERT INTO shops (`+shopColumns+`, is_deleted, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		shop.ID, shop.Name, shop.Slug, shop.ClientID, shop.APIKey, shop.ShipperAPIKey, shop.VendorName,
		shop.IsActive, shop.PriceUpdating, shop.IndividualUpdatingTime, db.version())
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

// DeleteShop writes a tombstone for the shop and its links
func (db *ClickHouseDB) DeleteShop(ctx context.Context, id int64) error {
	shop, err := db.GetShop(ctx, id)
	if err != nil {
		return err
	}

	version := db.version()
	err = db.conn.Exec(ctx, `INSERT INTO shops (`+shopColumns+`, is_deleted, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		shop.ID, shop.Name, shop.Slug, shop.ClientID, shop.APIKey, shop.ShipperAPIKey, shop.VendorName,
		shop.IsActive, shop.PriceUpdating, shop.IndividualUpdatingTime, version)
	if err != nil {
		return fmt.Errorf("failed to delete shop: %w", err)
	}

	err = db.conn.Exec(ctx, `INSERT INTO user_shops (chat_id, shop_id, is_deleted, version)
		SELECT chat_id, shop_id, 1, ? FROM user_shops FINAL WHERE shop_id = ? AND is_deleted = 0`, version, id)
	if err != nil {
		return fmt.Errorf("failed to unlink deleted shop: %w", err)
	}
	return nil
}

// ToggleActive flips is_active and returns the updated shop
func (db *ClickHouseDB) ToggleActive(ctx context.Context, id int64) (models.Shop, error) {
	return db.toggle(ctx, id, func(s *models.Shop) { s.IsActive = !s.IsActive })
}

// TogglePriceUpdating flips price_updating and returns the updated shop
func (db *ClickHouseDB) TogglePriceUpdating(ctx context.Context, id int64) (models.Shop, error) {
	return db.toggle(ctx, id, func(s *models.Shop) { s.PriceUpdating = !s.PriceUpdating })
}

func (db *ClickHouseDB) toggle(ctx context.Context, id int64, flip func(*models.Shop)) (models.Shop, error) {
	shop, err := db.GetShop(ctx, id)
	if err != nil {
		return models.Shop{}, err
	}
	flip(&shop)
	if err := db.SaveShop(ctx, shop); err != nil {
		return models.Shop{}, err
	}
	return shop, nil
}

// ListShops returns one page of shops ordered by id
func (db *ClickHouseDB) ListShops(ctx context.Context, scope storage.ShopScope, limit, offset int) ([]models.Shop, int, error) {
	if err := (models.PageCursor{Limit: limit, Offset: offset}).Validate(); err != nil {
		return nil, 0, err
	}

	filter := `is_deleted = 0`
	args := []any{}
	if scope.ChatID != 0 {
		filter += ` AND id IN (SELECT shop_id FROM user_shops FINAL WHERE chat_id = ? AND is_deleted = 0)`
		args = append(args, scope.ChatID)
	}

	var total uint64
	if err := db.conn.QueryRow(ctx, `SELECT count() FROM shops FINAL WHERE `+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count shops: %w", err)
	}

	rows, err := db.conn.Query(ctx, `SELECT `+shopColumns+` FROM shops FINAL WHERE `+filter+`
		ORDER BY id LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list shops: %w", err)
	}
	defer rows.Close()

	shops := []models.Shop{}
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, shop)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list shops: %w", err)
	}
	return shops, int(total), nil
}

// GetUser returns a telegram user by chat id
func (db *ClickHouseDB) GetUser(ctx context.Context, chatID int64) (models.TelegramUser, error) {
	var (
		user models.TelegramUser
		role string
	)
	err := db.conn.QueryRow(ctx, `SELECT chat_id, first_name, last_name, username, role,
		is_banned, is_active, is_logged_out, created_at
		FROM telegram_users FINAL WHERE chat_id = ?`, chatID).Scan(
		&user.ChatID, &user.FirstName, &user.LastName, &user.Username, &role,
		&user.IsBanned, &user.IsActive, &user.IsLoggedOut, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TelegramUser{}, fmt.Errorf("telegram user %d: %w", chatID, storage.ErrNotFound)
		}
		return models.TelegramUser{}, fmt.Errorf("failed to get telegram user: %w", err)
	}
	user.Role = models.Role(role)
	return user, nil
}

// GetRole returns the stored role, or RoleUnset for unknown chats
func (db *ClickHouseDB) GetRole(ctx context.Context, chatID int64) (models.Role, error) {
	user, err := db.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.RoleUnset, nil
		}
		return models.RoleUnset, err
	}
	return models.ParseRole(string(user.Role))
}

// GetStatuses returns the access flags of a chat
func (db *ClickHouseDB) GetStatuses(ctx context.Context, chatID int64) (models.UserStatuses, error) {
	user, err := db.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.UserStatuses{}, nil
		}
		return models.UserStatuses{}, err
	}
	return models.UserStatuses{
		Exists:      true,
		IsBanned:    user.IsBanned,
		IsActive:    user.IsActive,
		IsLoggedOut: user.IsLoggedOut,
	}, nil
}

func (db *ClickHouseDB) putUser(ctx context.Context, user models.TelegramUser) error {
	err := db.conn.Exec(ctx, `INSERT INTO telegram_users (chat_id, first_name, last_name, username, role,
		is_banned, is_active, is_logged_out, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ChatID, user.FirstName, user.LastName, user.Username, string(user.Role),
		user.IsBanned, user.IsActive, user.IsLoggedOut, user.CreatedAt, db.version())
	if err != nil {
		return fmt.Errorf("failed to save telegram user: %w", err)
	}
	return nil
}

// login creates or updates the user with the given role
func (db *ClickHouseDB) login(ctx context.Context, chatID int64, profile models.Profile, role models.Role) error {
	user, err := db.GetUser(ctx, chatID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		user = models.TelegramUser{ChatID: chatID, IsActive: true, CreatedAt: db.now()}
	}
	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.Username = profile.Username
	user.Role = role
	user.IsLoggedOut = false
	return db.putUser(ctx, user)
}

// LoginAdmin creates or updates the user as admin
func (db *ClickHouseDB) LoginAdmin(ctx context.Context, chatID int64, profile models.Profile) error {
	return db.login(ctx, chatID, profile, models.RoleAdmin)
}

// LoginSeller creates or updates the user as seller and links the shop
func (db *ClickHouseDB) LoginSeller(ctx context.Context, chatID int64, profile models.Profile, shopID int64) error {
	if err := db.login(ctx, chatID, profile, models.RoleSeller); err != nil {
		return err
	}
	return db.LinkShop(ctx, chatID, shopID)
}

// Logout marks the user as logged out
func (db *ClickHouseDB) Logout(ctx context.Context, chatID int64) error {
	user, err := db.GetUser(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	user.IsLoggedOut = true
	return db.putUser(ctx, user)
}

// LinkShop links a shop to a chat
func (db *ClickHouseDB) LinkShop(ctx context.Context, chatID, shopID int64) error {
	err := db.conn.Exec(ctx, `INSERT INTO user_shops (chat_id, shop_id, is_deleted, version) VALUES (?, ?, 0, ?)`,
		chatID, shopID, db.version())
	if err != nil {
		return fmt.Errorf("failed to link shop: %w", err)
	}
	return nil
}

// UnlinkShop removes the link between a shop and a chat
func (db *ClickHouseDB) UnlinkShop(ctx context.Context, chatID, shopID int64) error {
	err := db.conn.Exec(ctx, `INSERT INTO user_shops (chat_id, shop_id, is_deleted, version) VALUES (?, ?, 1, ?)`,
		chatID, shopID, db.version())
	if err != nil {
		return fmt.Errorf("failed to unlink shop: %w", err)
	}
	return nil
}

// IsLinked reports whether the shop is linked to the chat
func (db *ClickHouseDB) IsLinked(ctx context.Context, chatID, shopID int64) (bool, error) {
	var count uint64
	err := db.conn.QueryRow(ctx, `SELECT count() FROM user_shops FINAL
		WHERE chat_id = ? AND shop_id = ? AND is_deleted = 0`, chatID, shopID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check shop link: %w", err)
	}
	return count > 0, nil
}

// SetBanned updates the ban flag of a known user
func (db *ClickHouseDB) SetBanned(ctx context.Context, chatID int64, banned bool) (bool, error) {
	user, err := db.GetUser(ctx, chatID)
	if err != nil {
		return false, err
	}
	if user.IsBanned == banned {
		return false, nil
	}
	user.IsBanned = banned
	if err := db.putUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

// SetSubscription updates the subscription flag of a known user
func (db *ClickHouseDB) SetSubscription(ctx context.Context, chatID int64, active bool) error {
	user, err := db.GetUser(ctx, chatID)
	if err != nil {
		return err
	}
	user.IsActive = active
	return db.putUser(ctx, user)
}

// Authenticate checks admin credentials against bcrypt hashes
func (db *ClickHouseDB) Authenticate(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := db.conn.QueryRow(ctx, `SELECT password_hash FROM admins FINAL WHERE username = ?`, username).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get admin: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// AddAdmin stores back-office credentials as a bcrypt hash
func (db *ClickHouseDB) AddAdmin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	err = db.conn.Exec(ctx, `INSERT INTO admins (username, password_hash, version) VALUES (?, ?, ?)`,
		username, string(hash), db.version())
	if err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
