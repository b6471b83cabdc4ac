package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	TelegramToken     string
	ListLimit         int
	ReportChatID      int64 // Chat that receives error reports, 0 disables them
	AutoCustomisation bool  // Publish the command list on start

	// Bot mode configuration
	WebhookMode   bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL    string // URL for webhook (required if WebhookMode is true)
	WebhookSecret string // Secret the webhook path is derived from
	Port          string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	UseMockDB bool

	RabbitMQ RabbitMQConfig

	// Shop synchronisation
	EnableShopSync    bool // Emit local shop changes to the peer service
	SyncLegacyCompare bool // Compare shops by value set instead of by field

	// Session storage
	SessionBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SessionTTL     time.Duration

	LogLevel string
	AppEnv   string
}

// RabbitMQConfig holds the broker connection and routing settings
type RabbitMQConfig struct {
	Enabled       bool // False when RMQ_HOST is not set
	Host          string
	Port          int
	Login         string
	Password      string
	VHost         string
	RetryInterval time.Duration
	Durable       bool // Declare durable exchanges
	Prefetch      int

	// Incoming shop events
	ShopExchange   string
	ShopRoutingKey string
	Queue          string

	// Outgoing shop events
	BotShopExchange   string
	BotShopRoutingKey string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}
	var err error

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if config.ListLimit, err = intEnv("TG_BOT_LIST_LIMIT", 5); err != nil {
		return nil, err
	}
	if config.ListLimit <= 0 {
		return nil, fmt.Errorf("TG_BOT_LIST_LIMIT must be positive, got %d", config.ListLimit)
	}

	if s := os.Getenv("TG_REPORT_CHAT_ID"); s != "" {
		config.ReportChatID, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TG_REPORT_CHAT_ID: %w", err)
		}
	}

	if config.AutoCustomisation, err = boolEnv("TG_BOT_AUTO_CUSTOMISATION", true); err != nil {
		return nil, err
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
		config.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
		if config.WebhookSecret == "" {
			config.WebhookSecret = config.TelegramToken
		}
	}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080" // Default port
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	// ClickHouse configuration (required if not using mock)
	if !config.UseMockDB {
		if err := loadClickHouse(config); err != nil {
			return nil, err
		}
	}

	if err := loadRabbitMQ(&config.RabbitMQ); err != nil {
		return nil, err
	}

	if config.EnableShopSync, err = boolEnv("ENABLE_SHOP_SYNC", true); err != nil {
		return nil, err
	}
	if config.SyncLegacyCompare, err = boolEnv("SYNC_LEGACY_COMPARE", false); err != nil {
		return nil, err
	}

	// Session storage
	config.SessionBackend = stringEnv("SESSION_BACKEND", SessionBackendMemory)
	switch config.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis:
		config.RedisAddr = os.Getenv("REDIS_ADDR")
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when SESSION_BACKEND is redis")
		}
		config.RedisPassword = os.Getenv("REDIS_PASSWORD")
		if config.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
			return nil, err
		}
		if config.SessionTTL, err = durationEnv("SESSION_TTL", 0); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q (want memory or redis)", config.SessionBackend)
	}

	config.LogLevel = stringEnv("LOG_LEVEL", "info")
	config.AppEnv = stringEnv("APP_ENV", "production")

	return config, nil
}

// LoadClickHouseFromEnv reads only the ClickHouse settings, for tools that
// talk to the database without running the bot
func LoadClickHouseFromEnv() (*Config, error) {
	config := &Config{}
	if err := loadClickHouse(config); err != nil {
		return nil, err
	}
	return config, nil
}

func loadClickHouse(config *Config) error {
	var err error

	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost == "" {
		return fmt.Errorf("CLICKHOUSE_HOST is required when USE_MOCK_DB is not set")
	}

	if config.ClickHousePort, err = intEnv("CLICKHOUSE_PORT", 9000); err != nil {
		return err
	}

	config.ClickHouseDatabase = stringEnv("CLICKHOUSE_DATABASE", "default")
	config.ClickHouseUser = stringEnv("CLICKHOUSE_USER", "default")
	config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	// Password is optional, can be empty

	config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	return nil
}

func loadRabbitMQ(rmq *RabbitMQConfig) error {
	var err error

	rmq.Host = os.Getenv("RMQ_HOST")
	rmq.Enabled = rmq.Host != ""
	if !rmq.Enabled {
		return nil
	}

	if rmq.Port, err = intEnv("RMQ_PORT", 5672); err != nil {
		return err
	}
	rmq.Login = stringEnv("RMQ_LOGIN", "guest")
	rmq.Password = stringEnv("RMQ_PASSWORD", "guest")
	rmq.VHost = stringEnv("RMQ_VHOST", "/")

	if rmq.RetryInterval, err = durationEnv("RMQ_RETRY_INTERVAL", 5*time.Second); err != nil {
		return err
	}
	if rmq.RetryInterval <= 0 {
		return fmt.Errorf("RMQ_RETRY_INTERVAL must be positive, got %s", rmq.RetryInterval)
	}
	if rmq.Durable, err = boolEnv("RMQ_DURABLE_EXCHANGES", false); err != nil {
		return err
	}
	if rmq.Prefetch, err = intEnv("RMQ_PREFETCH", 1); err != nil {
		return err
	}

	rmq.ShopExchange = stringEnv("RMQ_SHOP_EXCHANGE", "shop")
	rmq.ShopRoutingKey = stringEnv("RMQ_SHOP_ROUTING_KEY", "shop")
	rmq.Queue = stringEnv("RMQ_QUEUE", "bot.shop")
	rmq.BotShopExchange = stringEnv("RMQ_BOT_SHOP_EXCHANGE", "bot_shop")
	rmq.BotShopRoutingKey = stringEnv("RMQ_BOT_SHOP_ROUTING_KEY", "bot_shop")
	return nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
