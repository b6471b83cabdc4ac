package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads so the host env does not leak in
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "TG_BOT_LIST_LIMIT", "TG_REPORT_CHAT_ID", "TG_BOT_AUTO_CUSTOMISATION",
		"WEBHOOK_MODE", "WEBHOOK_URL", "WEBHOOK_SECRET", "PORT",
		"USE_MOCK_DB", "CLICKHOUSE_HOST", "CLICKHOUSE_PORT", "CLICKHOUSE_DATABASE",
		"CLICKHOUSE_USER", "CLICKHOUSE_PASSWORD", "CLICKHOUSE_USE_TLS",
		"RMQ_HOST", "RMQ_PORT", "RMQ_LOGIN", "RMQ_PASSWORD", "RMQ_VHOST", "RMQ_RETRY_INTERVAL",
		"RMQ_DURABLE_EXCHANGES", "RMQ_PREFETCH", "RMQ_SHOP_EXCHANGE", "RMQ_SHOP_ROUTING_KEY",
		"RMQ_QUEUE", "RMQ_BOT_SHOP_EXCHANGE", "RMQ_BOT_SHOP_ROUTING_KEY",
		"ENABLE_SHOP_SYNC", "SYNC_LEGACY_COMPARE",
		"SESSION_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SESSION_TTL",
		"LOG_LEVEL", "APP_ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("USE_MOCK_DB", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ListLimit)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.AutoCustomisation)
	assert.True(t, cfg.EnableShopSync)
	assert.False(t, cfg.SyncLegacyCompare)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, SessionBackendMemory, cfg.SessionBackend)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv_RabbitMQ(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("USE_MOCK_DB", "true")
	t.Setenv("RMQ_HOST", "rabbit")
	t.Setenv("RMQ_RETRY_INTERVAL", "2s")
	t.Setenv("RMQ_DURABLE_EXCHANGES", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	rmq := cfg.RabbitMQ
	assert.True(t, rmq.Enabled)
	assert.Equal(t, 5672, rmq.Port)
	assert.Equal(t, "guest", rmq.Login)
	assert.Equal(t, "/", rmq.VHost)
	assert.Equal(t, 2*time.Second, rmq.RetryInterval)
	assert.True(t, rmq.Durable)
	assert.Equal(t, "shop", rmq.ShopExchange)
	assert.Equal(t, "bot_shop", rmq.BotShopRoutingKey)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"USE_MOCK_DB": "true"}},
		{name: "missing clickhouse host", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t"}},
		{name: "webhook without url", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "USE_MOCK_DB": "true", "WEBHOOK_MODE": "true"}},
		{name: "bad list limit", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "USE_MOCK_DB": "true", "TG_BOT_LIST_LIMIT": "0"}},
		{name: "bad report chat", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "USE_MOCK_DB": "true", "TG_REPORT_CHAT_ID": "x"}},
		{name: "redis without addr", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "USE_MOCK_DB": "true", "SESSION_BACKEND": "redis"}},
		{name: "unknown backend", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "USE_MOCK_DB": "true", "SESSION_BACKEND": "disk"}},
		{name: "bad retry interval", env: map[string]string{"TELEGRAM_BOT_TOKEN": "t", "USE_MOCK_DB": "true", "RMQ_HOST": "r", "RMQ_RETRY_INTERVAL": "soon"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv_WebhookSecretDefaultsToToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("USE_MOCK_DB", "true")
	t.Setenv("WEBHOOK_MODE", "true")
	t.Setenv("WEBHOOK_URL", "https://example.org")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.WebhookSecret)
}

func TestLoadClickHouseFromEnv(t *testing.T) {
	clearEnv(t)

	_, err := LoadClickHouseFromEnv()
	assert.Error(t, err)

	t.Setenv("CLICKHOUSE_HOST", "ch")
	t.Setenv("CLICKHOUSE_USE_TLS", "true")

	cfg, err := LoadClickHouseFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ch", cfg.ClickHouseHost)
	assert.Equal(t, 9000, cfg.ClickHousePort)
	assert.Equal(t, "default", cfg.ClickHouseDatabase)
	assert.Equal(t, "default", cfg.ClickHouseUser)
	assert.True(t, cfg.ClickHouseUseTLS)

	t.Setenv("CLICKHOUSE_PORT", "nine")
	_, err = LoadClickHouseFromEnv()
	assert.Error(t, err)
}
