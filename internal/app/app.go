package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market/internal/bot"
	"market/internal/broker"
	"market/internal/config"
	"market/internal/session"
	"market/internal/shopsync"
	"market/internal/storage"
	"market/internal/storage/ch"
	"market/internal/storage/stubs"
)

// App represents the application
type App struct {
	config   *config.Config
	logger   *zap.Logger
	db       storage.Storage
	sessions session.Store
	redis    *redis.Client

	conn       *broker.Connection
	consumer   *broker.Consumer
	reconciler *shopsync.Reconciler
	emitter    *shopsync.Emitter

	bot    *bot.Bot
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting market bot...")

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initSessions(ctx); err != nil {
		return nil, err
	}
	app.initBroker()
	if err := app.initBot(); err != nil {
		return nil, err
	}

	return app, nil
}

// NewLogger builds the zap logger for the environment
func NewLogger(appEnv, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if appEnv == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// initDatabase initializes the database connection
func (a *App) initDatabase(ctx context.Context) error {
	var db storage.Storage
	if a.config.UseMockDB {
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	} else {
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	}

	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initSessions picks the conversation session backend
func (a *App) initSessions(ctx context.Context) error {
	if a.config.SessionBackend != config.SessionBackendRedis {
		a.logger.Info("Using in-memory sessions")
		a.sessions = session.NewMemoryStore()
		return nil
	}

	a.logger.Info("Using Redis sessions",
		zap.String("addr", a.config.RedisAddr),
		zap.Int("db", a.config.RedisDB),
		zap.Duration("ttl", a.config.SessionTTL),
	)
	rdb, err := session.NewRedisClient(ctx, a.config.RedisAddr, a.config.RedisPassword, a.config.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redis = rdb
	a.sessions = session.NewRedisStore(rdb, a.config.SessionTTL)
	return nil
}

// initBroker wires the shop relay. Without RMQ_HOST the bot runs standalone.
func (a *App) initBroker() {
	var compare shopsync.Comparator = shopsync.FieldsEqual
	if a.config.SyncLegacyCompare {
		a.logger.Warn("Using legacy value-set shop comparison")
		compare = shopsync.ValueSetEqual
	}
	a.reconciler = shopsync.NewReconciler(a.db, compare, a.logger.Named("reconciler"))

	a.emitter, a.conn = NewShopEmitter(a.config, a.logger)
	if a.conn != nil {
		a.consumer = broker.NewConsumer(a.conn, a.config.RabbitMQ.Durable, a.logger.Named("consumer"))
	}
}

// NewShopEmitter builds the emitter for local shop changes. The connection is
// nil when RabbitMQ is not configured; the emitter then drops every event.
func NewShopEmitter(cfg *config.Config, logger *zap.Logger) (*shopsync.Emitter, *broker.Connection) {
	rmq := cfg.RabbitMQ
	if !rmq.Enabled {
		logger.Info("RabbitMQ is not configured, shop relay disabled")
		return shopsync.NewEmitter(nil, "", "", false, logger), nil
	}

	url := broker.URL(rmq.Host, rmq.Port, rmq.Login, rmq.Password, rmq.VHost)
	conn := broker.NewConnection(url, logger.Named("broker"), broker.WithRetryInterval(rmq.RetryInterval))
	publisher := broker.NewPublisher(conn, rmq.Durable, logger.Named("publisher"))
	emitter := shopsync.NewEmitter(publisher, rmq.BotShopExchange, rmq.BotShopRoutingKey,
		cfg.EnableShopSync, logger.Named("emitter"))
	return emitter, conn
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, bot.Options{
		Storage:      a.db,
		Sessions:     a.sessions,
		Events:       a.emitter,
		ListLimit:    a.config.ListLimit,
		ReportChatID: a.config.ReportChatID,
		SetCommands:  a.config.AutoCustomisation,
	}, a.logger.Named("bot"))
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	a.bot = telegramBot
	return nil
}

// newServer builds the HTTP server for health checks and the webhook
func (a *App) newServer(ctx context.Context) *http.Server {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	// Root endpoint
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		relay := "off"
		if a.config.RabbitMQ.Enabled {
			relay = "on"
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Market bot is running (mode: %s, shop relay: %s)", mode, relay)
	})

	if a.config.WebhookMode {
		bot.NewWebhookHandler(ctx, a.bot, a.config.WebhookSecret).RegisterRoutes(mux)
	}

	return &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.server = a.newServer(ctx)
	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("webhook_url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL, a.config.WebhookSecret); err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		g.Go(func() error {
			a.logger.Info("Starting bot in POLLING mode...")
			return a.bot.Start(ctx)
		})
	}

	if a.consumer != nil {
		rmq := a.config.RabbitMQ
		g.Go(func() error {
			a.logger.Info("Starting shop event consumer",
				zap.String("exchange", rmq.ShopExchange),
				zap.String("routing_key", rmq.ShopRoutingKey),
				zap.String("queue", rmq.Queue),
			)
			err := a.consumer.Consume(ctx, a.reconciler.HandleShopEvent, rmq.ShopExchange, rmq.ShopRoutingKey,
				broker.WithQueueName(rmq.Queue),
				broker.WithPrefetch(rmq.Prefetch),
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	a.logger.Info("Shutting down...")
	a.bot.Wait()
	if shutdownErr := a.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// Shutdown releases the connections held by the application
func (a *App) Shutdown() error {
	var errs []error

	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warn("Error closing broker connection", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Error closing Redis client", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		errs = append(errs, err)
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
