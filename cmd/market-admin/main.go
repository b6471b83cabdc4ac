package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"market/internal/app"
	"market/internal/bot"
	"market/internal/config"
	"market/internal/models"
	"market/internal/shopsync"
	"market/internal/storage"
	"market/internal/storage/ch"
)

const usage = `Usage:
  market-admin add-admin <username> <password>
  market-admin ban <chat_id>
  market-admin unban <chat_id>
  market-admin subscription <chat_id> <on|off>
  market-admin add-shop <id> <name> <api_key> [vendor_name]
  market-admin delete-shop <id>`

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.UseMockDB {
		log.Fatal("market-admin needs ClickHouse, unset USE_MOCK_DB")
	}

	logger, err := app.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := ch.NewClickHouseDB(
		cfg.ClickHouseHost,
		cfg.ClickHousePort,
		cfg.ClickHouseDatabase,
		cfg.ClickHouseUser,
		cfg.ClickHousePassword,
		cfg.ClickHouseUseTLS,
	)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	command := os.Args[1]

	switch command {
	case "add-admin":
		if len(os.Args) != 4 {
			log.Fatal(usage)
		}
		if err := db.AddAdmin(ctx, os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("Failed to add admin: %v", err)
		}
		log.Printf("Admin %s added", os.Args[2])
	case "ban", "unban":
		chatID := chatIDArg()
		telegramBot, err := bot.NewBot(cfg.TelegramToken, bot.Options{Storage: db}, logger.Named("bot"))
		if err != nil {
			log.Fatalf("Failed to create Telegram bot: %v", err)
		}
		if err := telegramBot.SetBanStatus(ctx, chatID, command == "ban"); err != nil {
			log.Fatalf("Failed to %s %d: %v", command, chatID, err)
		}
		log.Printf("Chat %d: %s done", chatID, command)
	case "subscription":
		if len(os.Args) != 4 {
			log.Fatal(usage)
		}
		chatID := chatIDArg()
		var active bool
		switch os.Args[3] {
		case "on":
			active = true
		case "off":
		default:
			log.Fatal(usage)
		}
		if err := db.SetSubscription(ctx, chatID, active); err != nil {
			log.Fatalf("Failed to set subscription: %v", err)
		}
		log.Printf("Chat %d: subscription %s", chatID, os.Args[3])
	case "add-shop":
		if len(os.Args) < 5 || len(os.Args) > 6 {
			log.Fatal(usage)
		}
		shop := models.Shop{
			ID:            idArg(os.Args[2]),
			Name:          os.Args[3],
			APIKey:        os.Args[4],
			PriceUpdating: true,
		}
		if len(os.Args) == 6 {
			shop.VendorName = os.Args[5]
		}
		catalog, closeCatalog := newCatalog(cfg, db, logger)
		defer closeCatalog()
		if err := catalog.AddShop(ctx, shop); err != nil {
			log.Fatalf("Failed to add shop: %v", err)
		}
		log.Printf("Shop %d added", shop.ID)
	case "delete-shop":
		if len(os.Args) != 3 {
			log.Fatal(usage)
		}
		id := idArg(os.Args[2])
		catalog, closeCatalog := newCatalog(cfg, db, logger)
		defer closeCatalog()
		if err := catalog.RemoveShop(ctx, id); err != nil {
			log.Fatalf("Failed to delete shop: %v", err)
		}
		log.Printf("Shop %d deleted", id)
	default:
		log.Fatalf("Unknown command: %s\n%s", command, usage)
	}
}

func chatIDArg() int64 {
	if len(os.Args) < 3 {
		log.Fatal(usage)
	}
	return idArg(os.Args[2])
}

func idArg(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("Invalid id %q: %v", s, err)
	}
	return id
}

// newCatalog publishes shop changes the way the bot does
func newCatalog(cfg *config.Config, db storage.ShopStore, logger *zap.Logger) (*shopsync.Catalog, func()) {
	if !cfg.RabbitMQ.Enabled {
		log.Println("Warning: RMQ_HOST not set, the peer service will not be told about this change")
	}
	emitter, conn := app.NewShopEmitter(cfg, logger)
	closeConn := func() {
		if conn != nil {
			_ = conn.Close()
		}
	}
	return shopsync.NewCatalog(db, emitter, logger.Named("catalog")), closeConn
}
