package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"market/internal/app"
	"market/internal/config"
	"market/internal/storage/ch"
)

const usage = "Usage: migrate [up|down|status|version|create <migration_name>]"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// New migrations are written next to the embedded ones and need no database
	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal(usage)
		}
		if err := goose.Create(nil, "./migrations", os.Args[2], "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		return
	}

	cfg, err := config.LoadClickHouseFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(os.Getenv("APP_ENV"), "info")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	goose.SetLogger(zap.NewStdLog(logger.Named("goose")))

	db := ch.OpenDB(
		cfg.ClickHouseHost,
		cfg.ClickHousePort,
		cfg.ClickHouseDatabase,
		cfg.ClickHouseUser,
		cfg.ClickHousePassword,
		cfg.ClickHouseUseTLS,
	)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("Failed to ping ClickHouse", zap.Error(err), zap.String("host", cfg.ClickHouseHost))
	}
	logger.Info("Connected to ClickHouse",
		zap.String("host", cfg.ClickHouseHost),
		zap.String("database", cfg.ClickHouseDatabase),
	)

	if command == "version" {
		version, err := ch.SchemaVersion(ctx, db)
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		logger.Info("Current migration version", zap.Int64("version", version))
		return
	}

	logger.Info("Running migrations", zap.String("command", command))
	if err := ch.Migrate(ctx, db, command); err != nil {
		logger.Fatal("Migration failed", zap.Error(err), zap.String("usage", usage))
	}
	logger.Info("Migrations completed successfully", zap.String("command", command))
}
