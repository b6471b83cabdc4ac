package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	redisTC "github.com/testcontainers/testcontainers-go/modules/redis"

	"market/internal/app"
	"market/internal/storage/ch"
)

func main() {
	ctx := context.Background()

	log.Println("Starting ClickHouse testcontainer...")

	// Start ClickHouse container
	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	// Ensure container cleanup on exit
	defer func() {
		log.Println("Stopping ClickHouse container...")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}

	log.Printf("ClickHouse started at %s:%s", host, port.Port())

	log.Println("Starting Redis testcontainer...")
	redisContainer, err := redisTC.Run(ctx, "redis:7-alpine")
	if err != nil {
		log.Fatalf("Failed to start Redis container: %v", err)
	}
	defer func() {
		log.Println("Stopping Redis container...")
		if err := redisContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate container: %v", err)
		}
	}()

	uri, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("Failed to get Redis address: %v", err)
	}
	redisOpts, err := redis.ParseURL(uri)
	if err != nil {
		log.Fatalf("Failed to parse Redis address: %v", err)
	}

	log.Printf("Redis started at %s", redisOpts.Addr)

	// Set environment variables for the application
	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", port.Port())
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", "devpassword")
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("USE_MOCK_DB", "false")
	os.Setenv("WEBHOOK_MODE", "false")
	os.Setenv("SESSION_BACKEND", "redis")
	os.Setenv("REDIS_ADDR", redisOpts.Addr)
	os.Setenv("APP_ENV", "development")

	// Set PORT for HTTP server if not already set
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set. Please set it in your .env file or environment.")
		log.Println("   The bot will fail to start without a valid token.")
	}

	if os.Getenv("RMQ_HOST") == "" {
		log.Println("⚠️  RMQ_HOST not set. The shop relay stays disabled.")
	}

	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		log.Fatalf("Invalid ClickHouse port %q: %v", port.Port(), err)
	}
	if err := seedAdmin(ctx, host, portNum); err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}

	log.Println("Starting application with ClickHouse backend...")
	fmt.Println()

	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Run blocks until SIGINT or SIGTERM, then the deferred cleanups stop the containers
	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}

// seedAdmin creates the admin/admin login so the admin menu can be tried out
func seedAdmin(ctx context.Context, host string, port int) error {
	db, err := ch.NewClickHouseDB(host, port, "default", "default", "devpassword", false)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Initialize(ctx); err != nil {
		return err
	}
	log.Println("Seeding admin credentials admin/admin")
	return db.AddAdmin(ctx, "admin", "admin")
}
