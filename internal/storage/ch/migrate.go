package ch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"

	"market/migrations"
)

// ErrUnknownMigration is returned for a migrate command other than up, down or status
var ErrUnknownMigration = errors.New("unknown migrate command")

func useEmbeddedMigrations() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Migrate runs the embedded goose migrations: up applies all pending ones,
// down rolls back the latest, status prints the applied set.
func Migrate(ctx context.Context, db *sql.DB, command string) error {
	if err := useEmbeddedMigrations(); err != nil {
		return err
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, ".")
	case "down":
		err = goose.DownContext(ctx, db, ".")
	case "status":
		err = goose.StatusContext(ctx, db, ".")
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMigration, command)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration
func SchemaVersion(ctx context.Context, db *sql.DB) (int64, error) {
	if err := useEmbeddedMigrations(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
