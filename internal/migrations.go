package internal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/dukerupert/burgerbuilder/migrations"
)

// RunMigrations applies every pending orders migration and logs each one
// it applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("migration applied",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration_ms", r.Duration.Milliseconds(),
		)
	}
	if len(results) == 0 {
		logger.Info("database schema is up to date")
	}
	return nil
}

func newMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.MigrationsFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return provider, nil
}
