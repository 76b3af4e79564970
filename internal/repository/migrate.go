package repository

import (
	"context"
	"embed"
	"fmt"

	"entgo.io/ent/dialect"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded ledger migrations.
func (d *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationFiles)

	name := "postgres"
	if d.Dialect() == dialect.SQLite {
		name = "sqlite3"
	}
	if err := goose.SetDialect(name); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, d.SQL(), "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	d.logger.Info("ledger migrations applied", "dialect", d.Dialect())
	return nil
}
