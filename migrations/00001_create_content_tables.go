// Package migrations holds the chronological schema migrations for the
// tourism content database. Each migration is registered with goose and
// applied through `pgrekey migrate`.
package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateContentTables, downCreateContentTables)
}

func upCreateContentTables(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attractions (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name JSONB NOT NULL DEFAULT '{}'::jsonb,
			description JSONB NOT NULL DEFAULT '{}'::jsonb,
			city TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS accommodations (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name JSONB NOT NULL DEFAULT '{}'::jsonb,
			description JSONB NOT NULL DEFAULT '{}'::jsonb,
			city TEXT,
			stars SMALLINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS restaurants (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name JSONB NOT NULL DEFAULT '{}'::jsonb,
			description JSONB NOT NULL DEFAULT '{}'::jsonb,
			city TEXT,
			cuisine TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attractions_city ON attractions(city)`,
		`CREATE INDEX IF NOT EXISTS idx_accommodations_city ON accommodations(city)`,
		`CREATE INDEX IF NOT EXISTS idx_restaurants_city ON restaurants(city)`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func downCreateContentTables(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`DROP TABLE IF EXISTS restaurants`,
		`DROP TABLE IF EXISTS accommodations`,
		`DROP TABLE IF EXISTS attractions`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
