package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sweets (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		category      TEXT NOT NULL,
		price         NUMERIC NOT NULL CHECK (price >= 0),
		quantity      NUMERIC NOT NULL CHECK (quantity >= 0),
		quantity_unit TEXT NOT NULL DEFAULT 'piece' CHECK (quantity_unit IN ('piece', 'kg', 'gm')),
		image         TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS sweets_name_key ON sweets (name)`,
	`CREATE INDEX IF NOT EXISTS sweets_created_at_idx ON sweets (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		customer_id      TEXT NOT NULL DEFAULT '',
		sweet_id         TEXT NOT NULL,
		sweet_name       TEXT NOT NULL DEFAULT '',
		quantity         NUMERIC NOT NULL CHECK (quantity > 0),
		unit             TEXT NOT NULL DEFAULT '',
		amount           BIGINT NOT NULL CHECK (amount >= 0),
		currency         TEXT NOT NULL,
		gateway_order_id TEXT UNIQUE,
		payment_id       TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		failure_reason   TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders (customer_id, created_at DESC)`,
}

// Migrate creates the tables and indexes when they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
