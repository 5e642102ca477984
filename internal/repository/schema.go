// Package repository holds the Postgres-backed tick and bar tables.
package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ticks (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		size DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ticks_symbol_ts_idx ON ticks (symbol, ts)`,
	`CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (symbol, timeframe, ts)
	)`,
}

// EnsureSchema creates the tables when they do not exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
