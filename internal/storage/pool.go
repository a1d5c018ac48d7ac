// Package storage persists simulation runs. Postgres (via pgxpool) is the
// server store; a single-file SQLite database serves the CLI and small
// deployments. Both satisfy Store.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the Postgres run store.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects a pool to dsn and pings it.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Kind identifies the backend in health output.
func (db *DB) Kind() string { return "postgres" }

// Close shuts down the pool.
func (db *DB) Close(context.Context) {
	db.pool.Close()
}
