// Package db owns the Postgres pool and schema migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"tenant_auth_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	minIdleConns      = 2
	connMaxLifetime   = time.Hour
	connMaxIdleTime   = 30 * time.Minute
	healthCheckPeriod = time.Minute
)

// NewPool opens a pgx pool and verifies it with a ping. Sessions and
// lockout state live in Redis, so the pool only serves the identity,
// organization and profile tables.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns := cfg.GetDatabaseMaxConns(); maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MinConns = min(minIdleConns, poolConfig.MaxConns)
	poolConfig.MaxConnLifetime = connMaxLifetime
	poolConfig.MaxConnIdleTime = connMaxIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PoolHealth adapts a pool to the readiness check used by the HTTP layer.
type PoolHealth struct {
	Pool *pgxpool.Pool
}

// Ping reports whether the database answers within ctx.
func (p PoolHealth) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
