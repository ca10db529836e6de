package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"cropsight/internal/config"
)

// NewPool creates a pgx connection pool from the database configuration and
// verifies connectivity before returning. Startup fails fast on an
// unreachable database rather than limping along.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// Probe is the health check for the database pool, registered with the API
// chassis and reported under GET /health.
type Probe struct {
	pool *pgxpool.Pool
}

// NewProbe creates a database health probe.
func NewProbe(pool *pgxpool.Pool) *Probe {
	return &Probe{pool: pool}
}

func (p *Probe) Name() string { return "database" }

func (p *Probe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
