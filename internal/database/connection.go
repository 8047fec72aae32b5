package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/mithaq/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// connectAttempts bounds startup retries while PostgreSQL comes up next to
// the API container.
const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// DB owns the pgx pool shared by every repository.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewConnection(cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := open(poolConfig)
		if err == nil {
			logger.Info("database connection established",
				slog.String("host", cfg.Host),
				slog.String("database", cfg.Name),
				slog.Int("max_conns", int(cfg.MaxConns)),
			)
			return &DB{Pool: pool, logger: logger}, nil
		}

		lastErr = err
		logger.Warn("database not reachable yet",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}

	return nil, lastErr
}

func open(poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.Pool.Close()
}

// HealthCheck pings the database with a short deadline.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
