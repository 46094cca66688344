package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"stock-scenario-engine/config"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	componentLogger := logger.With().Str("component", "Database").Logger()
	componentLogger.Info().Str("database", cfg.Name).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: componentLogger}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations")

	migrations := []string{
		// Scenario sets: one active set per (symbol, timeframe), older
		// sets kept for outcome evaluation
		`CREATE TABLE IF NOT EXISTS scenario_sets (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(20) NOT NULL,
			scenarios JSONB NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			outcome_price DECIMAL(20, 8),
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scenario_sets_symbol_timeframe
			ON scenario_sets(symbol, timeframe)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_scenario_sets_one_active
			ON scenario_sets(symbol, timeframe) WHERE active`,
		`CREATE INDEX IF NOT EXISTS idx_scenario_sets_generated_at
			ON scenario_sets(generated_at)`,

		// Users for the authenticated API surface
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'user',
			failed_logins INT NOT NULL DEFAULT 0,
			locked_until TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("count", len(migrations)).Msg("Migrations complete")
	return nil
}
