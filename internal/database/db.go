package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DB represents a database connection
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	return Open(ctx, params.DSN())
}

// Open connects with a raw DSN or postgres:// URL and makes sure the schema exists
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &DB{
		DB:     db,
		logger: log.With().Str("component", "backtest_store").Logger(),
	}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS backtests (
			id UUID PRIMARY KEY,
			strategy TEXT NOT NULL,
			config JSONB NOT NULL,
			metrics JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			backtest_id UUID NOT NULL REFERENCES backtests(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_date DATE NOT NULL,
			exit_date DATE NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			shares BIGINT NOT NULL,
			profit_loss DOUBLE PRECISION NOT NULL,
			return_percent DOUBLE PRECISION NOT NULL,
			exit_reason TEXT NOT NULL,
			holding_days INTEGER NOT NULL,
			PRIMARY KEY (backtest_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_equity (
			backtest_id UUID NOT NULL REFERENCES backtests(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			date DATE NOT NULL,
			cash DOUBLE PRECISION NOT NULL,
			open_positions INTEGER NOT NULL,
			PRIMARY KEY (backtest_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS backtests_strategy_idx ON backtests (strategy, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
