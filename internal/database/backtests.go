package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Alias1177/Backtester/models"
)

// ErrNotFound is returned when a backtest id is unknown
var ErrNotFound = errors.New("backtest not found")

// StoreBacktest persists a finished run with its trades and equity curve in a
// single transaction and returns the generated id
func (db *DB) StoreBacktest(ctx context.Context, strategy string, cfg models.BacktestConfig, payload models.BacktestPayload, at time.Time) (string, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	metricsJSON, err := json.Marshal(payload.Metrics)
	if err != nil {
		return "", fmt.Errorf("encoding metrics: %w", err)
	}

	id := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO backtests (id, strategy, config, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, strategy, configJSON, metricsJSON, at.UTC()); err != nil {
		return "", fmt.Errorf("inserting backtest: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades (
			backtest_id, seq, symbol, direction, entry_date, exit_date, entry_price,
			exit_price, shares, profit_loss, return_percent, exit_reason, holding_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing trade insert: %w", err)
	}
	defer tradeStmt.Close()

	for i, t := range payload.Trades {
		if _, err := tradeStmt.ExecContext(ctx,
			id, i, t.Symbol, t.Direction, t.EntryDate, t.ExitDate, t.EntryPrice,
			t.ExitPrice, t.Shares, t.ProfitLoss, t.ReturnPercent, t.ExitReason, t.HoldingDays,
		); err != nil {
			return "", fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_equity (backtest_id, seq, date, cash, open_positions)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing equity insert: %w", err)
	}
	defer equityStmt.Close()

	for i, snap := range payload.EquityCurve {
		if _, err := equityStmt.ExecContext(ctx, id, i, snap.Date, snap.Cash, snap.OpenPositions); err != nil {
			return "", fmt.Errorf("inserting equity snapshot %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing backtest: %w", err)
	}

	db.logger.Info().
		Str("backtest_id", id).
		Str("strategy", strategy).
		Int("trades", len(payload.Trades)).
		Int("snapshots", len(payload.EquityCurve)).
		Msg("Stored backtest")

	return id, nil
}

// GetBacktest reads a stored run back
func (db *DB) GetBacktest(ctx context.Context, id string) (*models.StoredBacktest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var stored models.StoredBacktest
	var configJSON, metricsJSON []byte

	err := db.QueryRowContext(ctx, `
		SELECT id, strategy, config, metrics, created_at
		FROM backtests
		WHERE id = $1
	`, id).Scan(&stored.ID, &stored.Strategy, &configJSON, &metricsJSON, &stored.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	if err := json.Unmarshal(configJSON, &stored.Config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &stored.Payload.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}

	if stored.Payload.Trades, err = db.trades(ctx, id); err != nil {
		return nil, err
	}
	if stored.Payload.EquityCurve, err = db.equity(ctx, id); err != nil {
		return nil, err
	}

	return &stored, nil
}

func (db *DB) trades(ctx context.Context, id string) ([]models.Trade, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT symbol, direction, entry_date, exit_date, entry_price, exit_price,
			shares, profit_loss, return_percent, exit_reason, holding_days
		FROM backtest_trades
		WHERE backtest_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		var t models.Trade
		var entry, exit time.Time
		if err := rows.Scan(
			&t.Symbol, &t.Direction, &entry, &exit, &t.EntryPrice, &t.ExitPrice,
			&t.Shares, &t.ProfitLoss, &t.ReturnPercent, &t.ExitReason, &t.HoldingDays,
		); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.EntryDate = entry.Format(models.DateLayout)
		t.ExitDate = exit.Format(models.DateLayout)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (db *DB) equity(ctx context.Context, id string) ([]models.EquitySnapshot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date, cash, open_positions
		FROM backtest_equity
		WHERE backtest_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying equity curve: %w", err)
	}
	defer rows.Close()

	curve := []models.EquitySnapshot{}
	for rows.Next() {
		var snap models.EquitySnapshot
		var date time.Time
		if err := rows.Scan(&date, &snap.Cash, &snap.OpenPositions); err != nil {
			return nil, fmt.Errorf("scanning equity snapshot: %w", err)
		}
		snap.Date = date.Format(models.DateLayout)
		curve = append(curve, snap)
	}
	return curve, rows.Err()
}
