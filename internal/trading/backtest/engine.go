package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Backtester/internal/trading/risk"
	"github.com/Alias1177/Backtester/models"
)

var (
	ErrNoSymbols      = errors.New("no symbols to backtest")
	ErrNoStrategy     = errors.New("no strategy supplied")
	ErrInvalidConfig  = errors.New("invalid backtest config")
	ErrMalformedData  = errors.New("malformed historical data")
	ErrMissingSignal  = errors.New("strategy returned no signal")
	ErrUnknownAction  = errors.New("unknown signal action")
	ErrPositionExists = errors.New("position already open")
)

// Strategy produces a signal for a symbol on a date
type Strategy interface {
	Analyze(symbol, date string) (models.Signal, error)
}

// StrategyFunc adapts a plain function to Strategy
type StrategyFunc func(symbol, date string) (models.Signal, error)

// Analyze calls f
func (f StrategyFunc) Analyze(symbol, date string) (models.Signal, error) {
	return f(symbol, date)
}

// ResultStore persists a finished backtest and returns its identifier
type ResultStore interface {
	StoreBacktest(ctx context.Context, strategy string, cfg models.BacktestConfig, payload models.BacktestPayload, at time.Time) (string, error)
}

// Engine replays historical data against a strategy. It keeps no per-run state,
// so one Engine may serve concurrent runs.
type Engine struct {
	store  ResultStore
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger overrides the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the clock used for the store timestamp
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a backtesting engine. store may be nil, in which case
// results are not persisted and carry an empty id.
func NewEngine(store ResultStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: log.With().Str("component", "backtest_engine").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a backtest of strategy over data for the given symbols
func (e *Engine) Run(ctx context.Context, strategy Strategy, data models.HistoricalData, symbols []string, cfg models.BacktestConfig) (*models.BacktestResult, error) {
	if strategy == nil {
		return nil, ErrNoStrategy
	}
	symbols = uniqueSymbols(symbols)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.StrategyName == "" {
		cfg.StrategyName = strategyLabel(strategy)
	}

	dates, err := sortedDates(data)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("strategy", cfg.StrategyName).
		Strs("symbols", symbols).
		Int("dates", len(dates)).
		Float64("initial_capital", cfg.InitialCapital).
		Msg("Starting backtest")

	sim := newSimulation(cfg)
	lastDate := ""

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cfg.StartDate != "" && date < cfg.StartDate {
			continue
		}
		if cfg.EndDate != "" && date > cfg.EndDate {
			break
		}

		bars := data[date]

		// Risk checks run here for every open position and again per symbol
		// inside executeSignals, so positions opened today are also checked.
		e.maintainPositions(sim, date, bars)

		if err := e.executeSignals(sim, strategy, date, bars, symbols); err != nil {
			return nil, err
		}

		sim.snapshot(date)
		lastDate = date
	}

	open := e.closeAll(sim, lastDate, data[lastDate])

	finalCapital := sim.cash
	metrics := ComputeMetrics(sim.trades, sim.equity, cfg.InitialCapital, finalCapital)

	result := &models.BacktestResult{
		Strategy:       cfg.StrategyName,
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   finalCapital,
		TotalReturn:    round(totalReturn(cfg.InitialCapital, finalCapital)*100, percentPlaces),
		TotalTrades:    len(sim.trades),
		EquityCurve:    sim.equity,
		Metrics:        metrics,
		Trades:         sim.trades,
		Config:         cfg,
		OpenPositions:  open,
		Decisions:      sim.decisions,
	}

	if e.store != nil {
		payload := models.BacktestPayload{
			Trades:      result.Trades,
			EquityCurve: result.EquityCurve,
			Metrics:     result.Metrics,
		}
		id, err := e.store.StoreBacktest(ctx, cfg.StrategyName, cfg, payload, e.now())
		if err != nil {
			return nil, fmt.Errorf("storing backtest: %w", err)
		}
		result.BacktestID = id
	}

	e.logger.Info().
		Str("backtest_id", result.BacktestID).
		Int("trades", result.TotalTrades).
		Float64("final_capital", finalCapital).
		Float64("peak_cash", sim.peak).
		Float64("total_return_pct", result.TotalReturn).
		Float64("max_drawdown_pct", metrics.MaxDrawdown).
		Msg("Backtest finished")

	return result, nil
}

// maintainPositions checks every open position against the day's range
func (e *Engine) maintainPositions(sim *simulation, date string, bars map[string]models.Bar) {
	for _, symbol := range sim.positions.symbols() {
		bar, ok := bars[symbol]
		if !ok {
			continue
		}
		e.checkExit(sim, date, symbol, bar)
	}
}

// checkExit closes the position in symbol when its stop or target lies inside
// the bar's range. The stop wins when both would trigger.
func (e *Engine) checkExit(sim *simulation, date, symbol string, bar models.Bar) models.Outcome {
	pos, ok := sim.positions.get(symbol)
	if !ok {
		return models.OutcomeNoop
	}
	if !validPrice(bar.High) || !validPrice(bar.Low) {
		return models.OutcomeSkippedNoData
	}

	price, reason, hit := exitTrigger(pos, bar)
	if !hit {
		return models.OutcomeNoop
	}

	trade := sim.closePosition(pos, date, price, reason)
	sim.record(models.Decision{Date: date, Symbol: symbol, Outcome: models.OutcomeClosed, Reason: reason})

	e.logger.Debug().
		Str("date", date).
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Float64("price", price).
		Float64("pnl", trade.ProfitLoss).
		Msg("Position hit protective level")
	return models.OutcomeClosed
}

func exitTrigger(p *models.Position, bar models.Bar) (float64, models.ExitReason, bool) {
	switch p.Direction {
	case models.Long:
		if p.StopLoss != nil && bar.Low <= *p.StopLoss {
			return *p.StopLoss, models.ExitStopLoss, true
		}
		if p.TakeProfit != nil && bar.High >= *p.TakeProfit {
			return *p.TakeProfit, models.ExitTakeProfit, true
		}
	case models.Short:
		if p.StopLoss != nil && bar.High >= *p.StopLoss {
			return *p.StopLoss, models.ExitStopLoss, true
		}
		if p.TakeProfit != nil && bar.Low <= *p.TakeProfit {
			return *p.TakeProfit, models.ExitTakeProfit, true
		}
	}
	return 0, "", false
}

// executeSignals queries the strategy for each symbol with data on date and
// applies the resulting transition
func (e *Engine) executeSignals(sim *simulation, strategy Strategy, date string, bars map[string]models.Bar, symbols []string) error {
	for _, symbol := range symbols {
		bar, ok := bars[symbol]
		if !ok {
			continue
		}
		if !validPrice(bar.Close) {
			sim.record(models.Decision{Date: date, Symbol: symbol, Outcome: models.OutcomeSkippedNoData})
			continue
		}

		signal, err := strategy.Analyze(symbol, date)
		if err != nil {
			return fmt.Errorf("strategy on %s %s: %w", symbol, date, err)
		}
		if signal.Action == "" {
			return fmt.Errorf("%w: %s %s", ErrMissingSignal, symbol, date)
		}
		if !signal.Action.Valid() {
			return fmt.Errorf("%w: %q for %s %s", ErrUnknownAction, signal.Action, symbol, date)
		}

		outcome, err := e.transition(sim, date, symbol, signal, bar.Close)
		if err != nil {
			return err
		}
		sim.record(models.Decision{Date: date, Symbol: symbol, Action: signal.Action, Outcome: outcome})

		// second risk check for this symbol, after its signal
		e.checkExit(sim, date, symbol, bar)
	}
	return nil
}

// transition maps a signal onto the symbol's current state
func (e *Engine) transition(sim *simulation, date, symbol string, signal models.Signal, price float64) (models.Outcome, error) {
	pos, open := sim.positions.get(symbol)

	switch signal.Action {
	case models.ActionBuy:
		if !open {
			return e.openPosition(sim, date, symbol, models.Long, signal, price)
		}
	case models.ActionShort:
		if !open {
			return e.openPosition(sim, date, symbol, models.Short, signal, price)
		}
	case models.ActionSell:
		if open && pos.Direction == models.Long {
			e.logClose(sim.closePosition(pos, date, price, models.ExitSellSignal))
			return models.OutcomeClosed, nil
		}
	case models.ActionCover:
		if open && pos.Direction == models.Short {
			e.logClose(sim.closePosition(pos, date, price, models.ExitCoverSignal))
			return models.OutcomeClosed, nil
		}
	}
	return models.OutcomeNoop, nil
}

func (e *Engine) openPosition(sim *simulation, date, symbol string, direction models.Direction, signal models.Signal, price float64) (models.Outcome, error) {
	cost := sim.cfg.Cost()

	shares := risk.SharesFor(sim.cash, sim.cfg.PositionFraction(), price)
	if shares <= 0 {
		e.logger.Debug().Str("date", date).Str("symbol", symbol).Float64("cash", sim.cash).Msg("Position too small, skipping")
		return models.OutcomeSkippedNoShares, nil
	}
	if direction == models.Long && !risk.CanAfford(shares, price, cost, sim.cash) {
		e.logger.Debug().Str("date", date).Str("symbol", symbol).Float64("cash", sim.cash).Msg("Insufficient cash, skipping")
		return models.OutcomeSkippedInsufficientCash, nil
	}

	pos := &models.Position{
		Symbol:     symbol,
		Direction:  direction,
		Shares:     shares,
		EntryPrice: price,
		EntryDate:  date,
		StopLoss:   copyLevel(signal.StopLoss),
		TakeProfit: copyLevel(signal.TakeProfit),
		Confidence: signal.Confidence,
	}
	if direction == models.Long {
		pos.CostBasis = risk.CostWithFees(shares, price, cost)
	} else {
		pos.Proceeds = risk.ProceedsAfterFees(shares, price, cost)
	}

	if err := sim.positions.open(pos); err != nil {
		return "", err
	}
	if direction == models.Long {
		sim.cash -= pos.CostBasis
	} else {
		sim.cash += pos.Proceeds
	}

	e.logger.Debug().
		Str("date", date).
		Str("symbol", symbol).
		Str("direction", string(direction)).
		Int64("shares", shares).
		Float64("price", price).
		Float64("cash", sim.cash).
		Msg("Opened position")
	return models.OutcomeOpened, nil
}

// closeAll force-closes open positions at the final date's close. Positions
// without a usable final price stay open and are returned.
func (e *Engine) closeAll(sim *simulation, date string, bars map[string]models.Bar) []models.Position {
	for _, symbol := range sim.positions.symbols() {
		pos, _ := sim.positions.get(symbol)
		bar, ok := bars[symbol]
		if !ok || !validPrice(bar.Close) {
			e.logger.Warn().
				Str("date", date).
				Str("symbol", symbol).
				Msg("No closing price at end of backtest, position left open")
			continue
		}
		e.logClose(sim.closePosition(pos, date, bar.Close, models.ExitEndOfBacktest))
	}

	var open []models.Position
	for _, symbol := range sim.positions.symbols() {
		pos, _ := sim.positions.get(symbol)
		open = append(open, *pos)
	}
	return open
}

func (e *Engine) logClose(trade models.Trade) {
	e.logger.Debug().
		Str("date", trade.ExitDate).
		Str("symbol", trade.Symbol).
		Str("reason", string(trade.ExitReason)).
		Float64("price", trade.ExitPrice).
		Float64("pnl", trade.ProfitLoss).
		Msg("Closed position")
}

// closePosition settles cash, records the trade and removes the position
func (s *simulation) closePosition(p *models.Position, date string, price float64, reason models.ExitReason) models.Trade {
	cost := s.cfg.Cost()

	var pnl float64
	if p.Direction == models.Long {
		proceeds := risk.ProceedsAfterFees(p.Shares, price, cost)
		s.cash += proceeds
		pnl = proceeds - p.CostBasis
	} else {
		coverCost := risk.CostWithFees(p.Shares, price, cost)
		s.cash -= coverCost
		pnl = p.Proceeds - coverCost
	}

	returnPct := 0.0
	if capital := p.Capital(); capital > 0 {
		returnPct = pnl / capital * 100
	}

	trade := models.Trade{
		Symbol:        p.Symbol,
		Direction:     p.Direction,
		EntryDate:     p.EntryDate,
		ExitDate:      date,
		EntryPrice:    p.EntryPrice,
		ExitPrice:     price,
		Shares:        p.Shares,
		ProfitLoss:    pnl,
		ReturnPercent: returnPct,
		ExitReason:    reason,
		HoldingDays:   models.HoldingDays(p.EntryDate, date),
	}
	s.trades = append(s.trades, trade)
	s.positions.remove(p.Symbol)
	return trade
}

// normalizeConfig fills unset options with defaults and rejects out of range ones
func normalizeConfig(cfg models.BacktestConfig) (models.BacktestConfig, error) {
	if cfg.InitialCapital < 0 || math.IsNaN(cfg.InitialCapital) || math.IsInf(cfg.InitialCapital, 0) {
		return cfg, fmt.Errorf("%w: initial capital %.2f", ErrInvalidConfig, cfg.InitialCapital)
	}
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = models.DefaultInitialCapital
	}

	fraction := cfg.PositionFraction()
	if !(fraction > 0 && fraction <= 1) {
		return cfg, fmt.Errorf("%w: max position size %.4f outside (0, 1]", ErrInvalidConfig, fraction)
	}
	cost := cfg.Cost()
	if !(cost >= 0 && cost < 1) {
		return cfg, fmt.Errorf("%w: transaction cost %.4f outside [0, 1)", ErrInvalidConfig, cost)
	}
	cfg.MaxPositionSize = models.Float(fraction)
	cfg.TransactionCost = models.Float(cost)

	for _, d := range []string{cfg.StartDate, cfg.EndDate} {
		if d == "" {
			continue
		}
		if _, err := models.ParseDate(d); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if cfg.StartDate != "" && cfg.EndDate != "" && cfg.EndDate < cfg.StartDate {
		return cfg, fmt.Errorf("%w: end date %s before start date %s", ErrInvalidConfig, cfg.EndDate, cfg.StartDate)
	}
	return cfg, nil
}

// sortedDates validates the date keys and returns them in ascending order
func sortedDates(data models.HistoricalData) ([]string, error) {
	dates := make([]string, 0, len(data))
	for date, bars := range data {
		if _, err := models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedData, err)
		}
		if bars == nil {
			return nil, fmt.Errorf("%w: no bars for %s", ErrMalformedData, date)
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func strategyLabel(strategy Strategy) string {
	if named, ok := strategy.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "custom"
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func copyLevel(v *float64) *float64 {
	if v == nil {
		return nil
	}
	level := *v
	return &level
}
