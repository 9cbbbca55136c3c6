package models

import "time"

// Bar is one day of OHLCV data for a symbol
type Bar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HistoricalData maps an ISO date (YYYY-MM-DD) to the bars available on that date
type HistoricalData map[string]map[string]Bar

// Bar returns the bar for symbol on date, if any
func (h HistoricalData) Bar(date, symbol string) (Bar, bool) {
	day, ok := h[date]
	if !ok {
		return Bar{}, false
	}
	bar, ok := day[symbol]
	return bar, ok
}

// Action is the recommendation a strategy returns for a symbol on a date
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionShort Action = "SHORT"
	ActionCover Action = "COVER"
	ActionHold  Action = "HOLD"
)

// Valid reports whether a is one of the known actions
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionShort, ActionCover, ActionHold:
		return true
	}
	return false
}

// Signal is a strategy's answer for one symbol and date
type Signal struct {
	Action     Action   `json:"signal"`
	Confidence float64  `json:"confidence"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	EntryPrice *float64 `json:"entry_price,omitempty"` // informational; fills happen at the close
}

// Direction of an open exposure
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Position is an open exposure in one symbol
type Position struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Shares     int64     `json:"shares"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  string    `json:"entry_date"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	// CostBasis is the cash paid to open a LONG, fees included
	CostBasis float64 `json:"cost_basis,omitempty"`
	// Proceeds is the cash received when opening a SHORT, net of fees
	Proceeds   float64 `json:"proceeds,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Capital returns the amount committed to the position, the base for its return percent
func (p *Position) Capital() float64 {
	if p.Direction == Short {
		return p.Proceeds
	}
	return p.CostBasis
}

// ExitReason explains why a position was closed
type ExitReason string

const (
	ExitSellSignal    ExitReason = "SELL_SIGNAL"
	ExitCoverSignal   ExitReason = "COVER_SIGNAL"
	ExitStopLoss      ExitReason = "STOP_LOSS"
	ExitTakeProfit    ExitReason = "TAKE_PROFIT"
	ExitEndOfBacktest ExitReason = "END_OF_BACKTEST"
)

// Trade is a completed round trip
type Trade struct {
	Symbol        string     `json:"symbol"`
	Direction     Direction  `json:"direction"`
	EntryDate     string     `json:"entry_date"`
	ExitDate      string     `json:"exit_date"`
	EntryPrice    float64    `json:"entry_price"`
	ExitPrice     float64    `json:"exit_price"`
	Shares        int64      `json:"shares"`
	ProfitLoss    float64    `json:"profit_loss"`
	ReturnPercent float64    `json:"return_percent"`
	ExitReason    ExitReason `json:"exit_reason"`
	HoldingDays   int        `json:"holding_days"`
}

// EquitySnapshot records portfolio state at the end of a simulated date.
// Equity is cash only; open positions are not marked to market.
type EquitySnapshot struct {
	Date          string  `json:"date"`
	Cash          float64 `json:"cash"`
	OpenPositions int     `json:"open_positions"`
}

// Metrics holds aggregate statistics of a finished run.
// Percent fields are expressed in percent (4.79 means 4.79%).
type Metrics struct {
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	WinRate              float64 `json:"win_rate"`
	ProfitFactor         float64 `json:"profit_factor"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	AvgHoldingDays       float64 `json:"avg_holding_days"`
	TotalReturn          float64 `json:"total_return"`
	TotalProfitLoss      float64 `json:"total_profit_loss"`
	AverageWin           float64 `json:"average_win"`
	AverageLoss          float64 `json:"average_loss"`
	LargestWin           float64 `json:"largest_win"`
	LargestLoss          float64 `json:"largest_loss"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// BacktestConfig holds the options of a single run. A zero InitialCapital and
// nil fractions take the defaults; an explicit zero TransactionCost means no fees.
type BacktestConfig struct {
	StrategyName    string   `json:"strategy_name,omitempty"`
	StartDate       string   `json:"start_date,omitempty"`
	EndDate         string   `json:"end_date,omitempty"`
	InitialCapital  float64  `json:"initial_capital"`
	MaxPositionSize *float64 `json:"max_position_size"`
	TransactionCost *float64 `json:"transaction_cost"`
}

// Default option values
const (
	DefaultInitialCapital  = 100000
	DefaultMaxPositionSize = 0.2
	DefaultTransactionCost = 0.001
)

// DefaultBacktestConfig returns a config with every option set to its default
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:  DefaultInitialCapital,
		MaxPositionSize: Float(DefaultMaxPositionSize),
		TransactionCost: Float(DefaultTransactionCost),
	}
}

// PositionFraction is the share of cash one position may commit
func (c BacktestConfig) PositionFraction() float64 {
	if c.MaxPositionSize == nil {
		return DefaultMaxPositionSize
	}
	return *c.MaxPositionSize
}

// Cost is the per-side transaction cost as a fraction of notional
func (c BacktestConfig) Cost() float64 {
	if c.TransactionCost == nil {
		return DefaultTransactionCost
	}
	return *c.TransactionCost
}

// Float returns a pointer to v, for optional config values
func Float(v float64) *float64 {
	return &v
}

// BacktestPayload is what the engine hands to a result store
type BacktestPayload struct {
	Trades      []Trade          `json:"trades"`
	EquityCurve []EquitySnapshot `json:"equity_curve"`
	Metrics     Metrics          `json:"metrics"`
}

// BacktestResult is the full output of a run
type BacktestResult struct {
	BacktestID     string           `json:"backtest_id"`
	Strategy       string           `json:"strategy"`
	InitialCapital float64          `json:"initial_capital"`
	FinalCapital   float64          `json:"final_capital"`
	TotalReturn    float64          `json:"total_return"`
	TotalTrades    int              `json:"total_trades"`
	EquityCurve    []EquitySnapshot `json:"equity_curve"`
	Metrics        Metrics          `json:"metrics"`
	Trades         []Trade          `json:"trades"`
	Config         BacktestConfig   `json:"config"`
	// OpenPositions lists positions that could not be force-closed for lack of a final price
	OpenPositions []Position `json:"open_positions,omitempty"`
	Decisions     []Decision `json:"decisions,omitempty"`
}

// Outcome tags what a transition step did, including why nothing happened
type Outcome string

const (
	OutcomeOpened                  Outcome = "OPENED"
	OutcomeClosed                  Outcome = "CLOSED"
	OutcomeNoop                    Outcome = "NO_OP"
	OutcomeSkippedNoData           Outcome = "SKIPPED_NO_DATA"
	OutcomeSkippedNoShares         Outcome = "SKIPPED_NO_SHARES"
	OutcomeSkippedInsufficientCash Outcome = "SKIPPED_INSUFFICIENT_CASH"
)

// Decision records a non-trivial transition outcome for a symbol on a date
type Decision struct {
	Date    string     `json:"date"`
	Symbol  string     `json:"symbol"`
	Action  Action     `json:"action,omitempty"`
	Outcome Outcome    `json:"outcome"`
	Reason  ExitReason `json:"reason,omitempty"`
}

// MonteCarloPercentiles are return percentiles across simulations, in percent
type MonteCarloPercentiles struct {
	Worst  float64 `json:"worst"`
	P10    float64 `json:"p10"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Best   float64 `json:"best"`
}

// MonteCarloResults summarises trade-order reshuffling simulations
type MonteCarloResults struct {
	Simulations         int                   `json:"simulations"`
	Returns             MonteCarloPercentiles `json:"returns"`
	AverageDrawdown     float64               `json:"average_drawdown"`
	WorstDrawdown       float64               `json:"worst_drawdown"`
	ProbabilityOfProfit float64               `json:"probability_of_profit"`
}

// StoredBacktest is a persisted run as read back from a result store
type StoredBacktest struct {
	ID        string          `json:"id"`
	Strategy  string          `json:"strategy"`
	Config    BacktestConfig  `json:"config"`
	Payload   BacktestPayload `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
