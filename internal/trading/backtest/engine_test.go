package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Backtester/models"
)

const (
	day1 = "2024-01-02"
	day2 = "2024-01-03"
	day3 = "2024-01-04"
	day4 = "2024-01-05"
)

// scripted answers with a fixed signal per date and symbol and HOLD otherwise
type scripted struct {
	mu      sync.Mutex
	signals map[string]models.Signal
	calls   []string
}

func newScripted(signals map[string]models.Signal) *scripted {
	return &scripted{signals: signals}
}

func (s *scripted) Analyze(symbol, date string) (models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, date+"/"+symbol)
	if sig, ok := s.signals[date+"/"+symbol]; ok {
		return sig, nil
	}
	return models.Signal{Action: models.ActionHold}, nil
}

func (s *scripted) Name() string { return "scripted" }

type recordingStore struct {
	id       string
	err      error
	strategy string
	cfg      models.BacktestConfig
	payload  models.BacktestPayload
	at       time.Time
}

func (r *recordingStore) StoreBacktest(_ context.Context, strategy string, cfg models.BacktestConfig, payload models.BacktestPayload, at time.Time) (string, error) {
	r.strategy, r.cfg, r.payload, r.at = strategy, cfg, payload, at
	return r.id, r.err
}

func flat(price float64) models.Bar {
	return models.Bar{Open: price, High: price, Low: price, Close: price, Volume: 1000}
}

func level(v float64) *float64 { return &v }

func quietEngine(store ResultStore) *Engine {
	return NewEngine(store, WithLogger(zerolog.Nop()))
}

func scenarioData() models.HistoricalData {
	return models.HistoricalData{
		day3: {"X": flat(105)},
		day1: {"X": flat(100)},
		day2: {"X": flat(110)},
	}
}

func TestRunBuySellScenario(t *testing.T) {
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy, Confidence: 0.8},
		day3 + "/X": {Action: models.ActionSell},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, scenarioData(), []string{"X"}, models.BacktestConfig{
		InitialCapital:  100000,
		MaxPositionSize: models.Float(0.2),
		TransactionCost: models.Float(0.001),
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, "X", trade.Symbol)
	assert.Equal(t, models.Long, trade.Direction)
	assert.Equal(t, int64(200), trade.Shares)
	assert.Equal(t, day1, trade.EntryDate)
	assert.Equal(t, day3, trade.ExitDate)
	assert.InDelta(t, 100.0, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 105.0, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 959.0, trade.ProfitLoss, 1e-6)
	assert.InDelta(t, 4.79, trade.ReturnPercent, 0.01)
	assert.Equal(t, models.ExitSellSignal, trade.ExitReason)
	assert.Equal(t, 2, trade.HoldingDays)

	assert.InDelta(t, 100959.0, result.FinalCapital, 1e-6)
	assert.Equal(t, "scripted", result.Strategy)
	assert.Equal(t, 1, result.TotalTrades)
	assert.InDelta(t, 0.96, result.TotalReturn, 1e-9)
	assert.Empty(t, result.OpenPositions)

	require.Len(t, result.EquityCurve, 3)
	assert.Equal(t, []string{day1, day2, day3}, []string{result.EquityCurve[0].Date, result.EquityCurve[1].Date, result.EquityCurve[2].Date})
	assert.InDelta(t, 79980.0, result.EquityCurve[0].Cash, 1e-6)
	assert.Equal(t, 1, result.EquityCurve[0].OpenPositions)
	assert.InDelta(t, 79980.0, result.EquityCurve[1].Cash, 1e-6)
	assert.InDelta(t, 100959.0, result.EquityCurve[2].Cash, 1e-6)
	assert.Equal(t, 0, result.EquityCurve[2].OpenPositions)

	m := result.Metrics
	assert.Equal(t, 1, m.TotalTrades)
	assert.Equal(t, 100.0, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.SharpeRatio)
	assert.InDelta(t, 20.02, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 2.0, m.AvgHoldingDays, 1e-9)

	assert.Equal(t, []models.Decision{
		{Date: day1, Symbol: "X", Action: models.ActionBuy, Outcome: models.OutcomeOpened},
		{Date: day3, Symbol: "X", Action: models.ActionSell, Outcome: models.OutcomeClosed},
	}, result.Decisions)
}

func TestRunLongRoundTripCostDrag(t *testing.T) {
	data := models.HistoricalData{
		day1: {"X": flat(100)},
		day2: {"X": flat(100)},
	}
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy},
		day2 + "/X": {Action: models.ActionSell},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, models.DefaultBacktestConfig())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	// pure cost drag: -cost * 2 * shares * price
	assert.InDelta(t, -0.001*2*200*100, result.Trades[0].ProfitLoss, 1e-6)
	assert.InDelta(t, 100000-40.0, result.FinalCapital, 1e-6)
}

func TestRunWithoutTransactionCost(t *testing.T) {
	data := models.HistoricalData{
		day1: {"X": flat(100)},
		day2: {"X": flat(100)},
	}
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy},
		day2 + "/X": {Action: models.ActionSell},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, models.BacktestConfig{
		TransactionCost: models.Float(0),
	})
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	require.NotNil(t, result.Config.TransactionCost)
	assert.Zero(t, *result.Config.TransactionCost)
	assert.Zero(t, result.Trades[0].ProfitLoss)
	assert.Equal(t, 100000.0, result.FinalCapital)
	assert.InDelta(t, 80000.0, result.EquityCurve[0].Cash, 1e-9)
}

func TestRunShortRoundTrip(t *testing.T) {
	data := models.HistoricalData{
		day1: {"X": flat(100)},
		day2: {"X": flat(90)},
	}
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionShort},
		day2 + "/X": {Action: models.ActionCover},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, models.DefaultBacktestConfig())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, models.Short, trade.Direction)
	assert.Equal(t, models.ExitCoverSignal, trade.ExitReason)
	assert.InDelta(t, 1962.0, trade.ProfitLoss, 1e-6)
	assert.InDelta(t, 9.82, trade.ReturnPercent, 0.01)

	// short proceeds are credited at entry
	assert.InDelta(t, 119980.0, result.EquityCurve[0].Cash, 1e-6)
	assert.InDelta(t, 101962.0, result.FinalCapital, 1e-6)
}

func TestRunProtectiveLevels(t *testing.T) {
	tests := []struct {
		name       string
		open       models.Action
		stop       float64
		target     float64
		day2       models.Bar
		wantReason models.ExitReason
		wantPrice  float64
	}{
		{
			name:       "long stop wins over target on the same day",
			open:       models.ActionBuy,
			stop:       95,
			target:     120,
			day2:       models.Bar{Open: 100, High: 125, Low: 90, Close: 100},
			wantReason: models.ExitStopLoss,
			wantPrice:  95,
		},
		{
			name:       "long take profit",
			open:       models.ActionBuy,
			stop:       95,
			target:     120,
			day2:       models.Bar{Open: 100, High: 121, Low: 99, Close: 118},
			wantReason: models.ExitTakeProfit,
			wantPrice:  120,
		},
		{
			name:       "short stop wins over target on the same day",
			open:       models.ActionShort,
			stop:       105,
			target:     90,
			day2:       models.Bar{Open: 100, High: 106, Low: 89, Close: 100},
			wantReason: models.ExitStopLoss,
			wantPrice:  105,
		},
		{
			name:       "short take profit",
			open:       models.ActionShort,
			stop:       105,
			target:     90,
			day2:       models.Bar{Open: 100, High: 101, Low: 89, Close: 95},
			wantReason: models.ExitTakeProfit,
			wantPrice:  90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := models.HistoricalData{
				day1: {"X": flat(100)},
				day2: {"X": tt.day2},
			}
			strategy := newScripted(map[string]models.Signal{
				day1 + "/X": {Action: tt.open, StopLoss: level(tt.stop), TakeProfit: level(tt.target)},
			})

			result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, models.DefaultBacktestConfig())
			require.NoError(t, err)
			require.Len(t, result.Trades, 1)
			assert.Equal(t, tt.wantReason, result.Trades[0].ExitReason)
			assert.InDelta(t, tt.wantPrice, result.Trades[0].ExitPrice, 1e-9)
			assert.Equal(t, day2, result.Trades[0].ExitDate)
		})
	}
}

func TestRunChecksNewPositionOnEntryDay(t *testing.T) {
	data := models.HistoricalData{
		day1: {"X": {Open: 100, High: 101, Low: 90, Close: 100}},
		day2: {"X": flat(100)},
	}
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy, StopLoss: level(95)},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, models.DefaultBacktestConfig())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, models.ExitStopLoss, trade.ExitReason)
	assert.Equal(t, day1, trade.ExitDate)
	assert.Equal(t, 0, trade.HoldingDays)
	assert.Equal(t, 0, result.EquityCurve[0].OpenPositions)
	assert.Equal(t, models.Decision{Date: day1, Symbol: "X", Outcome: models.OutcomeClosed, Reason: models.ExitStopLoss}, result.Decisions[1])
}

func TestRunForcedClosure(t *testing.T) {
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, scenarioData(), []string{"X"}, models.DefaultBacktestConfig())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, models.ExitEndOfBacktest, result.Trades[0].ExitReason)
	assert.Equal(t, day3, result.Trades[0].ExitDate)
	assert.InDelta(t, 105.0, result.Trades[0].ExitPrice, 1e-9)
	assert.Empty(t, result.OpenPositions)

	// the forced close happens after the last snapshot
	assert.Equal(t, 1, result.EquityCurve[2].OpenPositions)
	assert.InDelta(t, 100959.0, result.FinalCapital, 1e-6)
}

func TestRunLeavesPositionOpenWithoutFinalPrice(t *testing.T) {
	data := models.HistoricalData{
		day1: {"X": flat(100), "Y": flat(50)},
		day2: {"X": flat(101)},
	}
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy},
		day1 + "/Y": {Action: models.ActionBuy},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X", "Y"}, models.DefaultBacktestConfig())
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "X", result.Trades[0].Symbol)
	require.Len(t, result.OpenPositions, 1)
	assert.Equal(t, "Y", result.OpenPositions[0].Symbol)
	assert.Equal(t, day1, result.OpenPositions[0].EntryDate)

	t.Run("no closed trades", func(t *testing.T) {
		data := models.HistoricalData{
			day1: {"X": flat(100), "Y": flat(100)},
			day2: {"X": flat(100)},
		}
		strategy := newScripted(map[string]models.Signal{
			day1 + "/Y": {Action: models.ActionBuy},
		})

		result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X", "Y"}, models.DefaultBacktestConfig())
		require.NoError(t, err)

		assert.Empty(t, result.Trades)
		require.Len(t, result.OpenPositions, 1)
		// 200 shares at 100 plus 20 in fees stay locked in the open position
		assert.InDelta(t, 79980.0, result.FinalCapital, 1e-9)
		assert.Equal(t, -20.02, result.TotalReturn)
	})
}

func TestRunSkipOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.BacktestConfig
		bar     models.Bar
		want    models.Outcome
		queried bool
	}{
		{
			name:    "price above position budget",
			cfg:     models.BacktestConfig{InitialCapital: 1000},
			bar:     flat(300),
			want:    models.OutcomeSkippedNoShares,
			queried: true,
		},
		{
			name:    "fees push cost above cash",
			cfg:     models.BacktestConfig{InitialCapital: 10000, MaxPositionSize: models.Float(1)},
			bar:     flat(100),
			want:    models.OutcomeSkippedInsufficientCash,
			queried: true,
		},
		{
			name:    "missing close price",
			cfg:     models.DefaultBacktestConfig(),
			bar:     models.Bar{High: 101, Low: 99},
			want:    models.OutcomeSkippedNoData,
			queried: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := models.HistoricalData{day1: {"X": tt.bar}}
			strategy := newScripted(map[string]models.Signal{
				day1 + "/X": {Action: models.ActionBuy},
			})

			result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, tt.cfg)
			require.NoError(t, err)
			assert.Empty(t, result.Trades)
			require.Len(t, result.Decisions, 1)
			assert.Equal(t, tt.want, result.Decisions[0].Outcome)
			assert.Equal(t, tt.queried, len(strategy.calls) == 1)
			assert.Equal(t, result.InitialCapital, result.FinalCapital)
		})
	}
}

func TestRunInvalidSignalsAreNoops(t *testing.T) {
	data := models.HistoricalData{
		day1: {"X": flat(100)},
		day2: {"X": flat(100)},
		day3: {"X": flat(100)},
		day4: {"X": flat(100)},
	}
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy},
		day2 + "/X": {Action: models.ActionBuy},   // already long
		day3 + "/X": {Action: models.ActionShort}, // no direct reversal
		day4 + "/X": {Action: models.ActionCover}, // not short
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, models.DefaultBacktestConfig())
	require.NoError(t, err)

	for _, snap := range result.EquityCurve {
		assert.Equal(t, 1, snap.OpenPositions, snap.Date)
	}
	require.Len(t, result.Trades, 1)
	assert.Equal(t, models.ExitEndOfBacktest, result.Trades[0].ExitReason)
	assert.Equal(t, int64(200), result.Trades[0].Shares)
	assert.Len(t, result.Decisions, 1)
}

func TestRunDateRange(t *testing.T) {
	data := models.HistoricalData{
		day1: {"X": flat(100)},
		day2: {"X": flat(100)},
		day3: {"X": flat(110)},
		day4: {"X": flat(120)},
	}
	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy},
		day2 + "/X": {Action: models.ActionBuy},
	})

	result, err := quietEngine(nil).Run(context.Background(), strategy, data, []string{"X"}, models.BacktestConfig{
		StartDate: day2,
		EndDate:   day3,
	})
	require.NoError(t, err)

	require.Len(t, result.EquityCurve, 2)
	assert.Equal(t, day2, result.EquityCurve[0].Date)
	assert.Equal(t, day3, result.EquityCurve[1].Date)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, day2, result.Trades[0].EntryDate)
	assert.Equal(t, day3, result.Trades[0].ExitDate)
	assert.InDelta(t, 110.0, result.Trades[0].ExitPrice, 1e-9)
	assert.NotContains(t, strategy.calls, day1+"/X")
	assert.NotContains(t, strategy.calls, day4+"/X")
}

func TestRunNoActivity(t *testing.T) {
	result, err := quietEngine(nil).Run(context.Background(), newScripted(nil), scenarioData(), []string{"X"}, models.BacktestConfig{})
	require.NoError(t, err)

	assert.Equal(t, models.Metrics{}, result.Metrics)
	assert.NotNil(t, result.Trades)
	assert.Len(t, result.EquityCurve, 3)
	assert.Equal(t, 100000.0, result.FinalCapital)
	assert.Equal(t, models.DefaultBacktestConfig(), models.BacktestConfig{
		InitialCapital:  result.Config.InitialCapital,
		MaxPositionSize: result.Config.MaxPositionSize,
		TransactionCost: result.Config.TransactionCost,
	})
}

func TestRunErrors(t *testing.T) {
	missing := StrategyFunc(func(string, string) (models.Signal, error) {
		return models.Signal{}, nil
	})
	unknown := StrategyFunc(func(string, string) (models.Signal, error) {
		return models.Signal{Action: "BUY_MORE"}, nil
	})
	boom := errors.New("boom")
	failing := StrategyFunc(func(string, string) (models.Signal, error) {
		return models.Signal{}, boom
	})

	tests := []struct {
		name     string
		strategy Strategy
		data     models.HistoricalData
		symbols  []string
		cfg      models.BacktestConfig
		want     error
	}{
		{name: "missing signal", strategy: missing, data: scenarioData(), symbols: []string{"X"}, want: ErrMissingSignal},
		{name: "unknown action", strategy: unknown, data: scenarioData(), symbols: []string{"X"}, want: ErrUnknownAction},
		{name: "strategy failure", strategy: failing, data: scenarioData(), symbols: []string{"X"}, want: boom},
		{name: "no strategy", strategy: nil, data: scenarioData(), symbols: []string{"X"}, want: ErrNoStrategy},
		{name: "no symbols", strategy: newScripted(nil), data: scenarioData(), symbols: []string{""}, want: ErrNoSymbols},
		{name: "bad date key", strategy: newScripted(nil), data: models.HistoricalData{"2024/01/02": {"X": flat(1)}}, symbols: []string{"X"}, want: ErrMalformedData},
		{name: "nil bars", strategy: newScripted(nil), data: models.HistoricalData{day1: nil}, symbols: []string{"X"}, want: ErrMalformedData},
		{name: "oversized position", strategy: newScripted(nil), data: scenarioData(), symbols: []string{"X"}, cfg: models.BacktestConfig{MaxPositionSize: models.Float(1.5)}, want: ErrInvalidConfig},
		{name: "negative position size", strategy: newScripted(nil), data: scenarioData(), symbols: []string{"X"}, cfg: models.BacktestConfig{MaxPositionSize: models.Float(-0.1)}, want: ErrInvalidConfig},
		{name: "zero position size", strategy: newScripted(nil), data: scenarioData(), symbols: []string{"X"}, cfg: models.BacktestConfig{MaxPositionSize: models.Float(0)}, want: ErrInvalidConfig},
		{name: "negative cost", strategy: newScripted(nil), data: scenarioData(), symbols: []string{"X"}, cfg: models.BacktestConfig{TransactionCost: models.Float(-0.001)}, want: ErrInvalidConfig},
		{name: "negative capital", strategy: newScripted(nil), data: scenarioData(), symbols: []string{"X"}, cfg: models.BacktestConfig{InitialCapital: -5}, want: ErrInvalidConfig},
		{name: "inverted range", strategy: newScripted(nil), data: scenarioData(), symbols: []string{"X"}, cfg: models.BacktestConfig{StartDate: day3, EndDate: day1}, want: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := quietEngine(nil).Run(context.Background(), tt.strategy, tt.data, tt.symbols, tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, result)
		})
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := quietEngine(nil).Run(ctx, newScripted(nil), scenarioData(), []string{"X"}, models.BacktestConfig{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestRunStoresResult(t *testing.T) {
	at := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	store := &recordingStore{id: "bt-42"}
	engine := NewEngine(store, WithLogger(zerolog.Nop()), WithClock(func() time.Time { return at }))

	strategy := newScripted(map[string]models.Signal{
		day1 + "/X": {Action: models.ActionBuy},
	})
	result, err := engine.Run(context.Background(), strategy, scenarioData(), []string{"X"}, models.BacktestConfig{StrategyName: "label"})
	require.NoError(t, err)

	assert.Equal(t, "bt-42", result.BacktestID)
	assert.Equal(t, "label", result.Strategy)
	assert.Equal(t, "label", store.strategy)
	assert.Equal(t, at, store.at)
	assert.Equal(t, result.Trades, store.payload.Trades)
	assert.Equal(t, result.EquityCurve, store.payload.EquityCurve)
	assert.Equal(t, result.Metrics, store.payload.Metrics)
	assert.Equal(t, result.Config, store.cfg)

	store.err = errors.New("db down")
	_, err = engine.Run(context.Background(), strategy, scenarioData(), []string{"X"}, models.BacktestConfig{})
	assert.ErrorIs(t, err, store.err)
}

func TestRunIsDeterministic(t *testing.T) {
	data := models.HistoricalData{
		day1: {"A": flat(100), "B": flat(20)},
		day2: {"A": {Open: 100, High: 112, Low: 96, Close: 110}, "B": flat(19)},
		day3: {"A": flat(105), "B": {Open: 19, High: 19, Low: 15, Close: 16}},
		day4: {"A": flat(108), "B": flat(17)},
	}
	signals := map[string]models.Signal{
		day1 + "/A": {Action: models.ActionBuy, TakeProfit: level(111)},
		day1 + "/B": {Action: models.ActionShort, TakeProfit: level(15.5)},
		day3 + "/A": {Action: models.ActionBuy},
		day4 + "/A": {Action: models.ActionSell},
	}

	run := func() []byte {
		store := &recordingStore{id: "fixed"}
		engine := NewEngine(store, WithLogger(zerolog.Nop()), WithClock(func() time.Time { return time.Unix(0, 0) }))
		result, err := engine.Run(context.Background(), newScripted(signals), data, []string{"A", "B"}, models.DefaultBacktestConfig())
		require.NoError(t, err)
		out, err := json.Marshal(result)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, run(), run())
}

func TestEngineSupportsIndependentConcurrentRuns(t *testing.T) {
	engine := quietEngine(nil)
	strategy := func() Strategy {
		return newScripted(map[string]models.Signal{
			day1 + "/X": {Action: models.ActionBuy},
			day3 + "/X": {Action: models.ActionSell},
		})
	}

	var wg sync.WaitGroup
	results := make([]*models.BacktestResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := engine.Run(context.Background(), strategy(), scenarioData(), []string{"X"}, models.DefaultBacktestConfig())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.NotNil(t, res)
		assert.InDelta(t, 100959.0, res.FinalCapital, 1e-6)
		assert.Len(t, res.Trades, 1)
	}
}

func TestLedgerRejectsSecondPosition(t *testing.T) {
	l := newLedger()
	require.NoError(t, l.open(&models.Position{Symbol: "X", Direction: models.Long, Shares: 1}))

	err := l.open(&models.Position{Symbol: "X", Direction: models.Short, Shares: 1})
	assert.ErrorIs(t, err, ErrPositionExists)
	assert.Equal(t, 1, l.len())

	l.remove("X")
	assert.Zero(t, l.len())
}

func TestStrategyLabel(t *testing.T) {
	assert.Equal(t, "scripted", strategyLabel(newScripted(nil)))
	assert.Equal(t, "custom", strategyLabel(StrategyFunc(func(string, string) (models.Signal, error) {
		return models.Signal{Action: models.ActionHold}, nil
	})))
}
