package strategy

import (
	"math"

	"github.com/Alias1177/Backtester/internal/indicators"
	"github.com/Alias1177/Backtester/models"
)

// EMACrossoverName is the registry name of EMACrossover
const EMACrossoverName = "ema_crossover"

// EMACrossover goes long when the fast EMA crosses above the slow EMA and
// exits when it crosses back below. Entries carry an ATR stop and a target at
// RewardRatio times the risk.
type EMACrossover struct {
	FastPeriod    int
	SlowPeriod    int
	ATRPeriod     int
	ATRMultiplier float64
	RewardRatio   float64

	history *history
}

// NewEMACrossover creates a 9/21 crossover with a 2 ATR stop and 1:2 target
func NewEMACrossover(data models.HistoricalData) *EMACrossover {
	return &EMACrossover{
		FastPeriod:    9,
		SlowPeriod:    21,
		ATRPeriod:     14,
		ATRMultiplier: 2,
		RewardRatio:   2,
		history:       newHistory(data),
	}
}

// Name implements Strategy
func (s *EMACrossover) Name() string { return EMACrossoverName }

// Analyze implements Strategy
func (s *EMACrossover) Analyze(symbol, date string) (models.Signal, error) {
	bars := s.history.upTo(symbol, date)
	if len(bars) < s.SlowPeriod+1 {
		return hold(), nil
	}

	closes := indicators.Closes(bars)
	fast := indicators.EMASeries(closes, s.FastPeriod)
	slow := indicators.EMASeries(closes, s.SlowPeriod)
	if len(fast) < 2 || len(slow) < 2 {
		return hold(), nil
	}

	prevFast, curFast := fast[len(fast)-2], fast[len(fast)-1]
	prevSlow, curSlow := slow[len(slow)-2], slow[len(slow)-1]

	// gap between the averages, in percent of the slow one
	spread := 0.0
	if curSlow != 0 {
		spread = math.Abs(curFast-curSlow) / curSlow * 100
	}
	confidence := clamp(0.5+spread/10, 0.5, 0.95)

	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		signal := models.Signal{Action: models.ActionBuy, Confidence: confidence}
		return withLevels(signal, bars, s.ATRPeriod, s.ATRMultiplier, s.RewardRatio, models.Long), nil
	case prevFast >= prevSlow && curFast < curSlow:
		return models.Signal{Action: models.ActionSell, Confidence: confidence}, nil
	}
	return hold(), nil
}
