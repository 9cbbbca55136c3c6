package strategy

import (
	"github.com/Alias1177/Backtester/internal/indicators"
	"github.com/Alias1177/Backtester/models"
)

// RSIReversionName is the registry name of RSIReversion
const RSIReversionName = "rsi_reversion"

// RSIReversion fades RSI extremes. It buys when oversold, shorts when
// overbought and takes either side off once RSI crosses back through the
// midline.
type RSIReversion struct {
	Period        int
	Oversold      float64
	Overbought    float64
	ATRPeriod     int
	ATRMultiplier float64
	RewardRatio   float64

	history *history
}

const rsiMidline = 50.0

// NewRSIReversion creates a 14 period RSI strategy with 30/70 thresholds
func NewRSIReversion(data models.HistoricalData) *RSIReversion {
	return &RSIReversion{
		Period:        14,
		Oversold:      30,
		Overbought:    70,
		ATRPeriod:     14,
		ATRMultiplier: 1.5,
		RewardRatio:   2,
		history:       newHistory(data),
	}
}

// Name implements Strategy
func (s *RSIReversion) Name() string { return RSIReversionName }

// Analyze implements Strategy
func (s *RSIReversion) Analyze(symbol, date string) (models.Signal, error) {
	bars := s.history.upTo(symbol, date)
	if len(bars) < s.Period+2 {
		return hold(), nil
	}

	closes := indicators.Closes(bars)
	prev := indicators.RSI(closes[:len(closes)-1], s.Period)
	cur := indicators.RSI(closes, s.Period)

	// exits take precedence over entries
	switch {
	case prev < rsiMidline && cur >= rsiMidline:
		return models.Signal{Action: models.ActionSell, Confidence: 0.6}, nil
	case prev > rsiMidline && cur <= rsiMidline:
		return models.Signal{Action: models.ActionCover, Confidence: 0.6}, nil
	}

	switch {
	case cur <= s.Oversold:
		signal := models.Signal{Action: models.ActionBuy, Confidence: clamp(0.5+(s.Oversold-cur)/s.Oversold, 0.5, 0.95)}
		return withLevels(signal, bars, s.ATRPeriod, s.ATRMultiplier, s.RewardRatio, models.Long), nil
	case cur >= s.Overbought:
		signal := models.Signal{Action: models.ActionShort, Confidence: clamp(0.5+(cur-s.Overbought)/(100-s.Overbought), 0.5, 0.95)}
		return withLevels(signal, bars, s.ATRPeriod, s.ATRMultiplier, s.RewardRatio, models.Short), nil
	}
	return hold(), nil
}
