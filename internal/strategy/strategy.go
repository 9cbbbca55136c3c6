// Package strategy provides the built-in signal generators the backtester can
// replay. Each one is built over a snapshot of historical data and only ever
// looks at bars dated on or before the date it is asked about.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Alias1177/Backtester/internal/indicators"
	"github.com/Alias1177/Backtester/internal/trading/risk"
	"github.com/Alias1177/Backtester/models"
)

// ErrUnknownStrategy is returned by New for unregistered names
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy produces a signal for a symbol on a date
type Strategy interface {
	Name() string
	Analyze(symbol, date string) (models.Signal, error)
}

var registry = map[string]func(models.HistoricalData) Strategy{
	EMACrossoverName: func(d models.HistoricalData) Strategy { return NewEMACrossover(d) },
	RSIReversionName: func(d models.HistoricalData) Strategy { return NewRSIReversion(d) },
}

// New builds the named strategy over data
func New(name string, data models.HistoricalData) (Strategy, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownStrategy, name, Names())
	}
	return build(data), nil
}

// Names lists the registered strategies
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hold() models.Signal {
	return models.Signal{Action: models.ActionHold}
}

// withLevels attaches ATR based stop and target prices to an entry signal
func withLevels(signal models.Signal, bars []models.Bar, atrPeriod int, atrMultiplier, rewardRatio float64, direction models.Direction) models.Signal {
	price := bars[len(bars)-1].Close
	entry := price
	signal.EntryPrice = &entry

	atr := indicators.ATR(bars, atrPeriod)
	if atr <= 0 {
		return signal
	}

	levels := risk.Levels(price, atr, atrMultiplier, rewardRatio, direction)
	if levels.StopLoss > 0 {
		signal.StopLoss = &levels.StopLoss
	}
	if levels.TakeProfit > 0 {
		signal.TakeProfit = &levels.TakeProfit
	}
	return signal
}

// clamp keeps confidence inside [lo, hi]
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
