package indicators

import (
	"math"

	"github.com/Alias1177/Backtester/models"
)

// Closes extracts closing prices from bars
func Closes(bars []models.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// EMA returns the exponential moving average of prices, seeded with the SMA
// of the first period values. With fewer than period prices the last price is returned.
func EMA(prices []float64, period int) float64 {
	series := EMASeries(prices, period)
	if len(series) == 0 {
		if len(prices) == 0 {
			return 0
		}
		return prices[len(prices)-1]
	}
	return series[len(series)-1]
}

// EMASeries returns EMA values aligned to prices[period-1:]
func EMASeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	multiplier := 2.0 / float64(period+1)

	series := make([]float64, 0, len(prices)-period+1)
	series = append(series, ema)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		series = append(series, ema)
	}
	return series
}

// RSI computes Wilder's relative strength index over closes
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0 // neutral until there is enough history
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ATR calculates the average true range of the last period bars.
// When fewer true ranges exist, all of them are averaged.
func ATR(bars []models.Bar, period int) float64 {
	if len(bars) < 2 || period <= 0 {
		return 0
	}

	trueRanges := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		highLow := bars[i].High - bars[i].Low
		highPrevClose := math.Abs(bars[i].High - bars[i-1].Close)
		lowPrevClose := math.Abs(bars[i].Low - bars[i-1].Close)
		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	n := period
	if len(trueRanges) < n {
		n = len(trueRanges)
	}

	var sum float64
	for _, tr := range trueRanges[len(trueRanges)-n:] {
		sum += tr
	}
	return sum / float64(n)
}
