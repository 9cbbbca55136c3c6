package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Alias1177/Backtester/models"
)

// tradingDaysPerYear annualises per-trade Sharpe and Sortino ratios
const tradingDaysPerYear = 252

// Rounding precision of reported metrics
const (
	percentPlaces = 2
	ratioPlaces   = 4
	moneyPlaces   = 2
)

// ComputeMetrics derives aggregate statistics from a finished run. It has no
// side effects; an empty trade list yields an all-zero Metrics value.
func ComputeMetrics(trades []models.Trade, equity []models.EquitySnapshot, initialCapital, finalCapital float64) models.Metrics {
	if len(trades) == 0 {
		return models.Metrics{}
	}

	var m models.Metrics
	m.TotalTrades = len(trades)

	var grossProfit, grossLoss, holdingDays float64
	var consecutiveWins, consecutiveLosses int
	returns := make([]float64, 0, len(trades))

	for _, t := range trades {
		returns = append(returns, t.ReturnPercent)
		holdingDays += float64(t.HoldingDays)
		m.TotalProfitLoss += t.ProfitLoss

		switch {
		case t.ProfitLoss > 0:
			m.WinningTrades++
			grossProfit += t.ProfitLoss
			if t.ProfitLoss > m.LargestWin {
				m.LargestWin = t.ProfitLoss
			}
			consecutiveWins++
			consecutiveLosses = 0
		case t.ProfitLoss < 0:
			m.LosingTrades++
			grossLoss += t.ProfitLoss
			if t.ProfitLoss < m.LargestLoss {
				m.LargestLoss = t.ProfitLoss
			}
			consecutiveLosses++
			consecutiveWins = 0
		default:
			consecutiveWins = 0
			consecutiveLosses = 0
		}

		if consecutiveWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = consecutiveLosses
		}
	}

	m.WinRate = round(float64(m.WinningTrades)/float64(m.TotalTrades)*100, percentPlaces)

	if grossLoss < 0 {
		m.ProfitFactor = round(grossProfit/math.Abs(grossLoss), ratioPlaces)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = round(grossProfit/float64(m.WinningTrades), moneyPlaces)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = round(grossLoss/float64(m.LosingTrades), moneyPlaces)
	}

	m.SharpeRatio = round(sharpeRatio(returns), ratioPlaces)
	m.SortinoRatio = round(sortinoRatio(returns), ratioPlaces)
	m.MaxDrawdown = round(MaxDrawdown(equity, initialCapital)*100, percentPlaces)
	m.AvgHoldingDays = round(holdingDays/float64(m.TotalTrades), percentPlaces)
	m.TotalReturn = round(totalReturn(initialCapital, finalCapital)*100, percentPlaces)

	m.TotalProfitLoss = round(m.TotalProfitLoss, moneyPlaces)
	m.LargestWin = round(m.LargestWin, moneyPlaces)
	m.LargestLoss = round(m.LargestLoss, moneyPlaces)

	return m
}

// MaxDrawdown returns the largest peak-to-trough decline of the cash curve as
// a fraction. The running peak starts at initialCapital.
func MaxDrawdown(equity []models.EquitySnapshot, initialCapital float64) float64 {
	peak := initialCapital
	maxDD := 0.0
	for _, snap := range equity {
		if snap.Cash > peak {
			peak = snap.Cash
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - snap.Cash) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func totalReturn(initialCapital, finalCapital float64) float64 {
	if initialCapital == 0 {
		return 0
	}
	return (finalCapital - initialCapital) / initialCapital
}

func sharpeRatio(returns []float64) float64 {
	mu := mean(returns)
	sd := stdDev(returns, mu)
	if sd == 0 {
		return 0
	}
	return mu / sd * math.Sqrt(tradingDaysPerYear)
}

// sortinoRatio only penalises returns below zero
func sortinoRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var downside float64
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	dd := math.Sqrt(downside / float64(len(returns)-1))
	if dd == 0 {
		return 0
	}
	return mean(returns) / dd * math.Sqrt(tradingDaysPerYear)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// stdDev is the sample standard deviation (n-1 denominator)
func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	return math.Sqrt(sumSquaredDiff / float64(len(values)-1))
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
