package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Alias1177/Backtester/models"
)

// FormatResults creates a human-readable summary of a backtest
func FormatResults(result *models.BacktestResult) string {
	if result == nil {
		return "No backtest results available"
	}

	m := result.Metrics
	var b strings.Builder

	b.WriteString("\n===== BACKTEST RESULTS =====\n")
	if result.BacktestID != "" {
		fmt.Fprintf(&b, "Backtest ID: %s\n", result.BacktestID)
	}
	fmt.Fprintf(&b, "Strategy: %s\n", result.Strategy)
	fmt.Fprintf(&b, "Initial capital: %.2f\n", result.InitialCapital)
	fmt.Fprintf(&b, "Final capital: %.2f\n", result.FinalCapital)
	fmt.Fprintf(&b, "Total return: %.2f%%\n", result.TotalReturn)
	fmt.Fprintf(&b, "Total trades: %d\n", result.TotalTrades)
	fmt.Fprintf(&b, "Winning trades: %d (%.2f%%)\n", m.WinningTrades, m.WinRate)
	fmt.Fprintf(&b, "Losing trades: %d\n", m.LosingTrades)
	fmt.Fprintf(&b, "Average win: %.2f | Average loss: %.2f\n", m.AverageWin, m.AverageLoss)
	fmt.Fprintf(&b, "Largest win: %.2f | Largest loss: %.2f\n", m.LargestWin, m.LargestLoss)
	fmt.Fprintf(&b, "Profit factor: %.4f\n", m.ProfitFactor)
	fmt.Fprintf(&b, "Sharpe ratio: %.4f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "Sortino ratio: %.4f\n", m.SortinoRatio)
	fmt.Fprintf(&b, "Maximum drawdown: %.2f%%\n", m.MaxDrawdown)
	fmt.Fprintf(&b, "Average holding period: %.2f days\n", m.AvgHoldingDays)
	fmt.Fprintf(&b, "Max consecutive wins: %d\n", m.MaxConsecutiveWins)
	fmt.Fprintf(&b, "Max consecutive losses: %d\n", m.MaxConsecutiveLosses)

	if perSymbol := pnlBySymbol(result.Trades); len(perSymbol) > 0 {
		b.WriteString("\nP&L by symbol:\n")

		symbols := make([]string, 0, len(perSymbol))
		for s := range perSymbol {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		for _, s := range symbols {
			sign := ""
			if perSymbol[s] > 0 {
				sign = "+"
			}
			fmt.Fprintf(&b, "- %s: %s%.2f\n", s, sign, perSymbol[s])
		}
	}

	if len(result.OpenPositions) > 0 {
		b.WriteString("\nPositions left open (no final price):\n")
		for _, p := range result.OpenPositions {
			fmt.Fprintf(&b, "- %s %s %d @ %.2f since %s\n", p.Symbol, p.Direction, p.Shares, p.EntryPrice, p.EntryDate)
		}
	}

	return b.String()
}

// FormatMonteCarlo renders Monte Carlo percentiles
func FormatMonteCarlo(mc *models.MonteCarloResults) string {
	if mc == nil {
		return "Not enough trades for Monte Carlo simulation"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n===== MONTE CARLO (%d runs) =====\n", mc.Simulations)
	fmt.Fprintf(&b, "Returns: worst %.2f%% | p10 %.2f%% | p25 %.2f%% | median %.2f%% | p75 %.2f%% | p90 %.2f%% | best %.2f%%\n",
		mc.Returns.Worst, mc.Returns.P10, mc.Returns.P25, mc.Returns.Median, mc.Returns.P75, mc.Returns.P90, mc.Returns.Best)
	fmt.Fprintf(&b, "Average drawdown: %.2f%% | Worst drawdown: %.2f%%\n", mc.AverageDrawdown, mc.WorstDrawdown)
	fmt.Fprintf(&b, "Probability of profit: %.2f%%\n", mc.ProbabilityOfProfit)
	return b.String()
}

func pnlBySymbol(trades []models.Trade) map[string]float64 {
	out := make(map[string]float64)
	for _, t := range trades {
		out[t.Symbol] += t.ProfitLoss
	}
	return out
}
