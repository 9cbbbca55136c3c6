package backtest

import (
	"math/rand"
	"sort"

	"github.com/Alias1177/Backtester/models"
)

// minMonteCarloTrades is the smallest trade ledger worth resampling
const minMonteCarloTrades = 10

// MonteCarlo bootstraps the realized trade P&L: each simulation draws as many
// trades as the ledger holds, with replacement, and replays them against the
// initial capital. The spread of outcomes shows how much the result depends on
// which trades happened to occur. The seed makes runs reproducible. It returns
// nil when there are too few trades or simulations.
func MonteCarlo(result *models.BacktestResult, simulations int, seed int64) *models.MonteCarloResults {
	if result == nil || len(result.Trades) < minMonteCarloTrades || simulations < 1 {
		return nil
	}

	pnl := make([]float64, len(result.Trades))
	for i, t := range result.Trades {
		pnl[i] = t.ProfitLoss
	}

	initialBalance := result.InitialCapital
	rng := rand.New(rand.NewSource(seed))

	type outcome struct {
		totalReturn float64
		maxDrawdown float64
	}
	outcomes := make([]outcome, simulations)

	for sim := 0; sim < simulations; sim++ {
		balance := initialBalance
		peak := initialBalance
		maxDD := 0.0
		for range pnl {
			balance += pnl[rng.Intn(len(pnl))]
			if balance > peak {
				peak = balance
			}
			if peak > 0 {
				if dd := (peak - balance) / peak; dd > maxDD {
					maxDD = dd
				}
			}
		}

		outcomes[sim] = outcome{
			totalReturn: totalReturn(initialBalance, balance) * 100,
			maxDrawdown: maxDD * 100,
		}
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].totalReturn < outcomes[j].totalReturn
	})

	var sumDrawdown, worstDrawdown float64
	profitable := 0
	for _, o := range outcomes {
		sumDrawdown += o.maxDrawdown
		if o.maxDrawdown > worstDrawdown {
			worstDrawdown = o.maxDrawdown
		}
		if o.totalReturn > 0 {
			profitable++
		}
	}

	at := func(num, den int) float64 {
		return round(outcomes[simulations*num/den].totalReturn, percentPlaces)
	}

	return &models.MonteCarloResults{
		Simulations: simulations,
		Returns: models.MonteCarloPercentiles{
			Worst:  round(outcomes[0].totalReturn, percentPlaces),
			P10:    at(1, 10),
			P25:    at(1, 4),
			Median: at(1, 2),
			P75:    at(3, 4),
			P90:    at(9, 10),
			Best:   round(outcomes[simulations-1].totalReturn, percentPlaces),
		},
		AverageDrawdown:     round(sumDrawdown/float64(simulations), percentPlaces),
		WorstDrawdown:       round(worstDrawdown, percentPlaces),
		ProbabilityOfProfit: round(float64(profitable)/float64(simulations)*100, percentPlaces),
	}
}
