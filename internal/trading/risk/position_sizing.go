package risk

import (
	"math"

	"github.com/Alias1177/Backtester/models"
)

// ProtectiveLevels holds stop-loss and take-profit prices for a new position
type ProtectiveLevels struct {
	StopLoss        float64 `json:"stop_loss"`
	TakeProfit      float64 `json:"take_profit"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
}

// SharesFor returns how many whole shares a position may hold when it can
// commit at most fraction of cash at price
func SharesFor(cash, fraction, price float64) int64 {
	if price <= 0 || cash <= 0 || fraction <= 0 {
		return 0
	}
	return int64(math.Floor(cash * fraction / price))
}

// CostWithFees is the cash paid to buy shares at price, fees included.
// It applies to long entries and short covers.
func CostWithFees(shares int64, price, cost float64) float64 {
	return float64(shares) * price * (1 + cost)
}

// ProceedsAfterFees is the cash received for selling shares at price, net of fees.
// It applies to long exits and short entries.
func ProceedsAfterFees(shares int64, price, cost float64) float64 {
	return float64(shares) * price * (1 - cost)
}

// CanAfford reports whether cash covers a long entry
func CanAfford(shares int64, price, cost, cash float64) bool {
	return CostWithFees(shares, price, cost) <= cash
}

// DetermineStopLoss places a stop atrMultiplier ATRs away from price, below for
// longs and above for shorts
func DetermineStopLoss(price, atr, atrMultiplier float64, direction models.Direction) float64 {
	if direction == models.Short {
		return price + atr*atrMultiplier
	}
	return price - atr*atrMultiplier
}

// Levels derives a stop from the ATR and a target at rewardRatio times the risk
func Levels(price, atr, atrMultiplier, rewardRatio float64, direction models.Direction) ProtectiveLevels {
	stop := DetermineStopLoss(price, atr, atrMultiplier, direction)
	risk := math.Abs(price - stop)

	target := price + risk*rewardRatio
	if direction == models.Short {
		target = price - risk*rewardRatio
	}

	ratio := 0.0
	if risk > 0 {
		ratio = math.Abs(target-price) / risk
	}

	return ProtectiveLevels{
		StopLoss:        stop,
		TakeProfit:      target,
		RiskRewardRatio: ratio,
	}
}
