// Package metrics computes rolling portfolio risk metrics from equity
// curves and the closed-trade ledger.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"paper-trading-lab/internal/domain"
)

// TradingDaysPerYear is the annualization factor for daily returns.
const TradingDaysPerYear = 252

// MinSharpeSamples is the minimum number of daily returns required before
// a Sharpe ratio is reported.
const MinSharpeSamples = 5

// DailyReturns converts an equity curve into simple daily returns.
// Points with a non-positive predecessor are skipped to avoid dividing
// by corrupted values.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

// MaxDrawdown calculates the worst peak-to-trough decline over an equity
// curve, expressed as a negative percentage. Returns 0 for flat or
// monotonically rising curves.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	maxDrawdown := 0.0

	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		drawdown := (v - peak) / peak * 100
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}

// SharpeRatio computes the annualized Sharpe ratio from daily returns:
// mean excess return over the daily risk-free rate, divided by the sample
// standard deviation, scaled by sqrt(252). Returns nil when fewer than
// MinSharpeSamples returns are available or the variance is zero.
func SharpeRatio(dailyReturns []float64, riskFreeDaily float64) *float64 {
	if len(dailyReturns) < MinSharpeSamples {
		return nil
	}

	excess := make([]float64, len(dailyReturns))
	for i, r := range dailyReturns {
		excess[i] = r - riskFreeDaily
	}

	mean := stat.Mean(excess, nil)
	stddev := stat.StdDev(excess, nil) // sample stddev (n-1 denominator)
	if stddev == 0 || math.IsNaN(stddev) {
		return nil
	}

	sharpe := mean / stddev * math.Sqrt(TradingDaysPerYear)
	return &sharpe
}

// WinRate computes wins / total trades * 100 over the full trade ledger.
// Returns nil when the ledger is empty.
func WinRate(trades []*domain.Trade) *float64 {
	if len(trades) == 0 {
		return nil
	}

	wins := 0
	for _, t := range trades {
		if t.Win() {
			wins++
		}
	}

	rate := float64(wins) / float64(len(trades)) * 100
	return &rate
}
