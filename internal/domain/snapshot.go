package domain

import "time"

// Snapshot is one portfolio row per (strategy, date). Upserted so repeated
// same-day runs overwrite rather than duplicate. Snapshots are derived
// aggregates recomputed from positions and trades, not independently
// authoritative; in particular Cash is always recomputed from first
// principles, never carried forward incrementally.
type Snapshot struct {
	Strategy string
	Date     time.Time // calendar date (UTC midnight)

	Cash           float64
	PositionsValue float64
	TotalValue     float64 // Cash + PositionsValue

	DailyPnL         float64
	DailyPnLPct      float64
	CumulativePnL    float64 // TotalValue - initial capital
	CumulativePnLPct float64

	BenchmarkDailyPct      float64
	BenchmarkCumulativePct float64
	AlphaPct               float64 // portfolio cumulative pct - benchmark cumulative pct

	OpenPositions int
	ClosedToday   int

	// Rolling risk metrics; nil when not computable (e.g. fewer than 5
	// daily returns for Sharpe, or no closed trades for win rate).
	SharpeRatio *float64
	MaxDrawdown *float64 // peak-to-trough, negative percentage
	WinRate     *float64 // wins / total trades * 100
}

// Market regimes supplied by the upstream pipeline.
const (
	RegimeBull    = "bull"
	RegimeNeutral = "neutral"
	RegimeBear    = "bear"
	RegimeCrisis  = "crisis"
)
