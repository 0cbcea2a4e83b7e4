package domain

// StrategyParameters is the immutable per-strategy parameter set, fetched
// once per run and passed by value through the call chain. Values outside
// the documented bounds are clamped by the params package at resolution
// time.
type StrategyParameters struct {
	StopLossPct         float64 // hard exit when pnl_pct <= this (negative)
	TakeProfitPct       float64 // soft exit when pnl_pct >= this
	ScoreExitThreshold  float64 // soft exit when supplied score < this
	MaxHoldDays         int     // soft exit ceiling
	AbsoluteMaxHoldDays int     // hard exit ceiling, not overridable
	MaxPositions        int
	MDDWarningPct       float64 // half-size below this drawdown (negative)
	MDDStopNewPct       float64 // no new opens below this drawdown (negative)
}
