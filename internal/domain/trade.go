package domain

import "time"

// Trade is the immutable record of a closed position. Created exactly
// once per close and never mutated afterward; the trade ledger is the
// sole source of truth for realized P&L aggregation.
type Trade struct {
	TradeID  string // deterministic hash, see idhash
	Strategy string
	Symbol   string

	// Entry
	EntryDate     time.Time
	EntryPrice    float64
	Shares        float64
	PositionValue float64 // cash committed at entry

	// Exit
	ExitDate   time.Time
	ExitPrice  float64
	ExitReason string
	HoldDays   int

	// Outcome
	PnL    float64 // net of exit transaction cost
	PnLPct float64 // PnL / PositionValue * 100

	// Market regime bookkeeping
	EntryRegime string
	ExitRegime  string
}

// Win reports whether the trade realized a positive net P&L.
func (t *Trade) Win() bool {
	return t.PnL > 0
}

// Exit reason codes, in evaluation priority order.
const (
	// Hard exits: fire unconditionally, ignoring any AI override.
	ExitReasonStopLoss        = "STOP_LOSS"
	ExitReasonRegimeChange    = "REGIME_CHANGE"
	ExitReasonAbsoluteMaxHold = "ABSOLUTE_MAX_HOLD"

	// Soft exits: eligible for AI override before being finalized.
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonScoreDrop  = "SCORE_DROP"
	ExitReasonMaxHold    = "MAX_HOLD"
)

// IsHardExit reports whether the reason is a hard exit that cannot be
// overridden.
func IsHardExit(reason string) bool {
	switch reason {
	case ExitReasonStopLoss, ExitReasonRegimeChange, ExitReasonAbsoluteMaxHold:
		return true
	}
	return false
}
