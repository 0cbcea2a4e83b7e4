package domain

import "time"

// Position represents an open simulated holding. It is owned by the
// persistence store; the engine reads it by value during a single
// evaluation pass and never caches it across runs.
//
// Once opened, EntryPrice, Shares, PositionValue and EntryDate are
// immutable until close.
type Position struct {
	PositionID string // deterministic hash, see idhash
	Strategy   string // strategy mode, e.g. "us_conservative"
	Symbol     string

	// Entry
	EntryDate     time.Time // calendar date (UTC midnight)
	EntryPrice    float64
	Shares        float64  // (PositionValue - entry transaction cost) / EntryPrice
	PositionValue float64  // cash committed at entry (gross allocation)
	EntryScore    *float64 // composite score at entry (nullable)
	EntryRegime   string   // market regime at entry

	// Transient evaluation fields, populated by the exit evaluator for
	// the current cycle only. Never persisted.
	CurrentPrice  float64
	CurrentPnLPct float64
}

// HoldDays returns the number of calendar days the position has been held
// as of now. Same-day entries count as 0.
func (p *Position) HoldDays(now time.Time) int {
	entry := time.Date(p.EntryDate.Year(), p.EntryDate.Month(), p.EntryDate.Day(), 0, 0, 0, 0, time.UTC)
	cur := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(cur.Sub(entry).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// PnLPctAt returns the unrealized P&L percentage at the given price,
// measured as the pure price move from entry.
func (p *Position) PnLPctAt(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// PositionExit carries the fields written to a position when it closes.
type PositionExit struct {
	Date   time.Time
	Price  float64
	Reason string
	PnL    float64 // net of exit transaction cost
	PnLPct float64
	Regime string // market regime at exit
}
