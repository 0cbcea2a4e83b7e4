package reporting

import "time"

// Report represents one daily portfolio report across strategies.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Date        time.Time

	// One section per strategy, sorted by strategy name
	Strategies []StrategySection
}

// StrategySection contains one strategy's portfolio state.
type StrategySection struct {
	Strategy string

	// Snapshot is nil when the strategy has no reconciled row yet.
	Snapshot *SnapshotRow

	// Open positions sorted by (entry_date, symbol)
	OpenPositions []OpenPositionRow

	// Most recent closed trades, newest first
	RecentTrades []TradeRow
}

// SnapshotRow mirrors the reconciled daily snapshot.
type SnapshotRow struct {
	Date           time.Time
	Cash           float64
	PositionsValue float64
	TotalValue     float64

	DailyPnLPct      float64
	CumulativePnLPct float64

	BenchmarkCumulativePct float64
	AlphaPct               float64

	OpenPositions int
	ClosedToday   int

	// Nil when not computable
	SharpeRatio *float64
	MaxDrawdown *float64
	WinRate     *float64
}

// OpenPositionRow represents one open position in the report.
type OpenPositionRow struct {
	Symbol        string
	EntryDate     time.Time
	EntryPrice    float64
	Shares        float64
	PositionValue float64
	HoldDays      int

	// Zero when no quote was available at generation time.
	CurrentPrice float64
	PnLPct       float64
}

// TradeRow represents one closed trade in the ledger table.
type TradeRow struct {
	Symbol     string
	EntryDate  time.Time
	ExitDate   time.Time
	ExitReason string
	HoldDays   int
	PnL        float64
	PnLPct     float64
}
