package storage

import (
	"context"
	"time"

	"paper-trading-lab/internal/domain"
)

// PositionStore provides access to positions storage. Positions mutate
// exactly once: open then close. Entry fields are never updated.
type PositionStore interface {
	// Open records a new open position. Returns ErrDuplicateKey if the
	// position_id already exists.
	Open(ctx context.Context, p *domain.Position) error

	// Close marks an open position closed with the given exit fields.
	// Returns ErrNotFound if no open position has this ID.
	Close(ctx context.Context, positionID string, exit domain.PositionExit) error

	// GetOpen retrieves all open positions for a strategy, ordered by
	// entry_date ASC, symbol ASC.
	GetOpen(ctx context.Context, strategy string) ([]*domain.Position, error)

	// OpenValueTotal returns the sum of position_value over currently
	// open positions for a strategy.
	OpenValueTotal(ctx context.Context, strategy string) (float64, error)
}

// TradeStore provides access to the append-only closed-trade ledger.
type TradeStore interface {
	// Insert appends a trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByStrategy retrieves all trades for a strategy, ordered by
	// exit_date ASC, symbol ASC.
	GetByStrategy(ctx context.Context, strategy string) ([]*domain.Trade, error)

	// RealizedPnLTotal returns the sum of net realized P&L over all
	// trades for a strategy.
	RealizedPnLTotal(ctx context.Context, strategy string) (float64, error)

	// SymbolsClosedOn returns the distinct symbols closed on the given
	// calendar date, for same-day re-entry prevention.
	SymbolsClosedOn(ctx context.Context, strategy string, date time.Time) ([]string, error)
}

// SnapshotStore provides access to portfolio snapshots keyed by
// (strategy, date).
type SnapshotStore interface {
	// Upsert writes a snapshot, overwriting any existing row for the
	// same (strategy, date).
	Upsert(ctx context.Context, s *domain.Snapshot) error

	// GetLatest retrieves the most recent snapshot for a strategy.
	// Returns ErrNotFound if none exists.
	GetLatest(ctx context.Context, strategy string) (*domain.Snapshot, error)

	// GetLatestBefore retrieves the most recent snapshot strictly before
	// the given date. Returns ErrNotFound if none exists.
	GetLatestBefore(ctx context.Context, strategy string, date time.Time) (*domain.Snapshot, error)

	// GetWindowBefore retrieves up to limit snapshots strictly before the
	// given date, ordered by date ASC (the rolling risk-metric window).
	GetWindowBefore(ctx context.Context, strategy string, date time.Time, limit int) ([]*domain.Snapshot, error)
}

// ParameterStore provides per-strategy parameter overrides as a key-value
// source. Missing keys fall back to hardcoded defaults in the params
// package.
type ParameterStore interface {
	// Get retrieves a parameter value. Returns ErrNotFound if unset.
	Get(ctx context.Context, strategy, key string) (float64, error)

	// Set writes a parameter value, overwriting any existing one.
	Set(ctx context.Context, strategy, key string, value float64) error
}

// CandleStore provides access to daily candles backing the quote
// fallback chain.
type CandleStore interface {
	// InsertBulk adds multiple candles. Fails the entire batch on a
	// duplicate (symbol, date).
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// LatestClose returns the close of the most recent candle for a
	// symbol. Returns ErrNotFound if the symbol has no candles.
	LatestClose(ctx context.Context, symbol string) (float64, error)

	// RecentCloses returns up to limit closes for a symbol, newest
	// first. Returns ErrNotFound if the symbol has no candles.
	RecentCloses(ctx context.Context, symbol string, limit int) ([]float64, error)
}
