package postgres

import (
	"context"
	"fmt"
	"time"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert appends a trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			trade_id, strategy, symbol, entry_date, entry_price, shares,
			position_value, exit_date, exit_price, exit_reason, hold_days,
			pnl, pnl_pct, entry_regime, exit_regime
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID,
		t.Strategy,
		t.Symbol,
		domain.Day(t.EntryDate),
		t.EntryPrice,
		t.Shares,
		t.PositionValue,
		domain.Day(t.ExitDate),
		t.ExitPrice,
		t.ExitReason,
		t.HoldDays,
		t.PnL,
		t.PnLPct,
		t.EntryRegime,
		t.ExitRegime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByStrategy retrieves all trades for a strategy, ordered by
// exit_date ASC, symbol ASC.
func (s *TradeStore) GetByStrategy(ctx context.Context, strategy string) ([]*domain.Trade, error) {
	query := `
		SELECT trade_id, strategy, symbol, entry_date, entry_price, shares,
		       position_value, exit_date, exit_price, exit_reason, hold_days,
		       pnl, pnl_pct, entry_regime, exit_regime
		FROM trades
		WHERE strategy = $1
		ORDER BY exit_date ASC, symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, strategy)
	if err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t := &domain.Trade{}
		err := rows.Scan(
			&t.TradeID, &t.Strategy, &t.Symbol, &t.EntryDate, &t.EntryPrice, &t.Shares,
			&t.PositionValue, &t.ExitDate, &t.ExitPrice, &t.ExitReason, &t.HoldDays,
			&t.PnL, &t.PnLPct, &t.EntryRegime, &t.ExitRegime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.EntryDate = domain.Day(t.EntryDate)
		t.ExitDate = domain.Day(t.ExitDate)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}

	return trades, nil
}

// RealizedPnLTotal returns the sum of net realized P&L over all trades
// for a strategy.
func (s *TradeStore) RealizedPnLTotal(ctx context.Context, strategy string) (float64, error) {
	query := `SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE strategy = $1`

	var total float64
	if err := s.pool.QueryRow(ctx, query, strategy).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum realized pnl: %w", err)
	}
	return total, nil
}

// SymbolsClosedOn returns the distinct symbols closed on the given
// calendar date.
func (s *TradeStore) SymbolsClosedOn(ctx context.Context, strategy string, date time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM trades
		WHERE strategy = $1 AND exit_date = $2
		ORDER BY symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, strategy, domain.Day(date))
	if err != nil {
		return nil, fmt.Errorf("get symbols closed on date: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}

	return symbols, nil
}
