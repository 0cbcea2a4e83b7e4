package postgres

import (
	"context"
	"fmt"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Open records a new open position. Returns ErrDuplicateKey if the
// position_id already exists.
func (s *PositionStore) Open(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (
			position_id, strategy, symbol, entry_date, entry_price,
			shares, position_value, entry_score, entry_regime, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'open')
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.Strategy,
		p.Symbol,
		domain.Day(p.EntryDate),
		p.EntryPrice,
		p.Shares,
		p.PositionValue,
		p.EntryScore,
		p.EntryRegime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("open position: %w", err)
	}
	return nil
}

// Close marks an open position closed with the given exit fields.
// Returns ErrNotFound if no open position has this ID.
func (s *PositionStore) Close(ctx context.Context, positionID string, exit domain.PositionExit) error {
	query := `
		UPDATE positions
		SET status = 'closed',
		    exit_date = $2,
		    exit_price = $3,
		    exit_reason = $4,
		    pnl = $5,
		    pnl_pct = $6,
		    exit_regime = $7
		WHERE position_id = $1 AND status = 'open'
	`

	tag, err := s.pool.Exec(ctx, query,
		positionID,
		domain.Day(exit.Date),
		exit.Price,
		exit.Reason,
		exit.PnL,
		exit.PnLPct,
		exit.Regime,
	)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetOpen retrieves all open positions for a strategy, ordered by
// entry_date ASC, symbol ASC.
func (s *PositionStore) GetOpen(ctx context.Context, strategy string) ([]*domain.Position, error) {
	query := `
		SELECT position_id, strategy, symbol, entry_date, entry_price,
		       shares, position_value, entry_score, entry_regime
		FROM positions
		WHERE strategy = $1 AND status = 'open'
		ORDER BY entry_date ASC, symbol ASC
	`

	rows, err := s.pool.Query(ctx, query, strategy)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p := &domain.Position{}
		err := rows.Scan(
			&p.PositionID, &p.Strategy, &p.Symbol, &p.EntryDate, &p.EntryPrice,
			&p.Shares, &p.PositionValue, &p.EntryScore, &p.EntryRegime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.EntryDate = domain.Day(p.EntryDate)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}

	return positions, nil
}

// OpenValueTotal returns the sum of position_value over currently open
// positions for a strategy.
func (s *PositionStore) OpenValueTotal(ctx context.Context, strategy string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(position_value), 0)
		FROM positions
		WHERE strategy = $1 AND status = 'open'
	`

	var total float64
	if err := s.pool.QueryRow(ctx, query, strategy).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum open position value: %w", err)
	}
	return total, nil
}
