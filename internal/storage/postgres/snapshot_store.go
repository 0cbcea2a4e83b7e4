package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	strategy, snapshot_date, cash, positions_value, total_value,
	daily_pnl, daily_pnl_pct, cumulative_pnl, cumulative_pnl_pct,
	benchmark_daily_pct, benchmark_cumulative_pct, alpha_pct,
	open_positions, closed_today, sharpe_ratio, max_drawdown, win_rate
`

// Upsert writes a snapshot keyed by (strategy, date): overwrite if a row
// for the day already exists, otherwise append.
func (s *SnapshotStore) Upsert(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.Strategy == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO portfolio_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (strategy, snapshot_date) DO UPDATE SET
			cash = EXCLUDED.cash,
			positions_value = EXCLUDED.positions_value,
			total_value = EXCLUDED.total_value,
			daily_pnl = EXCLUDED.daily_pnl,
			daily_pnl_pct = EXCLUDED.daily_pnl_pct,
			cumulative_pnl = EXCLUDED.cumulative_pnl,
			cumulative_pnl_pct = EXCLUDED.cumulative_pnl_pct,
			benchmark_daily_pct = EXCLUDED.benchmark_daily_pct,
			benchmark_cumulative_pct = EXCLUDED.benchmark_cumulative_pct,
			alpha_pct = EXCLUDED.alpha_pct,
			open_positions = EXCLUDED.open_positions,
			closed_today = EXCLUDED.closed_today,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			win_rate = EXCLUDED.win_rate
	`

	_, err := s.pool.Exec(ctx, query,
		snap.Strategy,
		domain.Day(snap.Date),
		snap.Cash,
		snap.PositionsValue,
		snap.TotalValue,
		snap.DailyPnL,
		snap.DailyPnLPct,
		snap.CumulativePnL,
		snap.CumulativePnLPct,
		snap.BenchmarkDailyPct,
		snap.BenchmarkCumulativePct,
		snap.AlphaPct,
		snap.OpenPositions,
		snap.ClosedToday,
		snap.SharpeRatio,
		snap.MaxDrawdown,
		snap.WinRate,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recent snapshot for a strategy.
func (s *SnapshotStore) GetLatest(ctx context.Context, strategy string) (*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshots
		WHERE strategy = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, strategy))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snap, nil
}

// GetLatestBefore retrieves the most recent snapshot strictly before date.
func (s *SnapshotStore) GetLatestBefore(ctx context.Context, strategy string, date time.Time) (*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM portfolio_snapshots
		WHERE strategy = $1 AND snapshot_date < $2
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, strategy, domain.Day(date)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot before date: %w", err)
	}
	return snap, nil
}

// GetWindowBefore retrieves up to limit snapshots strictly before date,
// ordered by date ASC.
func (s *SnapshotStore) GetWindowBefore(ctx context.Context, strategy string, date time.Time, limit int) ([]*domain.Snapshot, error) {
	// Inner query picks the most recent rows; outer restores ASC order.
	query := `
		SELECT ` + snapshotColumns + `
		FROM (
			SELECT ` + snapshotColumns + `
			FROM portfolio_snapshots
			WHERE strategy = $1 AND snapshot_date < $2
			ORDER BY snapshot_date DESC
			LIMIT $3
		) recent
		ORDER BY snapshot_date ASC
	`

	rows, err := s.pool.Query(ctx, query, strategy, domain.Day(date), limit)
	if err != nil {
		return nil, fmt.Errorf("get snapshot window: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snapshots, nil
}

// scanSnapshot scans one snapshot row from a pgx.Row or pgx.Rows.
func scanSnapshot(row pgx.Row) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{}
	err := row.Scan(
		&snap.Strategy, &snap.Date, &snap.Cash, &snap.PositionsValue, &snap.TotalValue,
		&snap.DailyPnL, &snap.DailyPnLPct, &snap.CumulativePnL, &snap.CumulativePnLPct,
		&snap.BenchmarkDailyPct, &snap.BenchmarkCumulativePct, &snap.AlphaPct,
		&snap.OpenPositions, &snap.ClosedToday, &snap.SharpeRatio, &snap.MaxDrawdown, &snap.WinRate,
	)
	if err != nil {
		return nil, err
	}
	snap.Date = domain.Day(snap.Date)
	return snap, nil
}
