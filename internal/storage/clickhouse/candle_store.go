package clickhouse

import (
	"context"
	"fmt"
	"time"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds multiple candles. Fails the entire batch on a duplicate
// (symbol, date).
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol string
		date   time.Time
	}
	seen := make(map[key]struct{})
	for _, c := range candles {
		k := key{c.Symbol, domain.Day(c.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, c := range candles {
		exists, err := s.exists(ctx, c.Symbol, domain.Day(c.Date))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_candles (
			symbol, date, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, domain.Day(c.Date),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// LatestClose returns the close of the most recent candle for a symbol.
func (s *CandleStore) LatestClose(ctx context.Context, symbol string) (float64, error) {
	query := `
		SELECT close FROM daily_candles
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`

	var close float64
	if err := s.conn.QueryRow(ctx, query, symbol).Scan(&close); err != nil {
		return 0, storage.ErrNotFound
	}
	return close, nil
}

// RecentCloses returns up to limit closes for a symbol, newest first.
func (s *CandleStore) RecentCloses(ctx context.Context, symbol string, limit int) ([]float64, error) {
	query := `
		SELECT close FROM daily_candles
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent closes: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var close float64
		if err := rows.Scan(&close); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		closes = append(closes, close)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closes: %w", err)
	}

	if len(closes) == 0 {
		return nil, storage.ErrNotFound
	}
	return closes, nil
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, symbol string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM daily_candles
		WHERE symbol = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
