package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

type candleKey struct {
	symbol string
	date   time.Time
}

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[candleKey]*domain.Candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[candleKey]*domain.Candle),
	}
}

// InsertBulk adds multiple candles. Fails the entire batch on a duplicate
// (symbol, date).
func (s *CandleStore) InsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[candleKey]struct{}, len(candles))
	for _, c := range candles {
		if c == nil || c.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := candleKey{c.Symbol, domain.Day(c.Date)}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, c := range candles {
		copy := *c
		copy.Date = domain.Day(c.Date)
		s.data[candleKey{c.Symbol, copy.Date}] = &copy
	}

	return nil
}

// LatestClose returns the close of the most recent candle for a symbol.
func (s *CandleStore) LatestClose(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Candle
	for _, c := range s.data {
		if c.Symbol != symbol {
			continue
		}
		if latest == nil || c.Date.After(latest.Date) {
			latest = c
		}
	}

	if latest == nil {
		return 0, storage.ErrNotFound
	}
	return latest.Close, nil
}

// RecentCloses returns up to limit closes for a symbol, newest first.
func (s *CandleStore) RecentCloses(_ context.Context, symbol string, limit int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Candle
	for _, c := range s.data {
		if c.Symbol == symbol {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	closes := make([]float64, len(matched))
	for i, c := range matched {
		closes[i] = c.Close
	}
	return closes, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
