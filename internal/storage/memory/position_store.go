package memory

import (
	"context"
	"sort"
	"sync"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

// positionRow pairs a position with its closed state and exit fields.
type positionRow struct {
	position domain.Position
	closed   bool
	exit     domain.PositionExit
}

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*positionRow // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*positionRow),
	}
}

// Open records a new open position. Returns ErrDuplicateKey if the
// position_id already exists.
func (s *PositionStore) Open(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.PositionID] = &positionRow{position: *p}
	return nil
}

// Close marks an open position closed. Returns ErrNotFound if no open
// position has this ID.
func (s *PositionStore) Close(_ context.Context, positionID string, exit domain.PositionExit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.data[positionID]
	if !exists || row.closed {
		return storage.ErrNotFound
	}

	row.closed = true
	row.exit = exit
	return nil
}

// GetOpen retrieves all open positions for a strategy, ordered by
// entry_date ASC, symbol ASC.
func (s *PositionStore) GetOpen(_ context.Context, strategy string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, row := range s.data {
		if row.closed || row.position.Strategy != strategy {
			continue
		}
		copy := row.position
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].EntryDate.Equal(result[j].EntryDate) {
			return result[i].EntryDate.Before(result[j].EntryDate)
		}
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// OpenValueTotal returns the sum of position_value over open positions.
func (s *PositionStore) OpenValueTotal(_ context.Context, strategy string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, row := range s.data {
		if !row.closed && row.position.Strategy == strategy {
			total += row.position.PositionValue
		}
	}
	return total, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
