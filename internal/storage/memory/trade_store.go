package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Insert appends a trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	return nil
}

// GetByStrategy retrieves all trades for a strategy, ordered by
// exit_date ASC, symbol ASC.
func (s *TradeStore) GetByStrategy(_ context.Context, strategy string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Strategy == strategy {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ExitDate.Equal(result[j].ExitDate) {
			return result[i].ExitDate.Before(result[j].ExitDate)
		}
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// RealizedPnLTotal returns the sum of net realized P&L for a strategy.
func (s *TradeStore) RealizedPnLTotal(_ context.Context, strategy string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, t := range s.data {
		if t.Strategy == strategy {
			total += t.PnL
		}
	}
	return total, nil
}

// SymbolsClosedOn returns the distinct symbols closed on the given date.
func (s *TradeStore) SymbolsClosedOn(_ context.Context, strategy string, date time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, t := range s.data {
		if t.Strategy == strategy && domain.SameDay(t.ExitDate, date) {
			seen[t.Symbol] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	return symbols, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
