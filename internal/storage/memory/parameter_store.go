package memory

import (
	"context"
	"sync"

	"paper-trading-lab/internal/storage"
)

type paramKey struct {
	strategy string
	key      string
}

// ParameterStore is an in-memory implementation of storage.ParameterStore.
type ParameterStore struct {
	mu   sync.RWMutex
	data map[paramKey]float64
}

// NewParameterStore creates a new in-memory parameter store.
func NewParameterStore() *ParameterStore {
	return &ParameterStore{
		data: make(map[paramKey]float64),
	}
}

// Get retrieves a parameter value. Returns ErrNotFound if unset.
func (s *ParameterStore) Get(_ context.Context, strategy, key string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.data[paramKey{strategy, key}]
	if !exists {
		return 0, storage.ErrNotFound
	}
	return v, nil
}

// Set writes a parameter value, overwriting any existing one.
func (s *ParameterStore) Set(_ context.Context, strategy, key string, value float64) error {
	if strategy == "" || key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[paramKey{strategy, key}] = value
	return nil
}

var _ storage.ParameterStore = (*ParameterStore)(nil)
