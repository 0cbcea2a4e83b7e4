package postgres

import (
	"context"
	"fmt"

	"paper-trading-lab/internal/storage"
)

// ParameterStore implements storage.ParameterStore using PostgreSQL.
type ParameterStore struct {
	pool *Pool
}

// NewParameterStore creates a new ParameterStore.
func NewParameterStore(pool *Pool) *ParameterStore {
	return &ParameterStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ParameterStore = (*ParameterStore)(nil)

// Get retrieves a parameter value. Returns ErrNotFound if unset.
func (s *ParameterStore) Get(ctx context.Context, strategy, key string) (float64, error) {
	query := `SELECT value FROM strategy_parameters WHERE strategy = $1 AND key = $2`

	var value float64
	err := s.pool.QueryRow(ctx, query, strategy, key).Scan(&value)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get parameter: %w", err)
	}
	return value, nil
}

// Set writes a parameter value, overwriting any existing one.
func (s *ParameterStore) Set(ctx context.Context, strategy, key string, value float64) error {
	if strategy == "" || key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO strategy_parameters (strategy, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (strategy, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, strategy, key, value); err != nil {
		return fmt.Errorf("set parameter: %w", err)
	}
	return nil
}
