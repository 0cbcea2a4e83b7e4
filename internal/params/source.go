package params

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/storage"
)

// StoreSource adapts a storage.ParameterStore to the Source interface.
// Store errors other than not-found are logged and reported as absent so
// resolution degrades to defaults instead of failing the run.
type StoreSource struct {
	store storage.ParameterStore
	log   zerolog.Logger
}

// NewStoreSource creates a StoreSource.
func NewStoreSource(store storage.ParameterStore, log zerolog.Logger) *StoreSource {
	return &StoreSource{store: store, log: log}
}

// Compile-time interface check.
var _ Source = (*StoreSource)(nil)

// Lookup fetches one parameter value from the store.
func (s *StoreSource) Lookup(ctx context.Context, strategy, key string) (float64, bool) {
	value, err := s.store.Get(ctx, strategy, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).
				Str("strategy", strategy).
				Str("key", key).
				Msg("parameter lookup failed, using default")
		}
		return 0, false
	}
	return value, true
}

// StaticSource serves parameters from a fixed map keyed by
// strategy then parameter key. Used in tests.
type StaticSource map[string]map[string]float64

// Compile-time interface check.
var _ Source = (StaticSource)(nil)

// Lookup fetches one parameter value from the map.
func (s StaticSource) Lookup(_ context.Context, strategy, key string) (float64, bool) {
	byKey, ok := s[strategy]
	if !ok {
		return 0, false
	}
	v, ok := byKey[key]
	return v, ok
}
