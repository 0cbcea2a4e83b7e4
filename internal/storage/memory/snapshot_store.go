package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/storage"
)

type snapshotKey struct {
	strategy string
	date     time.Time
}

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[snapshotKey]*domain.Snapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[snapshotKey]*domain.Snapshot),
	}
}

// Upsert writes a snapshot, overwriting any row for the same
// (strategy, date).
func (s *SnapshotStore) Upsert(_ context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.Strategy == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *snap
	copy.Date = domain.Day(snap.Date)
	s.data[snapshotKey{snap.Strategy, copy.Date}] = &copy
	return nil
}

// GetLatest retrieves the most recent snapshot for a strategy.
func (s *SnapshotStore) GetLatest(_ context.Context, strategy string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Snapshot
	for _, snap := range s.data {
		if snap.Strategy != strategy {
			continue
		}
		if latest == nil || snap.Date.After(latest.Date) {
			latest = snap
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// GetLatestBefore retrieves the most recent snapshot strictly before date.
func (s *SnapshotStore) GetLatestBefore(_ context.Context, strategy string, date time.Time) (*domain.Snapshot, error) {
	day := domain.Day(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Snapshot
	for _, snap := range s.data {
		if snap.Strategy != strategy || !snap.Date.Before(day) {
			continue
		}
		if latest == nil || snap.Date.After(latest.Date) {
			latest = snap
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// GetWindowBefore retrieves up to limit snapshots strictly before date,
// ordered by date ASC.
func (s *SnapshotStore) GetWindowBefore(_ context.Context, strategy string, date time.Time, limit int) ([]*domain.Snapshot, error) {
	day := domain.Day(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Snapshot
	for _, snap := range s.data {
		if snap.Strategy != strategy || !snap.Date.Before(day) {
			continue
		}
		copy := *snap
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}

	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
