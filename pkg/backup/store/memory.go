package store

import (
	"context"
	"slices"
	"sync"

	"mercator-hq/backstop/pkg/backup"
)

// MemoryStore implements backup.Store using in-memory maps.
// It is intended for tests and dry runs; nothing survives the process.
type MemoryStore struct {
	backups map[backup.Identifier]backup.Status
	markers map[int]map[backup.RangeMarker]struct{}
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		backups: make(map[backup.Identifier]backup.Status),
		markers: make(map[int]map[backup.RangeMarker]struct{}),
	}
}

// List returns the statuses matched by the wildcard, sorted by identifier.
func (s *MemoryStore) List(ctx context.Context, wildcard backup.Wildcard) ([]backup.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, backup.NewStoreError("memory", "list", backup.ErrStoreClosed)
	}

	results := []backup.Status{}
	for id, status := range s.backups {
		if wildcard.Matches(id) {
			results = append(results, cloneStatus(status))
		}
	}

	slices.SortFunc(results, compareStatuses)
	return results, nil
}

// Save creates or replaces a status.
func (s *MemoryStore) Save(ctx context.Context, status backup.Status) error {
	if err := status.Validate(); err != nil {
		return backup.NewStoreError("memory", "save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return backup.NewStoreError("memory", "save", backup.ErrStoreClosed)
	}

	s.backups[status.ID] = cloneStatus(status)
	return nil
}

// Delete removes a backup if it exists.
func (s *MemoryStore) Delete(ctx context.Context, id backup.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return backup.NewStoreError("memory", "delete", backup.ErrStoreClosed)
	}

	delete(s.backups, id)
	return nil
}

// RangeMarkers returns the markers of a partition sorted by checkpoint and kind.
func (s *MemoryStore) RangeMarkers(ctx context.Context, partition int) ([]backup.RangeMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, backup.NewStoreError("memory", "list_markers", backup.ErrStoreClosed)
	}

	markers := []backup.RangeMarker{}
	for m := range s.markers[partition] {
		markers = append(markers, m)
	}

	slices.SortFunc(markers, backup.CompareMarkers)
	return markers, nil
}

// StoreRangeMarker adds a marker to a partition.
func (s *MemoryStore) StoreRangeMarker(ctx context.Context, partition int, marker backup.RangeMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return backup.NewStoreError("memory", "store_marker", backup.ErrStoreClosed)
	}

	if s.markers[partition] == nil {
		s.markers[partition] = make(map[backup.RangeMarker]struct{})
	}
	s.markers[partition][marker] = struct{}{}
	return nil
}

// DeleteRangeMarker removes a marker from a partition if it exists.
func (s *MemoryStore) DeleteRangeMarker(ctx context.Context, partition int, marker backup.RangeMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return backup.NewStoreError("memory", "delete_marker", backup.ErrStoreClosed)
	}

	delete(s.markers[partition], marker)
	return nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return backup.NewStoreError("memory", "ping", backup.ErrStoreClosed)
	}
	return nil
}

// Close discards all data. Further calls fail with backup.ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backups = make(map[backup.Identifier]backup.Status)
	s.markers = make(map[int]map[backup.RangeMarker]struct{})
	s.closed = true
	return nil
}

// cloneStatus copies the descriptor so callers cannot mutate stored state.
func cloneStatus(status backup.Status) backup.Status {
	if status.Descriptor != nil {
		d := *status.Descriptor
		if d.FirstLogPosition != nil {
			first := *d.FirstLogPosition
			d.FirstLogPosition = &first
		}
		status.Descriptor = &d
	}
	return status
}
