// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps records in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Name returns the backend name.
func (s *MemoryStore) Name() string { return BackendMemory }

// Available always returns nil.
func (s *MemoryStore) Available() error { return nil }

// Put stores rec under key.
func (s *MemoryStore) Put(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
	return nil
}

// Get returns the record for key.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok, nil
}

// Keys returns every key in sorted order.
func (s *MemoryStore) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.records)), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
