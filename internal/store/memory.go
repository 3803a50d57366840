package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the snapshot in process memory. Used for tests and for
// running the service without a data directory.
type MemoryStore struct {
	mu   sync.Mutex
	snap Snapshot
	// FailSave, when set, makes every Save return it. Test hook.
	FailSave error

	saves int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: EmptySnapshot()}
}

// Load returns a deep copy of the current snapshot.
func (s *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone(), nil
}

// Save replaces the snapshot.
func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.snap = snap.Clone()
	s.saves++
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Saves reports how many successful saves have happened. Test hook.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
