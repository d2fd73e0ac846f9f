package store

import (
	"context"
	"sync"

	"github.com/wolfeidau/hostident/internal/identity"
)

// MemoryStore is an in-memory implementation of Store for development and testing
type MemoryStore struct {
	mu        sync.RWMutex
	id        *identity.Identity
	overwrite bool
	writes    int
}

// NewMemoryStore creates a new in-memory identity store
func NewMemoryStore(overwrite bool) *MemoryStore {
	return &MemoryStore{overwrite: overwrite}
}

// Location returns "memory".
func (s *MemoryStore) Location() string {
	return "memory"
}

// Persist stores a copy of the identity.
func (s *MemoryStore) Persist(ctx context.Context, id *identity.Identity) error {
	if err := id.Complete(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != nil && !s.overwrite {
		return ErrIdentityExists
	}

	s.id.Wipe()
	// Copy so the caller can wipe its own buffers
	s.id = id.Clone()
	s.writes++

	return nil
}

// Load returns a copy of the stored identity.
func (s *MemoryStore) Load(ctx context.Context) (*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.id == nil {
		return nil, ErrIdentityNotFound
	}

	return s.id.Clone(), nil
}

// Delete wipes and forgets the stored identity.
func (s *MemoryStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == nil {
		return ErrIdentityNotFound
	}
	s.id.Wipe()
	s.id = nil
	return nil
}

// Writes returns how many times an identity has been persisted.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
