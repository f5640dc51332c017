package credential

import (
	"context"
	"sync"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	cred   domain.Credential
	ok     bool
	writes int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context) (domain.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.ok, nil
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, cred domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.ok = true
	s.writes++
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = domain.Credential{}
	s.ok = false
	return nil
}

// Writes returns how many times Write succeeded.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
