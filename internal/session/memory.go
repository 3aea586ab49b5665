package session

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jonathan/address-lookup/internal/types"
)

// MemoryStore keeps result sets in process memory. The least recently used session is
// evicted once capacity is reached, so an abandoned session cannot grow the map forever.
type MemoryStore struct {
	cache *lru.Cache[string, *types.ResultSet]
}

// NewMemoryStore creates a store holding at most capacity sessions.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	cache, err := lru.New[string, *types.ResultSet](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*types.ResultSet, error) {
	rs, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, nil
	}
	return clone(rs), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, sessionID string, rs *types.ResultSet) error {
	s.cache.Add(sessionID, clone(rs))
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, sessionID string) error {
	s.cache.Remove(sessionID)
	return nil
}

// Len returns the number of sessions currently held.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
