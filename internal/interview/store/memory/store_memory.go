// Package memory provides the in-memory interview store used in
// development mode and unit tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"visaflow/internal/interview/models"
	id "visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// InMemoryStore keeps interview state in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[id.UserID]*models.State
}

// New creates an empty in-memory store.
func New() *InMemoryStore {
	return &InMemoryStore{states: make(map[id.UserID]*models.State)}
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID) (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[userID]
	if !exists {
		return nil, fmt.Errorf("interview state for %s: %w", userID, sentinel.ErrNotFound)
	}
	return state.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, state *models.State) error {
	if state == nil {
		return fmt.Errorf("state is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.UserID] = state.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.states[userID]; !exists {
		return fmt.Errorf("interview state for %s: %w", userID, sentinel.ErrNotFound)
	}
	delete(s.states, userID)
	return nil
}
