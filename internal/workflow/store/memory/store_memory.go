// Package memory provides the in-memory workflow plan store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"visaflow/internal/workflow/models"
	id "visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// InMemoryStore keeps plans in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu    sync.RWMutex
	plans map[id.UserID]*models.Plan
}

// New creates an empty in-memory store.
func New() *InMemoryStore {
	return &InMemoryStore{plans: make(map[id.UserID]*models.Plan)}
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, exists := s.plans[userID]
	if !exists {
		return nil, fmt.Errorf("workflow plan for %s: %w", userID, sentinel.ErrNotFound)
	}
	clone := *plan
	clone.Steps = append([]models.Step(nil), plan.Steps...)
	return &clone, nil
}

func (s *InMemoryStore) Save(_ context.Context, plan *models.Plan) error {
	if plan == nil {
		return fmt.Errorf("plan is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *plan
	clone.Steps = append([]models.Step(nil), plan.Steps...)
	s.plans[plan.UserID] = &clone
	return nil
}
