// Package store defines persistence for interview state.
package store

import (
	"context"

	"visaflow/internal/interview/models"
	id "visaflow/pkg/domain"
)

// Store persists one interview state record per user. Implementations
// return sentinel.ErrNotFound (wrapped) when no record exists.
//
// Save is an upsert and must store a snapshot: later mutation of the
// passed-in state must not leak into the stored copy.
type Store interface {
	Get(ctx context.Context, userID id.UserID) (*models.State, error)
	Save(ctx context.Context, state *models.State) error
	Delete(ctx context.Context, userID id.UserID) error
}
