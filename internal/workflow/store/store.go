// Package store defines persistence for materialized workflow plans.
package store

import (
	"context"

	"visaflow/internal/workflow/models"
	id "visaflow/pkg/domain"
)

// Store keeps one materialized plan per user. Implementations return
// sentinel.ErrNotFound (wrapped) when no plan exists; Save is an upsert.
type Store interface {
	Get(ctx context.Context, userID id.UserID) (*models.Plan, error)
	Save(ctx context.Context, plan *models.Plan) error
}
