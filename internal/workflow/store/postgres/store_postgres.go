// Package postgres provides the PostgreSQL-backed workflow plan store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"visaflow/internal/workflow/models"
	id "visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// Store persists plans with the step list embedded as a JSONB blob.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed workflow plan store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the workflow_plans table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_plans (
			user_id         UUID PRIMARY KEY,
			visa_code       TEXT NOT NULL,
			steps           JSONB NOT NULL,
			total_cost      DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_time_days INT NOT NULL DEFAULT 0,
			materialized_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure workflow_plans schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID id.UserID) (*models.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT visa_code, steps, total_cost, total_time_days, materialized_at
		FROM workflow_plans
		WHERE user_id = $1`, userID.String())

	plan := &models.Plan{UserID: userID}
	var visaCode string
	var stepsBlob []byte
	err := row.Scan(&visaCode, &stepsBlob, &plan.EstimatedTotalCost, &plan.EstimatedTotalTimeDays, &plan.MaterializedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workflow plan for %s: %w", userID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get workflow plan: %w", err)
	}

	plan.VisaCode = id.VisaCode(visaCode)
	if err := json.Unmarshal(stepsBlob, &plan.Steps); err != nil {
		return nil, fmt.Errorf("decode steps blob: %w", err)
	}
	return plan, nil
}

func (s *Store) Save(ctx context.Context, plan *models.Plan) error {
	if plan == nil {
		return fmt.Errorf("plan is required")
	}

	stepsBlob, err := json.Marshal(plan.Steps)
	if err != nil {
		return fmt.Errorf("encode steps blob: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_plans (
			user_id, visa_code, steps, total_cost, total_time_days, materialized_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			visa_code       = EXCLUDED.visa_code,
			steps           = EXCLUDED.steps,
			total_cost      = EXCLUDED.total_cost,
			total_time_days = EXCLUDED.total_time_days,
			materialized_at = EXCLUDED.materialized_at`,
		plan.UserID.String(),
		string(plan.VisaCode),
		stepsBlob,
		plan.EstimatedTotalCost,
		plan.EstimatedTotalTimeDays,
		plan.MaterializedAt,
	)
	if err != nil {
		return fmt.Errorf("save workflow plan: %w", err)
	}
	return nil
}
