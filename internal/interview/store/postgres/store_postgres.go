// Package postgres provides the PostgreSQL-backed interview store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"visaflow/internal/interview/models"
	id "visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// Store persists interview state rows with the candidate set embedded as a
// JSONB blob alongside the scalar fields.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed interview store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the interview_states table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS interview_states (
			user_id            UUID PRIMARY KEY,
			category           TEXT NOT NULL DEFAULT '',
			step               INT NOT NULL DEFAULT 0,
			candidates         JSONB,
			last_question      TEXT NOT NULL DEFAULT '',
			last_answer        TEXT NOT NULL DEFAULT '',
			consecutive_stalls INT NOT NULL DEFAULT 0,
			selected_visa_type TEXT NOT NULL DEFAULT '',
			workflow_document  TEXT NOT NULL DEFAULT '',
			is_completed       BOOLEAN NOT NULL DEFAULT FALSE,
			last_updated       TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure interview_states schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID id.UserID) (*models.State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT category, step, candidates, last_question, last_answer,
		       consecutive_stalls, selected_visa_type, workflow_document,
		       is_completed, last_updated
		FROM interview_states
		WHERE user_id = $1`, userID.String())

	state := &models.State{UserID: userID}
	var candidatesBlob []byte
	var selected string
	err := row.Scan(
		&state.Category,
		&state.Step,
		&candidatesBlob,
		&state.LastQuestion,
		&state.LastAnswer,
		&state.ConsecutiveStalls,
		&selected,
		&state.WorkflowDocument,
		&state.IsCompleted,
		&state.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("interview state for %s: %w", userID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get interview state: %w", err)
	}

	state.SelectedVisaType = id.VisaCode(selected)
	if candidatesBlob != nil {
		var codes []string
		if err := json.Unmarshal(candidatesBlob, &codes); err != nil {
			return nil, fmt.Errorf("decode candidates blob: %w", err)
		}
		state.Candidates = models.NewCandidateSet(toVisaCodes(codes))
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, state *models.State) error {
	if state == nil {
		return fmt.Errorf("state is required")
	}

	var candidatesBlob []byte
	if state.Candidates != nil {
		encoded, err := json.Marshal(state.Candidates.Strings())
		if err != nil {
			return fmt.Errorf("encode candidates blob: %w", err)
		}
		candidatesBlob = encoded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interview_states (
			user_id, category, step, candidates, last_question, last_answer,
			consecutive_stalls, selected_visa_type, workflow_document,
			is_completed, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			category           = EXCLUDED.category,
			step               = EXCLUDED.step,
			candidates         = EXCLUDED.candidates,
			last_question      = EXCLUDED.last_question,
			last_answer        = EXCLUDED.last_answer,
			consecutive_stalls = EXCLUDED.consecutive_stalls,
			selected_visa_type = EXCLUDED.selected_visa_type,
			workflow_document  = EXCLUDED.workflow_document,
			is_completed       = EXCLUDED.is_completed,
			last_updated       = EXCLUDED.last_updated`,
		state.UserID.String(),
		state.Category,
		state.Step,
		candidatesBlob,
		state.LastQuestion,
		state.LastAnswer,
		state.ConsecutiveStalls,
		string(state.SelectedVisaType),
		state.WorkflowDocument,
		state.IsCompleted,
		state.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("save interview state: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID id.UserID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM interview_states WHERE user_id = $1`, userID.String())
	if err != nil {
		return fmt.Errorf("delete interview state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete interview state: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("interview state for %s: %w", userID, sentinel.ErrNotFound)
	}
	return nil
}

func toVisaCodes(codes []string) []id.VisaCode {
	out := make([]id.VisaCode, len(codes))
	for i, c := range codes {
		out[i] = id.VisaCode(c)
	}
	return out
}
