// Package materializer turns the raw workflow document of a completed
// interview into a structured plan for downstream document bookkeeping.
//
// It sits behind the completion event: the narrowing engine publishes and
// forgets, and any failure here is logged without ever reaching the
// interview flow.
package materializer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"visaflow/internal/interview/events"
	"visaflow/internal/workflow/models"
	"visaflow/internal/workflow/store"
	id "visaflow/pkg/domain"
	"visaflow/pkg/requestcontext"
)

// Service materializes workflow documents into plans.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a materializer over a plan store.
func New(st store.Store, logger *slog.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("workflow store is required")
	}
	return &Service{store: st, logger: logger}, nil
}

// rawDocument mirrors the oracle's workflow shape. Totals are optional;
// missing ones are computed from the steps.
type rawDocument struct {
	Steps []struct {
		Name              string   `json:"name"`
		Description       string   `json:"description"`
		EstimatedCost     float64  `json:"estimatedCost"`
		EstimatedTimeDays int      `json:"estimatedTimeDays"`
		Link              string   `json:"link"`
		Documents         []string `json:"documents"`
	} `json:"steps"`
	EstimatedTotalCost     *float64 `json:"estimatedTotalCost"`
	EstimatedTotalTimeDays *int     `json:"estimatedTotalTimeDays"`
}

// Materialize parses the raw document and persists the structured plan.
// Steps without a name are dropped; a document with no usable steps at all
// yields a single review step so the plan is never empty.
func (s *Service) Materialize(ctx context.Context, userID id.UserID, code id.VisaCode, rawDoc string) error {
	var doc rawDocument
	if err := json.Unmarshal([]byte(rawDoc), &doc); err != nil {
		return fmt.Errorf("decode workflow document: %w", err)
	}

	steps := make([]models.Step, 0, len(doc.Steps))
	for _, raw := range doc.Steps {
		if strings.TrimSpace(raw.Name) == "" {
			continue
		}
		steps = append(steps, models.Step{
			Name:              raw.Name,
			Description:       raw.Description,
			EstimatedCost:     raw.EstimatedCost,
			EstimatedTimeDays: raw.EstimatedTimeDays,
			Link:              raw.Link,
			Documents:         raw.Documents,
		})
	}
	if len(steps) == 0 {
		steps = append(steps, models.Step{
			Name:        "Review application requirements",
			Description: fmt.Sprintf("Review the %s requirements with an adviser.", code),
		})
	}

	plan := &models.Plan{
		UserID:         userID,
		VisaCode:       code,
		Steps:          steps,
		MaterializedAt: requestcontext.Now(ctx),
	}

	if doc.EstimatedTotalCost != nil {
		plan.EstimatedTotalCost = *doc.EstimatedTotalCost
	}
	if doc.EstimatedTotalTimeDays != nil {
		plan.EstimatedTotalTimeDays = *doc.EstimatedTotalTimeDays
	}
	if doc.EstimatedTotalCost == nil || doc.EstimatedTotalTimeDays == nil {
		var cost float64
		var days int
		for _, step := range steps {
			cost += step.EstimatedCost
			days += step.EstimatedTimeDays
		}
		if doc.EstimatedTotalCost == nil {
			plan.EstimatedTotalCost = cost
		}
		if doc.EstimatedTotalTimeDays == nil {
			plan.EstimatedTotalTimeDays = days
		}
	}

	if err := s.store.Save(ctx, plan); err != nil {
		return fmt.Errorf("save workflow plan: %w", err)
	}

	s.logger.InfoContext(ctx, "materialized workflow plan",
		"user_id", userID,
		"visa_code", code,
		"steps", len(steps),
	)
	return nil
}

// HandleCompleted consumes one completion event. Used by both the Kafka
// consumer and the in-process worker.
func (s *Service) HandleCompleted(ctx context.Context, event events.CompletedEvent) error {
	userID, err := id.ParseUserID(event.UserID)
	if err != nil {
		return fmt.Errorf("completion event has invalid user id: %w", err)
	}
	code, err := id.ParseVisaCode(event.VisaCode)
	if err != nil {
		return fmt.Errorf("completion event has invalid visa code: %w", err)
	}
	return s.Materialize(ctx, userID, code, event.WorkflowDocument)
}
