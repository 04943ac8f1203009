// Package models defines the materialized workflow read model: the
// structured steps produced from a finalized interview's raw workflow
// document.
package models

import (
	"time"

	id "visaflow/pkg/domain"
)

// Step is one actionable item of a visa workflow.
type Step struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	EstimatedCost     float64  `json:"estimatedCost"`
	EstimatedTimeDays int      `json:"estimatedTimeDays"`
	Link              string   `json:"link,omitempty"`
	Documents         []string `json:"documents"`
}

// Plan is the materialized workflow for one user, derived once from the
// completion event and kept for downstream document bookkeeping.
type Plan struct {
	UserID                 id.UserID   `json:"userId"`
	VisaCode               id.VisaCode `json:"visaCode"`
	Steps                  []Step      `json:"steps"`
	EstimatedTotalCost     float64     `json:"estimatedTotalCost"`
	EstimatedTotalTimeDays int         `json:"estimatedTotalTimeDays"`
	MaterializedAt         time.Time   `json:"materializedAt"`
}
