package models

import "time"

// StartRequest begins (or resumes) an interview for the authenticated user.
type StartRequest struct {
	Category     string `json:"category"`
	Instructions string `json:"instructions"`
}

// AnswerRequest submits the user's answer to the current question.
type AnswerRequest struct {
	Category     string `json:"category"`
	Instructions string `json:"instructions"`
	Answer       string `json:"answer"`
}

// Recommendation is the final visa-type selection returned on completion.
type Recommendation struct {
	Code             string `json:"code"`
	WorkflowDocument string `json:"workflowDocument,omitempty"`
}

// StepResponse is returned by start and answer. Either Question is set and
// IsComplete is false, or Recommendation is set and IsComplete is true.
type StepResponse struct {
	Question       string          `json:"question,omitempty"`
	Step           int             `json:"step"`
	IsComplete     bool            `json:"isComplete"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}

// StateResponse is the read-only projection of the interview state.
type StateResponse struct {
	Category         string    `json:"category"`
	Step             int       `json:"step"`
	Candidates       []string  `json:"candidates"`
	LastQuestion     string    `json:"lastQuestion,omitempty"`
	LastAnswer       string    `json:"lastAnswer,omitempty"`
	SelectedVisaType string    `json:"selectedVisaType,omitempty"`
	IsCompleted      bool      `json:"isCompleted"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// ToStateResponse projects a State for display.
func ToStateResponse(s *State) StateResponse {
	return StateResponse{
		Category:         s.Category,
		Step:             s.Step,
		Candidates:       s.Candidates.Strings(),
		LastQuestion:     s.LastQuestion,
		LastAnswer:       s.LastAnswer,
		SelectedVisaType: string(s.SelectedVisaType),
		IsCompleted:      s.IsCompleted,
		LastUpdated:      s.LastUpdated,
	}
}
