package service

import (
	"fmt"
	"strings"

	"visaflow/internal/interview/models"
	id "visaflow/pkg/domain"
)

// Built-in fallbacks used when the oracle misbehaves. The engine never
// fails a round outright: a broken handshake falls back to a category
// default, a broken question round to a generic question, and a broken
// workflow round to a static template.

const (
	genericFirstQuestion   = "What is the main purpose of your planned stay?"
	clarificationQuestion  = "I did not quite catch that. Could you describe your situation in a bit more detail?"
	repeatQuestionFallback = "Could you answer the previous question once more, with more detail?"
)

var defaultCategorySets = map[string][]id.VisaCode{
	"visit":  {"B-1", "B-2", "ESTA"},
	"work":   {"H-1B", "L-1", "O-1", "TN"},
	"study":  {"F-1", "M-1", "J-1"},
	"invest": {"E-2", "EB-5"},
	"family": {"IR-1", "K-1", "F2A"},
}

var genericDefaultSet = []id.VisaCode{"B-2", "H-1B", "F-1", "EB-5"}

// defaultCandidates returns the built-in candidate set for a category,
// falling back to the generic set for unknown categories.
func defaultCandidates(category string) models.CandidateSet {
	key := strings.ToLower(strings.TrimSpace(category))
	if codes, ok := defaultCategorySets[key]; ok {
		return models.NewCandidateSet(codes)
	}
	return models.NewCandidateSet(genericDefaultSet)
}

// fallbackWorkflow synthesizes a minimal workflow document keyed by code
// prefix. Used when the oracle's workflow response lacks a steps array
// after genuine termination.
func fallbackWorkflow(code id.VisaCode) string {
	theme := "general"
	switch {
	case strings.HasPrefix(string(code), "B") || code == "ESTA":
		theme = "visit"
	case strings.HasPrefix(string(code), "H") || strings.HasPrefix(string(code), "L") ||
		strings.HasPrefix(string(code), "O") || code == "TN":
		theme = "work"
	case strings.HasPrefix(string(code), "F") || strings.HasPrefix(string(code), "M") ||
		strings.HasPrefix(string(code), "J"):
		theme = "study"
	case strings.HasPrefix(string(code), "E"):
		theme = "invest"
	}
	return fmt.Sprintf(`{"steps":[`+
		`{"name":"Confirm eligibility","description":"Review the %s requirements for %s with an adviser.","estimatedCost":0,"estimatedTimeDays":7,"documents":["passport"]},`+
		`{"name":"Prepare documents","description":"Gather the standard document package for a %s application.","estimatedCost":100,"estimatedTimeDays":14,"documents":["passport","photographs","supporting evidence"]},`+
		`{"name":"File application","description":"Submit the %s application and pay the fees.","estimatedCost":400,"estimatedTimeDays":45,"documents":["application form","fee receipt"]}`+
		`],"estimatedTotalCost":500,"estimatedTotalTimeDays":66}`,
		theme, code, code, code)
}
