package service

import (
	"strings"

	"visaflow/internal/interview/models"
	id "visaflow/pkg/domain"
)

// ProgressGuard detects stalled narrowing and, past a threshold, decides a
// candidate deterministically so the interview always terminates. This is
// the engine's liveness backstop against a non-converging oracle.
type ProgressGuard struct {
	threshold int
}

// NewProgressGuard creates a guard that forces after threshold consecutive
// stalled rounds. A threshold below 1 is clamped to 1.
func NewProgressGuard(threshold int) *ProgressGuard {
	if threshold < 1 {
		threshold = 1
	}
	return &ProgressGuard{threshold: threshold}
}

// IsStall reports whether a round failed to narrow: the new set is
// set-equal to the previous one after a round with a non-empty answer.
func (g *ProgressGuard) IsStall(previous, next models.CandidateSet, answer string) bool {
	return strings.TrimSpace(answer) != "" && previous.Equal(next)
}

// ShouldForce reports whether the stall counter has reached the forcing
// threshold for a stalled round.
func (g *ProgressGuard) ShouldForce(previous, next models.CandidateSet, consecutiveStalls int) bool {
	return previous.Equal(next) && consecutiveStalls >= g.threshold
}

// keywordFamily maps answer phrases to an ordered preference of codes.
// Families are checked in declaration order; the first family with a
// matching phrase wins, and within it the first preferred code present in
// the current set is chosen.
type keywordFamily struct {
	phrases   []string
	preferred []id.VisaCode
}

var forceFamilies = []keywordFamily{
	{
		phrases:   []string{"tourism", "tourist", "leisure", "vacation", "holiday", "sightseeing"},
		preferred: []id.VisaCode{"ESTA", "B-2", "B-1"},
	},
	{
		phrases:   []string{"business", "meeting", "conference", "negotiat"},
		preferred: []id.VisaCode{"B-1", "E-1", "E-2"},
	},
	{
		phrases:   []string{"invest", "capital", "fund", "venture"},
		preferred: []id.VisaCode{"EB-5", "E-2", "E-1"},
	},
	{
		phrases:   []string{"work", "job", "employ", "salary", "career"},
		preferred: []id.VisaCode{"H-1B", "L-1", "O-1", "TN", "EB-2", "EB-3"},
	},
}

// ForceChoice picks a single candidate from the current set by matching the
// last answer against the keyword families above. When nothing matches, it
// falls back to the first element in the set's current order, so the result
// is always a member of the set.
func (g *ProgressGuard) ForceChoice(current models.CandidateSet, lastAnswer string) id.VisaCode {
	lowered := strings.ToLower(lastAnswer)
	for _, family := range forceFamilies {
		if !matchesAny(lowered, family.phrases) {
			continue
		}
		for _, code := range family.preferred {
			if current.Contains(code) {
				return code
			}
		}
	}
	return current.First()
}

func matchesAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
