// Package models defines the interview domain types: the candidate set
// being narrowed and the per-user interview state record.
package models

import (
	"time"

	id "visaflow/pkg/domain"
)

// CandidateSet is an ordered collection of visa codes still considered
// viable. Codes are unique within a set; order is insertion order as
// received from the oracle and only matters for stable questioning.
type CandidateSet []id.VisaCode

// NewCandidateSet builds a set from codes, dropping empties and duplicates
// while preserving first-seen order.
func NewCandidateSet(codes []id.VisaCode) CandidateSet {
	seen := make(map[id.VisaCode]struct{}, len(codes))
	out := make(CandidateSet, 0, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Size returns the number of candidates.
func (s CandidateSet) Size() int { return len(s) }

// First returns the first candidate in insertion order, or "" when empty.
func (s CandidateSet) First() id.VisaCode {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Contains reports whether code is a member.
func (s CandidateSet) Contains(code id.VisaCode) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

// Equal reports set equality: same members regardless of order.
func (s CandidateSet) Equal(other CandidateSet) bool {
	if len(s) != len(other) {
		return false
	}
	members := make(map[id.VisaCode]struct{}, len(s))
	for _, c := range s {
		members[c] = struct{}{}
	}
	for _, c := range other {
		if _, ok := members[c]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s CandidateSet) Clone() CandidateSet {
	if s == nil {
		return nil
	}
	out := make(CandidateSet, len(s))
	copy(out, s)
	return out
}

// Strings returns the codes as plain strings for wire payloads.
func (s CandidateSet) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = string(c)
	}
	return out
}

// State is the durable interview record, one per user. It is owned
// exclusively by the narrowing engine; the web layer reads and writes it
// only through the engine's operations.
type State struct {
	UserID   id.UserID
	Category string

	// Step counts narrowing rounds. It starts at 1 after a successful
	// start and increases only when the candidate set actually changes.
	Step int

	// Candidates is nil before the first oracle handshake and is never
	// persisted empty while the interview is incomplete.
	Candidates CandidateSet

	LastQuestion string
	LastAnswer   string

	// ConsecutiveStalls counts answered rounds that failed to narrow the
	// set. At the forcing threshold the engine picks a candidate itself.
	ConsecutiveStalls int

	SelectedVisaType id.VisaCode

	// WorkflowDocument is the raw workflow text from the oracle (or the
	// static fallback). The workflow module materializes it into steps.
	WorkflowDocument string

	IsCompleted bool
	LastUpdated time.Time
}

// Clone returns a deep copy so stores can hand out snapshots.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Candidates = s.Candidates.Clone()
	return &clone
}
