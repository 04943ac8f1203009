// Package domain holds the typed identifiers shared across modules.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-assignment between, say, a user ID and a request ID.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "visaflow/pkg/domain-errors"
)

// UserID identifies an applicant. One interview record exists per UserID.
type UserID uuid.UUID

// NilUserID is the zero UserID.
var NilUserID = UserID(uuid.Nil)

// ParseUserID validates and parses a user ID from its string form.
// IDs must be valid, non-empty, non-nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return NilUserID, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return NilUserID, dErrors.Wrap(err, dErrors.CodeInvalidInput, "user id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return NilUserID, dErrors.New(dErrors.CodeInvalidInput, "user id must not be the nil UUID")
	}
	return UserID(parsed), nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is unset.
func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// VisaCode is a visa-type code as exchanged with the classification
// oracle, e.g. "H-1B" or "EB-5". Codes are compared case-sensitively
// after whitespace trimming.
type VisaCode string

// ParseVisaCode trims and validates a visa code.
func ParseVisaCode(s string) (VisaCode, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "visa code is required")
	}
	return VisaCode(trimmed), nil
}

func (c VisaCode) String() string { return string(c) }
