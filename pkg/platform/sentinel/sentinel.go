package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the oracle client
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: no interview or workflow record for the key
// - ErrConflict: concurrent write detected (optimistic update lost)
// - ErrInvalidState: record in wrong state for requested operation
// - ErrUnavailable: oracle or store temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
