package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborators return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrConflict: uniqueness or duplicate-membership violation
// - ErrCapacityFull: conditional membership write refused, event at capacity
// - ErrDeadlinePassed: conditional membership write refused, registration closed
// - ErrNotRegistered: membership removal refused, volunteer not a member
// - ErrExpired: record or token past its TTL
// - ErrUnavailable: collaborator or resource temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrCapacityFull   = errors.New("capacity full")
	ErrDeadlinePassed = errors.New("deadline passed")
	ErrNotRegistered  = errors.New("not registered")
	ErrExpired        = errors.New("expired")
	ErrUnavailable    = errors.New("unavailable")
)
