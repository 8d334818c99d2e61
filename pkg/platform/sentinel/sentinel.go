package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domainerrors.Error at the
// service boundary.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a write collided with the entity's current state
// - ErrInvalidState: entity in wrong state for requested operation
//
// For validation errors (bad input, missing fields), use pkg/domainerrors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
