package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("invalid credentials")
	ErrForbidden       = errors.New("forbidden")

	// ErrAggregationInconsistency marks a broken parent chain found while
	// propagating costs. It is recorded, never returned to HTTP callers.
	ErrAggregationInconsistency = errors.New("aggregation inconsistency")
)
