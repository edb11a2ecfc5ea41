package repository

import "errors"

var (
	// ErrNotFound reports a missing record. Implementations return it for
	// both pgx.ErrNoRows and in-memory misses so services map it uniformly.
	ErrNotFound = errors.New("record not found")

	// ErrPreconditionFailed reports a compare-and-transition whose expected
	// state no longer holds. Services surface it as a Conflict, never as a
	// hard failure.
	ErrPreconditionFailed = errors.New("transition precondition failed")
)
