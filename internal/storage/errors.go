package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when no table has been stored yet.
	// Callers treat it as a first run, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrMalformedTable is returned when a stored table cannot be parsed.
	// The stored object must not be overwritten after this error.
	ErrMalformedTable = errors.New("malformed stored table")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
