package storage

import "errors"

// Storage errors shared by all store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when one insert batch carries the same
	// key twice. That points at a bad upstream join, not a re-pull.
	ErrDuplicateKey = errors.New("duplicate key within batch")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
