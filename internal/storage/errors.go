package storage

import "errors"

// Storage errors shared by the memory and postgres backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already exists.
	// Revision and mint history is append-only.
	ErrDuplicateKey = errors.New("duplicate key: history is append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
