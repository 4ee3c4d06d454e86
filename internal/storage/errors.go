package storage

import "errors"

// Storage errors shared by all LedgerStore implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
