package storage

import "errors"

// Cache store errors.
var (
	// ErrNotFound is returned on any condition a caller must treat as a
	// cache miss: no row, ERROR status, expired, empty or undecodable
	// payload.
	ErrNotFound = errors.New("cache entry not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
