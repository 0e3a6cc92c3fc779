package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStatusConflict is returned by a conditional update when the row
	// exists but its status no longer matches the expected value.
	ErrStatusConflict = errors.New("status conflict")
)
