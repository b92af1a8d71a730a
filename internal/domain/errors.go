package domain

import "errors"

// Sentinel errors shared across stores and services. Callers match with
// errors.Is; implementations wrap with context via fmt.Errorf and %w.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)
