package vectorindex

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound is returned when a named index does not exist.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexExists is returned when creating an index whose name is taken.
	ErrIndexExists = errors.New("index already exists")
	// ErrInvalidTopK is returned when a query asks for a non-positive number of matches.
	ErrInvalidTopK = errors.New("top_k must be positive")
)

// DimensionMismatchError indicates a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	ID       string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch for %q: expected %d, got %d", e.ID, e.Expected, e.Actual)
}

// StatusError is a non-2xx response from the index service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("index service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("index service returned status %d: %s", e.StatusCode, e.Message)
}

// UpsertError reports a failed upsert call. Retryable and permanent failures are not
// distinguished; Err holds the underlying cause.
type UpsertError struct {
	Count int
	Err   error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert of %d vectors failed: %v", e.Count, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }
