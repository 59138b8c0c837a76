package loader

import (
	"errors"
	"fmt"
)

// ErrInvalidBatchSize is returned by New for a non-positive batch size.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// BatchError reports the batch that stopped a load. Err is the last upsert error,
// unchanged, so errors.Is and errors.As see the original cause.
type BatchError struct {
	Batch            int
	Attempts         int
	PreviouslyFailed bool
	Err              error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed after %d attempt(s): %v", e.Batch, e.Attempts, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
