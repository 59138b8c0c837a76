package loader

import (
	"fmt"
	"time"
)

// RetryPolicy bounds the upsert attempts of one batch.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts for a batch, the first included.
	MaxAttempts int
	// Delay is the fixed wait between a failed attempt and the next one.
	Delay time.Duration
	// PreviouslyFailedMaxAttempts replaces MaxAttempts for the resume batch when the
	// previous run stopped on that same batch.
	PreviouslyFailedMaxAttempts int
}

// DefaultRetryPolicy is three attempts ten seconds apart, one attempt for a batch that
// already exhausted its retries on the previous run.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:                 3,
		Delay:                       10 * time.Second,
		PreviouslyFailedMaxAttempts: 1,
	}
}

// Validate rejects policies that would never attempt a batch.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.PreviouslyFailedMaxAttempts < 1 {
		return fmt.Errorf("previously failed max attempts must be at least 1, got %d", p.PreviouslyFailedMaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("retry delay must not be negative")
	}
	return nil
}

func (p RetryPolicy) attempts(previouslyFailed bool) int {
	if previouslyFailed {
		return p.PreviouslyFailedMaxAttempts
	}
	return p.MaxAttempts
}
