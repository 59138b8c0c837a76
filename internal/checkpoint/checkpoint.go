// Package checkpoint persists bulk load progress per index: the last committed batch and
// the batch that exhausted its retries on the previous run.
package checkpoint

import (
	"context"
	"time"
)

// NoBatch marks an unset batch position.
const NoBatch = -1

// State is the recorded progress of loading one index.
type State struct {
	Index         string
	BatchSize     int
	LastCommitted int
	FailedBatch   int
	FailureReason string
	UpdatedAt     time.Time
}

// HasFailure reports whether the previous run stopped on a failed batch.
func (s *State) HasFailure() bool {
	return s != nil && s.FailedBatch != NoBatch
}

// Store records load progress. Get returns (nil, nil) when nothing is recorded for index.
type Store interface {
	Get(ctx context.Context, index string) (*State, error)
	// MarkCommitted records batch as committed and clears any failure at or before it.
	MarkCommitted(ctx context.Context, index string, batchSize, batch int) error
	// MarkFailed records batch as having exhausted its retries.
	MarkFailed(ctx context.Context, index string, batchSize, batch int, reason string) error
	Reset(ctx context.Context, index string) error
	Close() error
}
