// Package loader bulk-loads pre-vectorized documents into a vector index in fixed-size
// batches, resuming from the index's reported size and retrying failed batches.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/checkpoint"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// Target is the part of a vector index the loader needs.
type Target interface {
	Upsert(ctx context.Context, docs []*models.Document) error
	DescribeStats(ctx context.Context) (*models.IndexStats, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Loader drives batches into a Target strictly in order, one at a time.
type Loader struct {
	target     Target
	batchSize  int
	policy     RetryPolicy
	checkpoint checkpoint.Store
	key        string
	logger     *zap.Logger
	sleep      SleepFunc
	now        func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for progress lines.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(ld *Loader) { ld.policy = p }
}

// WithCheckpoint records progress in store under key (normally the index name).
// The previous run's failed batch is read from it to apply the restart guard.
func WithCheckpoint(store checkpoint.Store, key string) Option {
	return func(ld *Loader) {
		ld.checkpoint = store
		ld.key = key
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(ld *Loader) { ld.sleep = fn }
}

// WithClock replaces time.Now for the run timestamps.
func WithClock(now func() time.Time) Option {
	return func(ld *Loader) { ld.now = now }
}

// New returns a loader writing batches of batchSize documents into target.
func New(target Target, batchSize int, opts ...Option) (*Loader, error) {
	if target == nil {
		return nil, errors.New("loader target is required")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}
	ld := &Loader{
		target:    target,
		batchSize: batchSize,
		policy:    DefaultRetryPolicy(),
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ld)
	}
	if err := ld.policy.Validate(); err != nil {
		return nil, err
	}
	ld.logger = utils.OrNop(ld.logger)
	return ld, nil
}

// Result summarizes one Load call.
type Result struct {
	RunID       string `json:"run_id"`
	Documents   int    `json:"documents"`
	Batches     int    `json:"batches"`
	ResumeBatch int    `json:"resume_batch"`
	Skipped     int    `json:"skipped"`
	Attempted   int    `json:"attempted"`
	Committed   int    `json:"committed"`
	Retries     int    `json:"retries"`
	// LastCommitted is the last batch known committed, -1 when none.
	LastCommitted int       `json:"last_committed"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Load upserts docs batch by batch. Batches below the resume point computed from the
// index's vector count are skipped. A batch that fails every allowed attempt stops the
// load with a *BatchError and no later batch is attempted.
func (l *Loader) Load(ctx context.Context, docs []*models.Document) (*Result, error) {
	res := &Result{
		RunID:         uuid.NewString(),
		Documents:     len(docs),
		Batches:       BatchCount(len(docs), l.batchSize),
		LastCommitted: checkpoint.NoBatch,
		StartedAt:     l.now(),
	}
	log := l.logger.With(zap.String("run_id", res.RunID))
	log.Info("upserting documents",
		zap.Int("documents", res.Documents),
		zap.Int("batch_size", l.batchSize),
		zap.Int("batches", res.Batches))

	stats, err := l.target.DescribeStats(ctx)
	if err != nil {
		return l.finish(log, res), fmt.Errorf("describe index stats: %w", err)
	}
	resume := ResumePoint(stats.TotalVectorCount, l.batchSize)
	res.ResumeBatch = resume
	if resume > 0 {
		res.LastCommitted = min(resume, res.Batches) - 1
	}
	log.Info("computed resume point",
		zap.Int64("total_vector_count", stats.TotalVectorCount),
		zap.Int("resume_batch", resume))

	previouslyFailed, err := l.previouslyFailed(ctx, log, resume)
	if err != nil {
		return l.finish(log, res), err
	}

	for _, b := range Partition(docs, l.batchSize) {
		if b.Index < resume {
			res.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return l.finish(log, res), err
		}
		res.Attempted++
		guarded := b.Index == previouslyFailed
		attempts, err := l.upsertBatch(ctx, log, b, guarded, res)
		if err != nil {
			// Only a batch that used its whole budget counts as failed for the next run.
			if attempts == l.policy.attempts(guarded) && ctx.Err() == nil {
				l.recordFailure(ctx, log, b.Index, err)
				log.Error("giving up on batch",
					zap.Int("batch", b.Index),
					zap.Int("attempts", attempts),
					zap.Bool("previously_failed", guarded),
					zap.Error(err))
			} else {
				log.Warn("load interrupted",
					zap.Int("batch", b.Index),
					zap.Int("attempts", attempts),
					zap.Error(err))
			}
			return l.finish(log, res), &BatchError{
				Batch:            b.Index,
				Attempts:         attempts,
				PreviouslyFailed: guarded,
				Err:              err,
			}
		}
		res.Committed++
		res.LastCommitted = b.Index
		l.recordCommit(ctx, log, b.Index)
	}
	return l.finish(log, res), nil
}

// upsertBatch attempts one batch up to the policy's limit and returns the number of
// attempts made. The returned error is the last upsert error.
func (l *Loader) upsertBatch(ctx context.Context, log *zap.Logger, b models.Batch, previouslyFailed bool, res *Result) (int, error) {
	maxAttempts := l.policy.attempts(previouslyFailed)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fields := []zap.Field{
			zap.Int("batch", b.Index),
			zap.Int("documents", b.Len()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
		}
		if attempt > 1 {
			log.Info("waiting before re-attempting upsert", append(fields, zap.Duration("delay", l.policy.Delay))...)
			if err := l.sleep(ctx, l.policy.Delay); err != nil {
				return attempt - 1, errors.Join(lastErr, err)
			}
			res.Retries++
			log.Info("re-attempting upsert", fields...)
		} else {
			log.Info("upserting batch", fields...)
		}
		lastErr = l.target.Upsert(ctx, b.Documents)
		if lastErr == nil {
			log.Info("upserted batch", fields...)
			return attempt, nil
		}
		log.Warn("upsert failed", append(fields, zap.Error(lastErr))...)
		if previouslyFailed && attempt == maxAttempts {
			log.Warn("batch also failed on the previous run, not retrying", zap.Int("batch", b.Index))
		}
	}
	return maxAttempts, lastErr
}

// previouslyFailed returns the resume batch when the checkpoint says the previous run
// stopped on it, otherwise checkpoint.NoBatch.
func (l *Loader) previouslyFailed(ctx context.Context, log *zap.Logger, resume int) (int, error) {
	if l.checkpoint == nil {
		return checkpoint.NoBatch, nil
	}
	st, err := l.checkpoint.Get(ctx, l.key)
	if err != nil {
		return checkpoint.NoBatch, fmt.Errorf("read checkpoint: %w", err)
	}
	if st == nil {
		return checkpoint.NoBatch, nil
	}
	if st.BatchSize != l.batchSize {
		log.Warn("batch size differs from the previous run, resume point may be wrong",
			zap.Int("previous_batch_size", st.BatchSize),
			zap.Int("batch_size", l.batchSize))
		return checkpoint.NoBatch, nil
	}
	if st.HasFailure() && st.FailedBatch == resume {
		log.Info("resuming at the batch that failed on the previous run",
			zap.Int("batch", resume),
			zap.String("previous_error", st.FailureReason))
		return resume, nil
	}
	return checkpoint.NoBatch, nil
}

func (l *Loader) recordCommit(ctx context.Context, log *zap.Logger, batch int) {
	if l.checkpoint == nil {
		return
	}
	if err := l.checkpoint.MarkCommitted(ctx, l.key, l.batchSize, batch); err != nil {
		log.Warn("checkpoint update failed", zap.Int("batch", batch), zap.Error(err))
	}
}

func (l *Loader) recordFailure(ctx context.Context, log *zap.Logger, batch int, cause error) {
	if l.checkpoint == nil {
		return
	}
	if err := l.checkpoint.MarkFailed(ctx, l.key, l.batchSize, batch, cause.Error()); err != nil {
		log.Warn("checkpoint update failed", zap.Int("batch", batch), zap.Error(err))
	}
}

func (l *Loader) finish(log *zap.Logger, res *Result) *Result {
	res.FinishedAt = l.now()
	log.Info("started upserting documents", zap.Time("at", res.StartedAt))
	log.Info("finished upserting documents",
		zap.Time("at", res.FinishedAt),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
		zap.Int("skipped", res.Skipped),
		zap.Int("committed", res.Committed),
		zap.Int("retries", res.Retries))
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
