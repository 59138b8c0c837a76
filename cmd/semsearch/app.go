package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/checkpoint"
	"github.com/hyperjump/semsearch/internal/cli"
	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/internal/dataset"
	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/loader"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/search"
	"github.com/hyperjump/semsearch/internal/vectorindex"
)

// Components holds what the commands share. Fields a command does not need stay nil.
type Components struct {
	Client      vectorindex.Client
	Encoder     embedding.Encoder
	Snapshot    *dataset.Snapshot
	Checkpoints checkpoint.Store
}

// Close releases every non-nil component.
func (c *Components) Close() {
	if c.Encoder != nil {
		_ = c.Encoder.Close()
	}
	if c.Snapshot != nil {
		_ = c.Snapshot.Close()
	}
	if c.Checkpoints != nil {
		_ = c.Checkpoints.Close()
	}
}

// componentSet selects which components initializeComponents opens.
type componentSet struct {
	encoder     bool
	snapshot    bool
	checkpoints bool
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, want componentSet) (*Components, error) {
	client, err := vectorindex.NewHTTPClient(
		cfg.Index.ResolvedControllerURL(),
		cfg.Index.APIKey,
		vectorindex.WithEnvironment(cfg.Index.Environment),
		vectorindex.WithTimeout(cfg.Index.RequestTimeout),
		vectorindex.WithRateLimit(cfg.Index.RequestsPerSecond),
		vectorindex.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index client: %w", err)
	}
	c := &Components{Client: client}
	if want.snapshot {
		if c.Snapshot, err = dataset.OpenSnapshot(cfg.Storage.SnapshotPath); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		}
	}
	if want.checkpoints {
		if c.Checkpoints, err = checkpoint.NewSQLiteStore(cfg.Storage.CheckpointPath); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
	}
	if want.encoder {
		c.Encoder = embedding.New(cfg.Embedding, logger)
	}
	return c, nil
}

// ensureIndex creates the configured index when it does not exist and returns a handle to it.
func ensureIndex(ctx context.Context, c *Components, cfg *config.Config, logger *zap.Logger) (vectorindex.Index, error) {
	metric, err := models.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}
	created, err := vectorindex.EnsureIndex(ctx, c.Client, vectorindex.CreateIndexRequest{
		Name:      cfg.Index.Name,
		Dimension: cfg.Index.Dimension,
		Metric:    metric,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure index %s: %w", cfg.Index.Name, err)
	}
	if created {
		logger.Info("created index",
			zap.String("index", cfg.Index.Name),
			zap.Int("dimension", cfg.Index.Dimension),
			zap.String("metric", string(metric)))
	}
	return c.Client.Index(ctx, cfg.Index.Name)
}

func retryPolicy(cfg config.LoaderConfig) loader.RetryPolicy {
	return loader.RetryPolicy{
		MaxAttempts:                 cfg.MaxAttempts,
		Delay:                       cfg.RetryDelay,
		PreviouslyFailedMaxAttempts: cfg.PreviouslyFailedMaxAttempts,
	}
}

// loadSnapshot bulk-loads every snapshot document into idx.
func loadSnapshot(ctx context.Context, c *Components, idx vectorindex.Index, cfg *config.Config, logger *zap.Logger) (*loader.Result, error) {
	docs, err := c.Snapshot.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(docs) == 0 {
		return nil, errors.New("snapshot is empty; run `semsearch import` first")
	}
	if dim := len(docs[0].Values); dim != cfg.Index.Dimension {
		return nil, fmt.Errorf("snapshot dimension %d does not match index dimension %d", dim, cfg.Index.Dimension)
	}
	opts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithRetryPolicy(retryPolicy(cfg.Loader)),
	}
	if c.Checkpoints != nil {
		opts = append(opts, loader.WithCheckpoint(c.Checkpoints, cfg.Index.Name))
	}
	l, err := loader.New(idx, cfg.Loader.BatchSize, opts...)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, docs)
}

// runPipeline is the end-to-end run: ensure the index, populate it when empty, then run
// the demo query.
func runPipeline(ctx context.Context, c *Components, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	idx, err := ensureIndex(ctx, c, cfg, logger)
	if err != nil {
		return err
	}
	stats, err := idx.DescribeStats(ctx)
	if err != nil {
		return fmt.Errorf("describe index stats: %w", err)
	}
	if err := cli.WriteStats(out, cfg.Index.Name, stats, cli.OutputText); err != nil {
		return err
	}

	if stats.TotalVectorCount == 0 {
		logger.Info("populating index from snapshot", zap.String("snapshot", cfg.Storage.SnapshotPath))
		res, err := loadSnapshot(ctx, c, idx, cfg, logger)
		if err != nil {
			return err
		}
		if err := cli.WriteLoadResult(out, res, cli.OutputText); err != nil {
			return err
		}
		if stats, err = idx.DescribeStats(ctx); err != nil {
			return fmt.Errorf("describe index stats: %w", err)
		}
		logger.Info("populated index", zap.Int64("total_vector_count", stats.TotalVectorCount))
	} else {
		logger.Info("index already populated",
			zap.String("index", cfg.Index.Name),
			zap.Int64("total_vector_count", stats.TotalVectorCount))
	}

	searcher := search.NewSearcher(c.Encoder, idx, cfg.Search.MaxTopK, logger)
	matches, err := searcher.Search(ctx, cfg.Search.DemoQuery, cfg.Search.TopK)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Original query: %s\n", cfg.Search.DemoQuery)
	return cli.WriteMatches(out, cfg.Search.DemoQuery, cfg.Search.TopK, matches, cli.OutputText)
}

// writeImportSummary reports an import. A failing count is logged and the total omitted.
func writeImportSummary(ctx context.Context, out io.Writer, logger *zap.Logger, snap *dataset.Snapshot, path string, imported int) {
	total, err := snap.Count(ctx)
	if err != nil {
		logger.Warn("failed to count snapshot documents", zap.String("path", path), zap.Error(err))
		fmt.Fprintf(out, "Imported %d documents into %s\n", imported, path)
		return
	}
	fmt.Fprintf(out, "Imported %d documents into %s (%d total)\n", imported, path, total)
}
