// Package vectorindex provides the vector index service: the interfaces the loader and
// searcher consume, an in-memory implementation, and an HTTP client for the remote service.
package vectorindex

import (
	"context"

	"github.com/hyperjump/semsearch/internal/models"
)

// Index is a handle to one named index on the service.
type Index interface {
	// Upsert inserts or replaces documents keyed by ID. The whole batch commits or fails
	// as one call; failures are reported as *UpsertError.
	Upsert(ctx context.Context, docs []*models.Document) error
	Query(ctx context.Context, req models.QueryRequest) ([]*models.Match, error)
	DescribeStats(ctx context.Context) (*models.IndexStats, error)
}

// Client manages named indexes on the service.
type Client interface {
	ListIndexes(ctx context.Context) ([]string, error)
	CreateIndex(ctx context.Context, req CreateIndexRequest) error
	DescribeIndex(ctx context.Context, name string) (*models.IndexDescription, error)
	Index(ctx context.Context, name string) (Index, error)
}

// EnsureIndex creates the index described by req unless an index with that name exists.
// Returns true when the index was created.
func EnsureIndex(ctx context.Context, c Client, req CreateIndexRequest) (bool, error) {
	names, err := c.ListIndexes(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == req.Name {
			return false, nil
		}
	}
	if err := c.CreateIndex(ctx, req); err != nil {
		return false, err
	}
	return true, nil
}
