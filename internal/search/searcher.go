// Package search answers free-text queries against a loaded vector index.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/vectorindex"
	"github.com/hyperjump/semsearch/pkg/utils"
)

var (
	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("query text is empty")
	// ErrInvalidTopK is returned when top-k is not positive or above the configured maximum.
	ErrInvalidTopK = errors.New("top_k out of range")
)

// Searcher encodes query text and asks the index for the nearest documents.
type Searcher struct {
	encoder embedding.Encoder
	index   vectorindex.Index
	maxTopK int
	logger  *zap.Logger
}

// NewSearcher returns a Searcher. A non-positive maxTopK leaves top-k unbounded above.
func NewSearcher(encoder embedding.Encoder, index vectorindex.Index, maxTopK int, logger *zap.Logger) *Searcher {
	return &Searcher{
		encoder: encoder,
		index:   index,
		maxTopK: maxTopK,
		logger:  utils.OrNop(logger),
	}
}

// Search encodes text once and runs a single query with metadata. Failures are returned
// as is, without retries.
func (s *Searcher) Search(ctx context.Context, text string, topK int) ([]*models.Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 || (s.maxTopK > 0 && topK > s.maxTopK) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, topK)
	}
	start := time.Now()
	vec, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	matches, err := s.index.Query(ctx, models.QueryRequest{
		Vector:          vec,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	s.logger.Debug("search completed",
		zap.String("query", text),
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)))
	return matches, nil
}
