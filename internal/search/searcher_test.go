package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/vectorindex"
)

func newTestSearcher(t *testing.T, texts ...string) (*Searcher, *countingIndex) {
	t.Helper()
	ctx := context.Background()
	enc := embedding.NewMockEncoder(256)
	idx, err := vectorindex.NewMemoryIndex("quora", 256, models.MetricDotProduct)
	require.NoError(t, err)
	docs := make([]*models.Document, len(texts))
	for i, text := range texts {
		vec, err := enc.Encode(ctx, text)
		require.NoError(t, err)
		docs[i] = &models.Document{ID: text, Values: vec, Metadata: map[string]interface{}{"text": text}}
	}
	require.NoError(t, idx.Upsert(ctx, docs))
	counting := &countingIndex{Index: idx}
	return NewSearcher(enc, counting, 10, nil), counting
}

type countingIndex struct {
	vectorindex.Index
	queries int
	last    models.QueryRequest
	err     error
}

func (c *countingIndex) Query(ctx context.Context, req models.QueryRequest) ([]*models.Match, error) {
	c.queries++
	c.last = req
	if c.err != nil {
		return nil, c.err
	}
	return c.Index.Query(ctx, req)
}

func TestSearcher_Search(t *testing.T) {
	s, idx := newTestSearcher(t,
		"which countries welcome digital nomads",
		"how do I bake bread at home",
		"best laptop for programming",
	)
	matches, err := s.Search(context.Background(), "  what countries are favorable to digital nomads? ", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "which countries welcome digital nomads", matches[0].ID)
	assert.Equal(t, "which countries welcome digital nomads", models.MetadataText(matches[0].Metadata))
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	assert.Equal(t, 1, idx.queries)
	assert.True(t, idx.last.IncludeMetadata)
	assert.Equal(t, 2, idx.last.TopK)
}

func TestSearcher_FewerDocumentsThanTopK(t *testing.T) {
	s, _ := newTestSearcher(t, "only one")
	matches, err := s.Search(context.Background(), "one", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSearcher_InvalidInput(t *testing.T) {
	s, idx := newTestSearcher(t, "a")
	ctx := context.Background()

	_, err := s.Search(ctx, "  ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	_, err = s.Search(ctx, "a", 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)
	_, err = s.Search(ctx, "a", 11)
	assert.ErrorIs(t, err, ErrInvalidTopK)
	assert.Zero(t, idx.queries)
}

func TestSearcher_NoRetryOnFailure(t *testing.T) {
	s, idx := newTestSearcher(t, "a")
	boom := errors.New("boom")
	idx.err = boom
	_, err := s.Search(context.Background(), "a", 1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, idx.queries)
}
