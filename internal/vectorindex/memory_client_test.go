package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/semsearch/internal/models"
)

func TestMemoryClient_CreateListDescribe(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	req := CreateIndexRequest{Name: "quora", Dimension: 4, Metric: models.MetricDotProduct}
	require.NoError(t, c.CreateIndex(ctx, req))
	err := c.CreateIndex(ctx, req)
	assert.True(t, errors.Is(err, ErrIndexExists))

	names, err := c.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"quora"}, names)

	d, err := c.DescribeIndex(ctx, "quora")
	require.NoError(t, err)
	assert.Equal(t, 4, d.Dimension)

	_, err = c.Index(ctx, "missing")
	assert.True(t, errors.Is(err, ErrIndexNotFound))
}

func TestEnsureIndex(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	req := CreateIndexRequest{Name: "quora", Dimension: 4, Metric: models.MetricCosine}
	created, err := EnsureIndex(ctx, c, req)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = EnsureIndex(ctx, c, req)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMemoryClient_SaveAllLoadAll(t *testing.T) {
	dir := t.TempDir()
	c := NewMemoryClient()
	ctx := context.Background()
	require.NoError(t, c.CreateIndex(ctx, CreateIndexRequest{Name: "a", Dimension: 2, Metric: models.MetricDotProduct}))
	idx, err := c.Index(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []*models.Document{doc("1", 1, 0)}))
	require.NoError(t, c.SaveAll(dir))

	fresh := NewMemoryClient()
	n, err := fresh.LoadAll(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	m, err := fresh.Memory("a")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Size())

	n, err = NewMemoryClient().LoadAll(dir + "/missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
