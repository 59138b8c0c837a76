package loader

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/semsearch/internal/models"
)

func makeDocs(n int) []*models.Document {
	docs := make([]*models.Document, n)
	for i := range docs {
		docs[i] = &models.Document{ID: fmt.Sprintf("%d", i), Values: []float32{float32(i), 1}}
	}
	return docs
}

func TestPartition(t *testing.T) {
	batches := Partition(makeDocs(250), 100)
	require.Len(t, batches, 3)
	assert.Equal(t, 100, batches[0].Len())
	assert.Equal(t, 100, batches[1].Len())
	assert.Equal(t, 50, batches[2].Len())
	assert.Equal(t, "200", batches[2].Documents[0].ID)

	assert.Nil(t, Partition(nil, 100))
	assert.Nil(t, Partition(makeDocs(3), 0))
}

func TestPartition_CoversEveryDocumentOnceInOrder(t *testing.T) {
	for n := 0; n <= 23; n++ {
		for size := 1; size <= 7; size++ {
			docs := makeDocs(n)
			batches := Partition(docs, size)
			require.Len(t, batches, BatchCount(n, size), "n=%d size=%d", n, size)

			next := 0
			for i, b := range batches {
				assert.Equal(t, i, b.Index)
				assert.LessOrEqual(t, b.Len(), size)
				if i < len(batches)-1 {
					assert.Equal(t, size, b.Len())
				}
				for _, d := range b.Documents {
					assert.Same(t, docs[next], d)
					next++
				}
			}
			assert.Equal(t, n, next, "n=%d size=%d", n, size)
		}
	}
}

func TestPartition_BatchesDoNotAlias(t *testing.T) {
	docs := makeDocs(4)
	batches := Partition(docs, 2)
	grown := append(batches[0].Documents, &models.Document{ID: "x"})
	assert.Equal(t, "2", docs[2].ID)
	assert.Equal(t, "x", grown[2].ID)
}

func TestBatchCount(t *testing.T) {
	assert.Equal(t, 0, BatchCount(0, 100))
	assert.Equal(t, 1, BatchCount(1, 100))
	assert.Equal(t, 1, BatchCount(100, 100))
	assert.Equal(t, 2, BatchCount(101, 100))
	assert.Equal(t, 800, BatchCount(80000, 100))
	assert.Equal(t, 0, BatchCount(10, 0))
}

func TestResumePoint(t *testing.T) {
	tests := []struct {
		count int64
		size  int
		want  int
	}{
		{0, 100, 0},
		{99, 100, 0},
		{100, 100, 1},
		{150, 100, 1},
		{250, 100, 2},
		{80000, 100, 800},
		{-5, 100, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResumePoint(tt.count, tt.size), "count=%d size=%d", tt.count, tt.size)
	}
}
