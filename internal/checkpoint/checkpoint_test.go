package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			st, err := s.Get(ctx, "quora")
			require.NoError(t, err)
			assert.Nil(t, st)
			assert.False(t, st.HasFailure())

			require.NoError(t, s.MarkCommitted(ctx, "quora", 100, 0))
			require.NoError(t, s.MarkCommitted(ctx, "quora", 100, 1))
			st, err = s.Get(ctx, "quora")
			require.NoError(t, err)
			require.NotNil(t, st)
			assert.Equal(t, 100, st.BatchSize)
			assert.Equal(t, 1, st.LastCommitted)
			assert.False(t, st.HasFailure())
			assert.False(t, st.UpdatedAt.IsZero())

			require.NoError(t, s.MarkFailed(ctx, "quora", 100, 2, "service unavailable"))
			st, err = s.Get(ctx, "quora")
			require.NoError(t, err)
			assert.True(t, st.HasFailure())
			assert.Equal(t, 2, st.FailedBatch)
			assert.Equal(t, 1, st.LastCommitted, "a failure keeps the committed cursor")
			assert.Equal(t, "service unavailable", st.FailureReason)

			require.NoError(t, s.MarkCommitted(ctx, "quora", 100, 2))
			st, err = s.Get(ctx, "quora")
			require.NoError(t, err)
			assert.False(t, st.HasFailure())
			assert.Empty(t, st.FailureReason)

			require.NoError(t, s.Reset(ctx, "quora"))
			st, err = s.Get(ctx, "quora")
			require.NoError(t, err)
			assert.Nil(t, st)
		})
	}
}

func TestStore_FailureBeforeAnyCommit(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.MarkFailed(ctx, "fresh", 50, 0, "boom"))
			st, err := s.Get(ctx, "fresh")
			require.NoError(t, err)
			assert.Equal(t, NoBatch, st.LastCommitted)
			assert.Equal(t, 0, st.FailedBatch)
			assert.Equal(t, 50, st.BatchSize)
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.db")
	ctx := context.Background()
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, "quora", 100, 7, "timeout"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	st, err := reopened.Get(ctx, "quora")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 7, st.FailedBatch)
}
