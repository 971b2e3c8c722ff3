package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDenseIndex(t *testing.T) *HNSWDenseIndex {
	t.Helper()
	idx, err := NewHNSWDenseIndex(DefaultDenseConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func denseTestData() ([]*Chunk, [][]float32) {
	chunks := []*Chunk{
		{DocID: "a", Path: "src/auth/login.go", Language: "go"},
		{DocID: "b", Path: "src/auth/token.py", Language: "python"},
		{DocID: "c", Path: "src/billing/invoice.go", Language: "go"},
	}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 0, 1, 0},
	}
	return chunks, vectors
}

func TestHNSWDenseIndexSearch(t *testing.T) {
	idx := newTestDenseIndex(t)
	ctx := context.Background()
	chunks, vectors := denseTestData()

	require.NoError(t, idx.Add(ctx, chunks, vectors))
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 2, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Nearest neighbor first, scores normalized to [0,1]
	assert.Equal(t, "a", results[0].DocID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "b", results[1].DocID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWDenseIndexFilters(t *testing.T) {
	idx := newTestDenseIndex(t)
	ctx := context.Background()
	chunks, vectors := denseTestData()
	require.NoError(t, idx.Add(ctx, chunks, vectors))

	t.Run("language filter", func(t *testing.T) {
		results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 3, Filters{Languages: []string{"python"}})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].DocID)
	})

	t.Run("path prefix filter", func(t *testing.T) {
		results, err := idx.Search(ctx, []float32{0.5, 0, 0.5, 0}, 3, Filters{PathPrefix: "src/billing"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "c", results[0].DocID)
	})
}

func TestHNSWDenseIndexDimensionMismatch(t *testing.T) {
	idx := newTestDenseIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx, []*Chunk{{DocID: "x"}}, [][]float32{{1, 0}})
	assert.Error(t, err)

	_, err = idx.Search(ctx, []float32{1, 0}, 1, Filters{})
	assert.Error(t, err)
}

func TestHNSWDenseIndexUpsertAndDelete(t *testing.T) {
	idx := newTestDenseIndex(t)
	ctx := context.Background()
	chunks, vectors := denseTestData()
	require.NoError(t, idx.Add(ctx, chunks, vectors))

	// Re-adding an existing ID replaces its vector
	require.NoError(t, idx.Add(ctx,
		[]*Chunk{{DocID: "a", Path: "src/auth/login.go", Language: "go"}},
		[][]float32{{0, 1, 0, 0}}))
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1, 0, 0}, 1, Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].DocID)

	// Lazy delete removes from results but keeps graph stable
	require.NoError(t, idx.Delete(ctx, []string{"a"}))
	assert.Equal(t, 2, idx.Count())

	results, err = idx.Search(ctx, []float32{0, 1, 0, 0}, 3, Filters{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.DocID)
	}
}

func TestHNSWDenseIndexEmptyGraph(t *testing.T) {
	idx := newTestDenseIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5, Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWDenseIndexSaveLoad(t *testing.T) {
	ctx := context.Background()
	chunks, vectors := denseTestData()

	idx := newTestDenseIndex(t)
	require.NoError(t, idx.Add(ctx, chunks, vectors))

	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, idx.Save(path))

	loaded, err := NewHNSWDenseIndex(DefaultDenseConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = loaded.Close() })
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 3, loaded.Count())

	// Payload filters survive the round trip
	results, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, 3, Filters{Languages: []string{"python"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].DocID)
}
