package rerank

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lengthReranker scores documents by length and counts calls.
type lengthReranker struct {
	calls atomic.Int64
}

func (f *lengthReranker) Rerank(_ context.Context, _ string, documents []string) ([]Result, error) {
	f.calls.Add(1)
	results := make([]Result, len(documents))
	for i, d := range documents {
		results[i] = Result{Index: i, Score: float64(len(d))}
	}
	return results, nil
}

func (f *lengthReranker) Available(context.Context) bool { return true }
func (f *lengthReranker) Close() error                   { return nil }

func TestCachedRerankerHit(t *testing.T) {
	inner := &lengthReranker{}
	cached := NewCachedReranker(inner, 10)
	ctx := context.Background()

	docs := []string{"short", "a longer document"}

	r1, err := cached.Rerank(ctx, "query", docs)
	require.NoError(t, err)
	r2, err := cached.Rerank(ctx, "query", docs)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, int64(1), inner.calls.Load())

	hits, misses := cached.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedRerankerKeySensitivity(t *testing.T) {
	inner := &lengthReranker{}
	cached := NewCachedReranker(inner, 10)
	ctx := context.Background()

	_, err := cached.Rerank(ctx, "query", []string{"aa", "bb"})
	require.NoError(t, err)

	// Different query misses
	_, err = cached.Rerank(ctx, "other", []string{"aa", "bb"})
	require.NoError(t, err)

	// Different document order misses
	_, err = cached.Rerank(ctx, "query", []string{"bb", "aa"})
	require.NoError(t, err)

	// Boundary shift must not collide ("a" + "ab" vs "aa" + "b")
	_, err = cached.Rerank(ctx, "query", []string{"a", "ab"})
	require.NoError(t, err)

	assert.Equal(t, int64(4), inner.calls.Load())
}

func TestCachedRerankerReturnsCopy(t *testing.T) {
	inner := &lengthReranker{}
	cached := NewCachedReranker(inner, 10)
	ctx := context.Background()

	r1, err := cached.Rerank(ctx, "query", []string{"aa", "bbbb"})
	require.NoError(t, err)

	// Mutating the returned slice must not poison the cache
	r1[0].Score = -1

	r2, err := cached.Rerank(ctx, "query", []string{"aa", "bbbb"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), r2[0].Score)
}
