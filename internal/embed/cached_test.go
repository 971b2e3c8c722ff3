package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts inner calls.
type countingEmbedder struct {
	*StaticEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(16)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// First call misses, second hits
	v1, err := cached.Embed(ctx, "parse query")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "parse query")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.calls.Load())

	hits, misses := cached.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(16)}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, int64(1), inner.calls.Load())

	// Batch with one cached and two new texts only embeds the new ones
	vecs, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, int64(3), inner.calls.Load())

	for _, v := range vecs {
		assert.Len(t, v, 16)
	}
}

func TestCachedEmbedderKeyIncludesModel(t *testing.T) {
	a := NewCachedEmbedder(NewStaticEmbedder(8), 10)
	b := NewCachedEmbedder(NewStaticEmbedder(8), 10)

	assert.Equal(t, a.cacheKey("query"), b.cacheKey("query"))
	assert.NotEqual(t, a.cacheKey("query"), a.cacheKey("other"))
}

func TestStaticEmbedderDeterministic(t *testing.T) {
	s := NewStaticEmbedder(32)
	ctx := context.Background()

	v1, err := s.Embed(ctx, "hybrid search")
	require.NoError(t, err)
	v2, err := s.Embed(ctx, "hybrid search")
	require.NoError(t, err)
	v3, err := s.Embed(ctx, "something else")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, v3)
	assert.Len(t, v1, 32)

	// Unit length
	var sum float64
	for _, x := range v1 {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
}
