package rerank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of rerank result sets to keep.
const DefaultCacheSize = 500

// CachedReranker wraps a Reranker with an LRU cache keyed on the query
// plus the exact document sequence. Repeated identical requests skip
// the scoring service entirely.
type CachedReranker struct {
	inner Reranker
	cache *lru.Cache[string, []Result]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedReranker creates a cached reranker wrapping the given reranker.
func NewCachedReranker(inner Reranker, cacheSize int) *CachedReranker {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []Result](cacheSize)
	return &CachedReranker{
		inner: inner,
		cache: cache,
	}
}

// cacheKey hashes the query and every document, with NUL separators so
// boundaries cannot collide.
func (c *CachedReranker) cacheKey(query string, documents []string) string {
	h := sha256.New()
	h.Write([]byte(query))
	for _, d := range documents {
		h.Write([]byte{0})
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Rerank returns cached scores if available, otherwise delegates.
func (c *CachedReranker) Rerank(ctx context.Context, query string, documents []string) ([]Result, error) {
	results, _, err := c.RerankTracked(ctx, query, documents)
	return results, err
}

// RerankTracked is Rerank plus a flag reporting whether the result
// came from cache.
func (c *CachedReranker) RerankTracked(ctx context.Context, query string, documents []string) ([]Result, bool, error) {
	if len(documents) == 0 {
		return []Result{}, false, nil
	}

	key := c.cacheKey(query, documents)
	if cached, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		out := make([]Result, len(cached))
		copy(out, cached)
		return out, true, nil
	}
	c.misses.Add(1)

	results, err := c.inner.Rerank(ctx, query, documents)
	if err != nil {
		return nil, false, err
	}

	stored := make([]Result, len(results))
	copy(stored, results)
	c.cache.Add(key, stored)

	return results, false, nil
}

// Stats returns cumulative cache hits and misses.
func (c *CachedReranker) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Available checks if the inner reranker is ready.
func (c *CachedReranker) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the inner reranker.
func (c *CachedReranker) Close() error {
	return c.inner.Close()
}

var _ Reranker = (*CachedReranker)(nil)
