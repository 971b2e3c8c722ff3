// Package store provides the retrieval-side index drivers (BM25 sparse,
// HNSW dense), chunk metadata lookup, and the named store registry.
package store

import (
	"context"
	"strings"
)

// Chunk represents a retrievable unit of code with provenance metadata.
// Chunks are produced by an external extractor at indexing time; the
// Content field is the exact text used for both indexing and reranking.
type Chunk struct {
	DocID     string   // Unique within a store
	Path      string   // Relative path, '/'-separated
	Language  string   // Lowercase language name (go, python, ...)
	StartLine int      // 1-indexed
	EndLine   int      // Inclusive, >= StartLine
	Content   string   // Exact indexed text
	Symbols   []string // Identifiers extracted at index time, in order
	Store     string   // Owning store name
}

// Filters restricts retrieval by path prefix and language.
type Filters struct {
	// PathPrefix is a '/'-normalized prefix; empty means no path filter.
	PathPrefix string
	// Languages are lowercase language names; empty means no language filter.
	Languages []string
}

// Normalize canonicalizes path separators and lowercases languages.
func (f Filters) Normalize() Filters {
	out := Filters{
		PathPrefix: strings.ReplaceAll(f.PathPrefix, `\`, "/"),
	}
	if len(f.Languages) > 0 {
		out.Languages = make([]string, len(f.Languages))
		for i, l := range f.Languages {
			out.Languages[i] = strings.ToLower(strings.TrimSpace(l))
		}
	}
	return out
}

// Empty reports whether no filtering is requested.
func (f Filters) Empty() bool {
	return f.PathPrefix == "" && len(f.Languages) == 0
}

// Match reports whether a chunk's path and language pass the filters.
// Paths are compared after canonicalizing separators to '/'.
func (f Filters) Match(path, language string) bool {
	if f.PathPrefix != "" {
		p := strings.ReplaceAll(path, `\`, "/")
		if !strings.HasPrefix(p, f.PathPrefix) {
			return false
		}
	}
	if len(f.Languages) > 0 {
		lang := strings.ToLower(language)
		found := false
		for _, l := range f.Languages {
			if l == lang {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SparseResult represents a single BM25 search result.
type SparseResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// DenseResult represents a single ANN search result.
type DenseResult struct {
	DocID string
	Score float64 // Normalized similarity (0-1)
}

// SparseIndex provides keyword search using BM25 scoring.
type SparseIndex interface {
	// Index adds chunks to the index.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns at most topK chunks matching query, ordered by
	// BM25 score descending, after applying filters.
	Search(ctx context.Context, query string, topK int, filters Filters) ([]*SparseResult, error)

	// Delete removes chunks from the index by doc ID.
	Delete(ctx context.Context, docIDs []string) error

	// DocCount returns the number of indexed documents.
	DocCount() int

	// Close releases resources.
	Close() error
}

// DenseIndex provides approximate-nearest-neighbor search over embeddings.
type DenseIndex interface {
	// Add inserts vectors for chunks. Existing doc IDs are replaced.
	Add(ctx context.Context, chunks []*Chunk, vectors [][]float32) error

	// Search finds the topK nearest chunks to the query vector,
	// ordered by similarity descending, after applying payload filters.
	Search(ctx context.Context, query []float32, topK int, filters Filters) ([]*DenseResult, error)

	// Delete removes vectors by doc ID.
	Delete(ctx context.Context, docIDs []string) error

	// Count returns the number of vectors.
	Count() int

	// Close releases resources.
	Close() error
}

// ChunkSource resolves doc IDs to full chunk records.
type ChunkSource interface {
	// GetChunks fetches chunks by ID in one batch. Missing IDs are
	// silently omitted from the result.
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)

	// Close releases resources.
	Close() error
}

// DefaultCodeStopWords contains programming keywords filtered out
// during sparse tokenization.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// SparseConfig configures the BM25 sparse index.
type SparseConfig struct {
	// StopWords is a list of words to filter out during tokenization.
	StopWords []string
}

// DefaultSparseConfig returns default sparse index configuration.
func DefaultSparseConfig() SparseConfig {
	return SparseConfig{StopWords: DefaultCodeStopWords}
}

// DenseConfig configures the HNSW dense index.
type DenseConfig struct {
	// Dimensions is the embedding dimension (1536 for the default provider).
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultDenseConfig returns sensible defaults for the dense index.
func DefaultDenseConfig(dimensions int) DenseConfig {
	return DenseConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}
