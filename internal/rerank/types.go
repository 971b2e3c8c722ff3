// Package rerank provides cross-encoder relevance scoring for
// candidate documents.
package rerank

import "context"

// Result is a single reranker score, referring to the input document
// by its position in the request.
type Result struct {
	Index int
	Score float64
}

// Reranker scores documents by relevance to a query. Scores are
// comparable only within a single call.
type Reranker interface {
	// Rerank scores all documents against the query. The result
	// covers every input document, ordered by score descending.
	Rerank(ctx context.Context, query string, documents []string) ([]Result, error)

	// Available checks if the reranker is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
