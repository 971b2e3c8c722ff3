package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codequery-dev/codequery/internal/embed"
	"github.com/codequery-dev/codequery/internal/store"
)

// Leg skip reasons reported in telemetry.
const (
	SkipLegDisabled     = "leg_disabled"
	SkipNoIndex         = "no_index"
	SkipNoEmbedder      = "embedder_unavailable"
	SkipSparseFailed    = "sparse_failed"
	SkipDenseFailed     = "dense_failed"
	SkipEmbeddingFailed = "embedding_failed"
)

// RetrievalOutcome carries both legs' results plus per-leg diagnostics.
// A skipped leg contributes an empty result list, never an error: one
// healthy leg is enough to answer a query.
type RetrievalOutcome struct {
	Sparse []*store.SparseResult
	Dense  []*store.DenseResult

	SparseLatencyMs int64
	DenseLatencyMs  int64

	SparseSkipped    bool
	SparseSkipReason string
	DenseSkipped     bool
	DenseSkipReason  string

	EmbeddingCacheHit bool
}

// trackedEmbedder is implemented by cache-wrapping embedders that can
// report whether a call was served from cache.
type trackedEmbedder interface {
	EmbedTracked(ctx context.Context, text string) ([]float32, bool, error)
}

// Retriever runs the sparse and dense legs concurrently against one
// store.
type Retriever struct {
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewRetriever creates a retriever. The embedder may be nil, which
// disables the dense leg.
func NewRetriever(embedder embed.Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, logger: logger}
}

// Retrieve fans out to both legs and waits for both. Leg failures
// degrade to an empty leg; the only returned error is context
// cancellation or deadline expiry.
func (r *Retriever) Retrieve(ctx context.Context, st *store.Store, q NormalizedQuery, cfg RetrievalConfig, filters store.Filters) (*RetrievalOutcome, error) {
	out := &RetrievalOutcome{}

	var g errgroup.Group

	g.Go(func() error {
		return r.sparseLeg(ctx, st, q, cfg, filters, out)
	})
	g.Go(func() error {
		return r.denseLeg(ctx, st, q, cfg, filters, out)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Retriever) sparseLeg(ctx context.Context, st *store.Store, q NormalizedQuery, cfg RetrievalConfig, filters store.Filters, out *RetrievalOutcome) error {
	if cfg.SparseTopK <= 0 {
		out.SparseSkipped = true
		out.SparseSkipReason = SkipLegDisabled
		return nil
	}
	if st.Sparse == nil {
		out.SparseSkipped = true
		out.SparseSkipReason = SkipNoIndex
		return nil
	}

	// The raw query keeps camelCase boundaries intact for the code
	// tokenizer; the analyzer lowercases terms itself.
	start := time.Now()
	results, err := st.Sparse.Search(ctx, q.Raw, cfg.SparseTopK, filters)
	out.SparseLatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("sparse_leg_failed",
			slog.String("store", st.Name),
			slog.String("error", err.Error()))
		out.SparseSkipped = true
		out.SparseSkipReason = SkipSparseFailed
		return nil
	}
	out.Sparse = results
	return nil
}

func (r *Retriever) denseLeg(ctx context.Context, st *store.Store, q NormalizedQuery, cfg RetrievalConfig, filters store.Filters, out *RetrievalOutcome) error {
	if cfg.DenseTopK <= 0 {
		out.DenseSkipped = true
		out.DenseSkipReason = SkipLegDisabled
		return nil
	}
	if st.Dense == nil {
		out.DenseSkipped = true
		out.DenseSkipReason = SkipNoIndex
		return nil
	}
	if r.embedder == nil {
		out.DenseSkipped = true
		out.DenseSkipReason = SkipNoEmbedder
		return nil
	}

	start := time.Now()

	var vec []float32
	var err error
	if te, ok := r.embedder.(trackedEmbedder); ok {
		var hit bool
		vec, hit, err = te.EmbedTracked(ctx, q.Normalized)
		out.EmbeddingCacheHit = hit
	} else {
		vec, err = r.embedder.Embed(ctx, q.Normalized)
	}
	if err != nil {
		out.DenseLatencyMs = time.Since(start).Milliseconds()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("query_embedding_failed",
			slog.String("store", st.Name),
			slog.String("error", err.Error()))
		out.DenseSkipped = true
		out.DenseSkipReason = SkipEmbeddingFailed
		return nil
	}

	results, err := st.Dense.Search(ctx, vec, cfg.DenseTopK, filters)
	out.DenseLatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("dense_leg_failed",
			slog.String("store", st.Name),
			slog.String("error", err.Error()))
		out.DenseSkipped = true
		out.DenseSkipReason = SkipDenseFailed
		return nil
	}
	out.Dense = results
	return nil
}
