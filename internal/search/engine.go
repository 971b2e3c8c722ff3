package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codequery-dev/codequery/internal/embed"
	qerrors "github.com/codequery-dev/codequery/internal/errors"
	"github.com/codequery-dev/codequery/internal/store"
	"github.com/codequery-dev/codequery/internal/telemetry"
)

// DefaultRequestTimeout bounds one search request end to end.
const DefaultRequestTimeout = 2 * time.Second

// Engine is the search orchestrator. It owns the full pipeline:
// validation, normalization, intent classification, strategy selection,
// parallel retrieval, fusion, multi-pass reranking, and post-rank
// processing. One engine serves all stores in its registry.
type Engine struct {
	registry   *store.Registry
	embedder   embed.Embedder
	retriever  *Retriever
	classifier *RuleClassifier
	fuser      *Fuser
	multipass  *MultiPassReranker
	recorder   *telemetry.Recorder
	logger     *slog.Logger
	timeout    time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEmbedder sets the query embedder. Without one the dense leg is
// skipped on every query.
func WithEmbedder(e embed.Embedder) EngineOption {
	return func(eng *Engine) { eng.embedder = e }
}

// WithReranker sets the multi-pass reranker. Without one results keep
// their fusion order.
func WithReranker(m *MultiPassReranker) EngineOption {
	return func(eng *Engine) { eng.multipass = m }
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(rec *telemetry.Recorder) EngineOption {
	return func(eng *Engine) { eng.recorder = rec }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(eng *Engine) { eng.logger = l }
}

// WithRequestTimeout overrides the per-request deadline.
func WithRequestTimeout(d time.Duration) EngineOption {
	return func(eng *Engine) {
		if d > 0 {
			eng.timeout = d
		}
	}
}

// WithFuser overrides the fuser, for tuned RRF constants.
func WithFuser(f *Fuser) EngineOption {
	return func(eng *Engine) { eng.fuser = f }
}

// NewEngine creates a search engine over the given registry.
func NewEngine(registry *store.Registry, opts ...EngineOption) *Engine {
	eng := &Engine{
		registry:   registry,
		classifier: NewRuleClassifier(0),
		fuser:      NewFuser(),
		logger:     slog.Default(),
		timeout:    DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(eng)
	}
	eng.retriever = NewRetriever(eng.embedder, eng.logger)
	return eng
}

// Search runs the full pipeline for one request against a named store.
// The request is mutated in place by ApplyDefaults so transports can
// echo the effective parameters.
func (e *Engine) Search(ctx context.Context, storeName string, req *SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	st, ok := e.registry.Get(storeName)
	if !ok {
		return nil, qerrors.StoreNotFound(storeName)
	}

	q, err := Normalize(req.Query)
	if err != nil {
		return nil, err
	}

	cls := e.classifier.Classify(q)
	cfg := BuildConfig(cls, OverridesFromRequest(req))

	var filters store.Filters
	if req.Filters != nil {
		filters = store.Filters{
			PathPrefix: req.Filters.PathPrefix,
			Languages:  req.Filters.Languages,
		}.Normalize()
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	outcome, err := e.retriever.Retrieve(searchCtx, st, q, cfg, filters)
	if err != nil {
		if ctx.Err() != nil {
			return nil, qerrors.Cancelled(ctx.Err())
		}
		return nil, qerrors.New(qerrors.ErrCodeDeadlineExceeded, "search deadline exceeded", err)
	}

	chunks := e.loadChunks(searchCtx, st, outcome)

	fusionStart := time.Now()
	fused := e.fuser.Fuse(outcome.Sparse, outcome.Dense, chunks, q, FuseOptions{
		SparseWeight: cfg.SparseWeight,
		DenseWeight:  cfg.DenseWeight,
		GroupByFile:  req.GroupByFile,
	})
	fusionLatencyMs := time.Since(fusionStart).Milliseconds()
	fusionStats := ComputeFusionStats(fused)

	rerankEnabled := e.multipass != nil && cfg.RerankCandidates > 0
	var rerankStats RerankStats
	results := fused
	if e.multipass != nil {
		results, rerankStats = e.multipass.Rerank(searchCtx, q.Normalized, fused, cfg)
	} else {
		rerankStats.SkipReason = "reranking_disabled"
	}

	results, postStats := PostRank(results, PostRankOptionsFromRequest(req))

	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	if !*req.IncludeContent {
		for _, r := range results {
			r.Content = ""
		}
	}

	resp := &SearchResponse{
		RequestID:    requestID,
		Query:        req.Query,
		Results:      results,
		Total:        len(results),
		Store:        storeName,
		SearchTimeMs: time.Since(start).Milliseconds(),
		Intelligence: Intelligence{
			Intent:     cls.Intent,
			Difficulty: cls.Difficulty,
			Strategy:   cfg.Strategy,
			Confidence: cls.Confidence,
		},
		Reranking: RerankingInfo{
			Enabled:     rerankEnabled,
			Candidates:  cfg.RerankCandidates,
			RerankStats: rerankStats,
		},
		Postrank: postStats,
	}

	// A client that went away gets no response and no telemetry entry.
	if ctx.Err() != nil {
		return nil, qerrors.Cancelled(ctx.Err())
	}
	if e.recorder != nil {
		e.recorder.Record(e.buildRecord(requestID, start, storeName, q, cls, cfg, outcome, fused, fusionStats, fusionLatencyMs, rerankEnabled, rerankStats, resp))
	}

	e.logger.Debug("search_completed",
		slog.String("request_id", requestID),
		slog.String("store", storeName),
		slog.String("intent", string(cls.Intent)),
		slog.String("strategy", string(cfg.Strategy)),
		slog.Int("results", resp.Total),
		slog.Int64("latency_ms", resp.SearchTimeMs))

	return resp, nil
}

// Stores returns the searchable store names.
func (e *Engine) Stores() []string {
	return e.registry.Names()
}

// loadChunks resolves the union of both legs' doc IDs to chunk
// metadata. Lookup failures degrade to bare results without
// provenance.
func (e *Engine) loadChunks(ctx context.Context, st *store.Store, outcome *RetrievalOutcome) map[string]*store.Chunk {
	byID := make(map[string]*store.Chunk)
	if st.Chunks == nil {
		return byID
	}

	seen := make(map[string]struct{}, len(outcome.Sparse)+len(outcome.Dense))
	ids := make([]string, 0, len(outcome.Sparse)+len(outcome.Dense))
	for _, r := range outcome.Sparse {
		if _, dup := seen[r.DocID]; !dup {
			seen[r.DocID] = struct{}{}
			ids = append(ids, r.DocID)
		}
	}
	for _, r := range outcome.Dense {
		if _, dup := seen[r.DocID]; !dup {
			seen[r.DocID] = struct{}{}
			ids = append(ids, r.DocID)
		}
	}
	if len(ids) == 0 {
		return byID
	}

	chunks, err := st.Chunks.GetChunks(ctx, ids)
	if err != nil {
		e.logger.Warn("chunk_lookup_failed",
			slog.String("store", st.Name),
			slog.Int("ids", len(ids)),
			slog.String("error", err.Error()))
		return byID
	}
	for _, c := range chunks {
		byID[c.DocID] = c
	}
	return byID
}

func (e *Engine) buildRecord(
	requestID string,
	start time.Time,
	storeName string,
	q NormalizedQuery,
	cls IntentClassification,
	cfg RetrievalConfig,
	outcome *RetrievalOutcome,
	fused []*HybridSearchResult,
	fusionStats FusionStats,
	fusionLatencyMs int64,
	rerankEnabled bool,
	rerankStats RerankStats,
	resp *SearchResponse,
) telemetry.Record {
	sparseScores := make([]float64, len(outcome.Sparse))
	for i, r := range outcome.Sparse {
		sparseScores[i] = r.Score
	}
	denseScores := make([]float64, len(outcome.Dense))
	for i, r := range outcome.Dense {
		denseScores[i] = r.Score
	}
	sparseStats := telemetry.ComputeScoreStats(sparseScores)
	denseStats := telemetry.ComputeScoreStats(denseScores)

	var sparseTop, denseTop float64
	if len(sparseScores) > 0 {
		sparseTop = sparseScores[0]
	}
	if len(denseScores) > 0 {
		denseTop = denseScores[0]
	}

	return telemetry.Record{
		RequestID: requestID,
		Timestamp: start,
		Store:     storeName,
		Query:     q.Raw,
		Intent:    string(cls.Intent),
		Strategy:  string(cfg.Strategy),
		Sparse: telemetry.LegStats{
			Count:      len(outcome.Sparse),
			LatencyMs:  outcome.SparseLatencyMs,
			TopScore:   sparseTop,
			StdDev:     sparseStats.StdDev,
			Skipped:    outcome.SparseSkipped,
			SkipReason: outcome.SparseSkipReason,
		},
		Dense: telemetry.LegStats{
			Count:      len(outcome.Dense),
			LatencyMs:  outcome.DenseLatencyMs,
			TopScore:   denseTop,
			StdDev:     denseStats.StdDev,
			Skipped:    outcome.DenseSkipped,
			SkipReason: outcome.DenseSkipReason,
		},
		Fusion: telemetry.FusionStats{
			Count:       len(fused),
			LatencyMs:   fusionLatencyMs,
			TopScore:    fusionStats.TopScore,
			SecondScore: fusionStats.SecondScore,
			ScoreGap:    fusionStats.ScoreGap,
			ScoreRatio:  fusionStats.ScoreRatio,
		},
		Rerank: telemetry.RerankStats{
			Enabled:    rerankEnabled,
			Candidates: cfg.RerankCandidates,
			LatencyMs:  rerankStats.Pass1LatencyMs + rerankStats.Pass2LatencyMs,
			Skipped:    rerankEnabled && !rerankStats.Pass1Applied,
			SkipReason: rerankStats.SkipReason,
		},
		Cache: telemetry.CacheStats{
			EmbeddingHit: outcome.EmbeddingCacheHit,
			RerankHit:    rerankStats.CacheHit,
		},
		TotalLatencyMs: resp.SearchTimeMs,
		ResultCount:    resp.Total,
	}
}
