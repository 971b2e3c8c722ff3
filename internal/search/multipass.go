package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/codequery-dev/codequery/internal/rerank"
)

// Multi-pass reranker defaults.
const (
	DefaultPass1Timeout = 80 * time.Millisecond
	DefaultPass2Timeout = 150 * time.Millisecond

	// DefaultPass1Output caps the pass-1 output that feeds early-exit
	// analysis and the second pass.
	DefaultPass1Output = 30

	// DefaultEarlyExitScoreRatio triggers the peaked-distribution exit.
	DefaultEarlyExitScoreRatio = 1.5

	// DefaultEarlyExitScoreGap triggers the high-score-gap exit.
	DefaultEarlyExitScoreGap = 0.3
)

// Early-exit reasons reported in RerankStats.
const (
	ExitInsufficientResults = "insufficient_results"
	ExitPeakedDistribution  = "peaked_distribution"
	ExitHighScoreGap        = "high_score_gap"
)

// Score-shape thresholds for early-exit analysis.
const (
	peakedVarianceFloor = 0.1
	flatVarianceCeiling = 0.05
	topClusterFraction  = 0.9
)

// MultiPassRerankerConfig configures the two-pass reranker.
type MultiPassRerankerConfig struct {
	Pass1Timeout        time.Duration
	Pass2Timeout        time.Duration
	Pass1Output         int
	EarlyExitScoreRatio float64
	EarlyExitScoreGap   float64
}

// DefaultMultiPassRerankerConfig returns the documented defaults.
func DefaultMultiPassRerankerConfig() MultiPassRerankerConfig {
	return MultiPassRerankerConfig{
		Pass1Timeout:        DefaultPass1Timeout,
		Pass2Timeout:        DefaultPass2Timeout,
		Pass1Output:         DefaultPass1Output,
		EarlyExitScoreRatio: DefaultEarlyExitScoreRatio,
		EarlyExitScoreGap:   DefaultEarlyExitScoreGap,
	}
}

// MultiPassReranker runs a fast gate pass over the fused candidates,
// analyses the score distribution, and only spends the expensive
// precision pass when the winner is still in doubt. Every failure mode
// degrades to the previous ordering; reranking never fails a request.
type MultiPassReranker struct {
	reranker rerank.Reranker
	config   MultiPassRerankerConfig
	logger   *slog.Logger
}

// NewMultiPassReranker wraps a cross-encoder client.
func NewMultiPassReranker(r rerank.Reranker, cfg MultiPassRerankerConfig) *MultiPassReranker {
	if cfg.Pass1Output <= 0 {
		cfg.Pass1Output = DefaultPass1Output
	}
	if cfg.EarlyExitScoreRatio <= 0 {
		cfg.EarlyExitScoreRatio = DefaultEarlyExitScoreRatio
	}
	if cfg.EarlyExitScoreGap <= 0 {
		cfg.EarlyExitScoreGap = DefaultEarlyExitScoreGap
	}
	return &MultiPassReranker{
		reranker: r,
		config:   cfg,
		logger:   slog.Default(),
	}
}

// Rerank applies up to two cross-encoder passes to the fused list.
// The returned list always contains the same documents as the input;
// only ordering and FinalScore change. FusionScore preserves the
// pre-rerank score for explainability.
func (m *MultiPassReranker) Rerank(ctx context.Context, query string, fused []*HybridSearchResult, cfg RetrievalConfig) ([]*HybridSearchResult, RerankStats) {
	var stats RerankStats

	if m.reranker == nil || cfg.RerankCandidates <= 0 || len(fused) == 0 {
		stats.SkipReason = "reranking_disabled"
		return fused, stats
	}

	// Pass 1: gate.
	pass1Input := min(cfg.RerankCandidates, len(fused))
	stats.Pass1Input = pass1Input

	ranked, ok := m.runPass(ctx, query, fused, pass1Input, m.config.Pass1Timeout, &stats.Pass1LatencyMs, &stats.CacheHit)
	if !ok {
		stats.SkipReason = "pass1_failed"
		return fused, stats
	}
	stats.Pass1Applied = true
	stats.Pass1Output = min(m.config.Pass1Output, pass1Input)

	// Early-exit analysis on the pass-1 output scores.
	headScores := make([]float64, stats.Pass1Output)
	for i := range headScores {
		headScores[i] = ranked[i].FinalScore
	}
	if reason, exit := m.earlyExit(headScores); exit {
		stats.EarlyExit = true
		stats.EarlyExitReason = reason
		return ranked, stats
	}

	// Pass 2: precision.
	if !cfg.UseSecondPass {
		return ranked, stats
	}

	pass2Input := min(cfg.SecondPassCandidates, len(ranked))
	if pass2Input <= 0 {
		return ranked, stats
	}
	stats.Pass2Input = pass2Input

	reranked, ok := m.runPass(ctx, query, ranked, pass2Input, m.config.Pass2Timeout, &stats.Pass2LatencyMs, &stats.CacheHit)
	if !ok {
		// Pass-1 ordering stands.
		return ranked, stats
	}
	stats.Pass2Applied = true
	stats.Pass2Output = pass2Input

	return reranked, stats
}

// trackedReranker is implemented by cache-wrapping rerankers that can
// report whether a call was served from cache.
type trackedReranker interface {
	RerankTracked(ctx context.Context, query string, documents []string) ([]rerank.Result, bool, error)
}

// runPass reranks the leading n results, leaving the tail in place.
// Returns the input unchanged and false on any failure or deadline.
func (m *MultiPassReranker) runPass(ctx context.Context, query string, results []*HybridSearchResult, n int, timeout time.Duration, latencyMs *int64, cacheHit *bool) ([]*HybridSearchResult, bool) {
	start := time.Now()

	passCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	docs := make([]string, n)
	for i := 0; i < n; i++ {
		docs[i] = results[i].Content
	}

	var scored []rerank.Result
	var err error
	if tr, ok := m.reranker.(trackedReranker); ok {
		var hit bool
		scored, hit, err = tr.RerankTracked(passCtx, query, docs)
		if hit {
			*cacheHit = true
		}
	} else {
		scored, err = m.reranker.Rerank(passCtx, query, docs)
	}
	*latencyMs = time.Since(start).Milliseconds()
	if err != nil {
		m.logger.Warn("rerank_pass_failed",
			slog.Int("candidates", n),
			slog.String("error", err.Error()))
		return results, false
	}
	if len(scored) != n {
		m.logger.Warn("rerank_pass_incomplete",
			slog.Int("expected", n),
			slog.Int("got", len(scored)))
		return results, false
	}

	// The scoring service owns the indices; an out-of-range or repeated
	// index is a malformed response and degrades like any other failure.
	seen := make([]bool, n)
	for _, s := range scored {
		if s.Index < 0 || s.Index >= n || seen[s.Index] {
			m.logger.Warn("rerank_pass_invalid_index",
				slog.Int("index", s.Index),
				slog.Int("candidates", n))
			return results, false
		}
		seen[s.Index] = true
	}

	// Pass ordering replaces the leading prefix; the tail appends in
	// its existing order.
	out := make([]*HybridSearchResult, 0, len(results))
	for _, s := range scored {
		r := results[s.Index]
		if r.FusionScore == 0 {
			r.FusionScore = r.FinalScore
		}
		r.FinalScore = s.Score
		out = append(out, r)
	}
	out = append(out, results[n:]...)
	return out, true
}

// earlyExit decides whether the pass-1 score distribution already
// identifies a confident winner.
func (m *MultiPassReranker) earlyExit(scores []float64) (string, bool) {
	if len(scores) < 2 {
		return ExitInsufficientResults, true
	}

	top := scores[0]
	second := scores[1]
	gap := top - second
	ratio := float64(scoreRatioSentinel)
	if second > 0 {
		ratio = top / second
	}

	topClusterSize := 0
	var mean float64
	for _, s := range scores {
		if s >= topClusterFraction*top {
			topClusterSize++
		}
		mean += s
	}
	mean /= float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	normalizedVariance := 0.0
	if mean > 0 {
		normalizedVariance = variance / (mean * mean)
	}

	// A flat distribution means the reranker cannot separate the
	// candidates; the precision pass must run.
	if normalizedVariance < flatVarianceCeiling {
		return "", false
	}

	peaked := topClusterSize == 1 && normalizedVariance > peakedVarianceFloor
	if peaked && ratio > m.config.EarlyExitScoreRatio {
		return ExitPeakedDistribution, true
	}
	if gap > m.config.EarlyExitScoreGap {
		return ExitHighScoreGap, true
	}

	return "", false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
