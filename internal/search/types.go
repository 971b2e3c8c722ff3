// Package search implements the hybrid query pipeline: normalization,
// intent classification, strategy selection, parallel sparse/dense
// retrieval, weighted RRF fusion, multi-pass reranking, and post-rank
// processing.
package search

import (
	qerrors "github.com/codequery-dev/codequery/internal/errors"
)

// Intent labels what the user is trying to do with a query.
type Intent string

const (
	// IntentNavigational is a lookup of a known symbol, path, or literal.
	IntentNavigational Intent = "navigational"
	// IntentFactual is a direct question with a specific answer.
	IntentFactual Intent = "factual"
	// IntentExploratory is an open-ended conceptual question.
	IntentExploratory Intent = "exploratory"
	// IntentAnalytical asks for comparison or multi-step reasoning.
	IntentAnalytical Intent = "analytical"
)

// Difficulty estimates how much retrieval effort a query needs.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Strategy names a retrieval preset.
type Strategy string

const (
	StrategySparseOnly Strategy = "sparse-only"
	StrategyBalanced   Strategy = "balanced"
	StrategyDenseHeavy Strategy = "dense-heavy"
	StrategyDeepRerank Strategy = "deep-rerank"
)

// IntentClassification is the classifier's verdict for one query.
type IntentClassification struct {
	Intent     Intent
	Difficulty Difficulty
	Confidence float64
	Signals    []string
}

// RetrievalConfig parameterizes one retrieval run. Weights are fusion
// coefficients and need not sum to 1.
type RetrievalConfig struct {
	Strategy             Strategy
	SparseTopK           int
	DenseTopK            int
	SparseWeight         float64
	DenseWeight          float64
	RerankCandidates     int
	UseSecondPass        bool
	SecondPassCandidates int
}

// Request limits and defaults.
const (
	MaxQueryLength      = 2048
	DefaultTopK         = 20
	MaxTopK             = 100
	DefaultMaxChunks    = 3
	MaxChunksPerFileCap = 10
	DefaultDedupCutoff  = 0.85
	DefaultLambda       = 0.7
)

// SearchFilters restricts results by path prefix and language.
type SearchFilters struct {
	PathPrefix string   `json:"path_prefix,omitempty"`
	Languages  []string `json:"languages,omitempty"`
}

// SearchRequest is the canonical search input shared by all transports.
// Pointer fields distinguish "absent" from zero values; defaults are
// filled by ApplyDefaults.
type SearchRequest struct {
	Query            string         `json:"query"`
	TopK             int            `json:"top_k,omitempty"`
	Filters          *SearchFilters `json:"filters,omitempty"`
	EnableReranking  *bool          `json:"enable_reranking,omitempty"`
	RerankCandidates *int           `json:"rerank_candidates,omitempty"`
	SparseWeight     *float64       `json:"sparse_weight,omitempty"`
	DenseWeight      *float64       `json:"dense_weight,omitempty"`
	GroupByFile      bool           `json:"group_by_file,omitempty"`
	MaxChunksPerFile int            `json:"max_chunks_per_file,omitempty"`
	EnableDedup      *bool          `json:"enable_dedup,omitempty"`
	DedupThreshold   *float64       `json:"dedup_threshold,omitempty"`
	EnableDiversity  *bool          `json:"enable_diversity,omitempty"`
	DiversityLambda  *float64       `json:"diversity_lambda,omitempty"`
	IncludeContent   *bool          `json:"include_content,omitempty"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (r *SearchRequest) ApplyDefaults() {
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.MaxChunksPerFile == 0 {
		r.MaxChunksPerFile = DefaultMaxChunks
	}
	if r.EnableReranking == nil {
		r.EnableReranking = boolPtr(true)
	}
	if r.EnableDedup == nil {
		r.EnableDedup = boolPtr(true)
	}
	if r.DedupThreshold == nil {
		r.DedupThreshold = floatPtr(DefaultDedupCutoff)
	}
	if r.EnableDiversity == nil {
		r.EnableDiversity = boolPtr(true)
	}
	if r.DiversityLambda == nil {
		r.DiversityLambda = floatPtr(DefaultLambda)
	}
	if r.IncludeContent == nil {
		r.IncludeContent = boolPtr(true)
	}
}

// Validate checks field ranges. Call after ApplyDefaults.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return qerrors.InvalidQuery("query must not be empty")
	}
	if len(r.Query) > MaxQueryLength {
		return qerrors.InvalidQuery("query exceeds 2048 characters")
	}
	if r.TopK < 1 || r.TopK > MaxTopK {
		return qerrors.New(qerrors.ErrCodeInvalidTopK, "top_k must be between 1 and 100", nil)
	}
	if r.MaxChunksPerFile < 1 || r.MaxChunksPerFile > MaxChunksPerFileCap {
		return qerrors.New(qerrors.ErrCodeInvalidFilter, "max_chunks_per_file must be between 1 and 10", nil)
	}
	if r.SparseWeight != nil && (*r.SparseWeight < 0 || *r.SparseWeight > 1) {
		return qerrors.New(qerrors.ErrCodeInvalidFilter, "sparse_weight must be in [0,1]", nil)
	}
	if r.DenseWeight != nil && (*r.DenseWeight < 0 || *r.DenseWeight > 1) {
		return qerrors.New(qerrors.ErrCodeInvalidFilter, "dense_weight must be in [0,1]", nil)
	}
	if r.DedupThreshold != nil && (*r.DedupThreshold < 0 || *r.DedupThreshold > 1) {
		return qerrors.New(qerrors.ErrCodeInvalidFilter, "dedup_threshold must be in [0,1]", nil)
	}
	if r.DiversityLambda != nil && (*r.DiversityLambda < 0 || *r.DiversityLambda > 1) {
		return qerrors.New(qerrors.ErrCodeInvalidFilter, "diversity_lambda must be in [0,1]", nil)
	}
	if r.RerankCandidates != nil && *r.RerankCandidates < 0 {
		return qerrors.New(qerrors.ErrCodeInvalidFilter, "rerank_candidates must be non-negative", nil)
	}
	return nil
}

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

// HybridSearchResult is one ranked code span with full scoring
// provenance. Rank 0 means the leg did not retrieve the document.
// Aggregation fields are populated only when file grouping is on.
type HybridSearchResult struct {
	DocID     string   `json:"doc_id"`
	Path      string   `json:"path"`
	Language  string   `json:"language"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Content   string   `json:"content,omitempty"`
	Symbols   []string `json:"symbols,omitempty"`

	SparseScore  float64  `json:"sparse_score"`
	DenseScore   float64  `json:"dense_score"`
	SparseRank   int      `json:"sparse_rank"`
	DenseRank    int      `json:"dense_rank"`
	FinalScore   float64  `json:"final_score"`
	FusionScore  float64  `json:"fusion_score,omitempty"`
	MatchedTerms []string `json:"matched_terms,omitempty"`

	IsRepresentative bool    `json:"is_representative,omitempty"`
	RelatedChunks    int     `json:"related_chunks,omitempty"`
	FileScore        float64 `json:"file_score,omitempty"`
	ChunkRankInFile  int     `json:"chunk_rank_in_file,omitempty"`
}

// FusionStats summarizes the fused score distribution.
// ScoreRatio uses 999 as a sentinel when the second score is 0.
type FusionStats struct {
	TopScore    float64 `json:"top_score"`
	SecondScore float64 `json:"second_score"`
	ScoreGap    float64 `json:"score_gap"`
	ScoreRatio  float64 `json:"score_ratio"`
}

// RerankStats reports what the multi-pass reranker did for one request.
type RerankStats struct {
	Pass1Applied    bool   `json:"pass1_applied"`
	Pass1LatencyMs  int64  `json:"pass1_latency_ms"`
	Pass1Input      int    `json:"pass1_input"`
	Pass1Output     int    `json:"pass1_output"`
	Pass2Applied    bool   `json:"pass2_applied"`
	Pass2LatencyMs  int64  `json:"pass2_latency_ms"`
	Pass2Input      int    `json:"pass2_input"`
	Pass2Output     int    `json:"pass2_output"`
	EarlyExit       bool   `json:"early_exit"`
	EarlyExitReason string `json:"early_exit_reason,omitempty"`
	SkipReason      string `json:"skip_reason,omitempty"`

	// CacheHit is telemetry-only: true when any pass was served from
	// the rerank cache.
	CacheHit bool `json:"-"`
}

// RerankingInfo is the response section describing rerank behaviour.
type RerankingInfo struct {
	Enabled    bool `json:"enabled"`
	Candidates int  `json:"candidates"`
	RerankStats
}

// DedupStats reports near-duplicate removal.
type DedupStats struct {
	Removed   int   `json:"removed"`
	LatencyMs int64 `json:"latency_ms"`
}

// DiversityStats reports MMR diversification.
type DiversityStats struct {
	AvgDiversity float64 `json:"avg_diversity"`
	LatencyMs    int64   `json:"latency_ms"`
}

// AggregationStats reports file grouping.
type AggregationStats struct {
	Files         int   `json:"files"`
	ChunksDropped int   `json:"chunks_dropped"`
	LatencyMs     int64 `json:"latency_ms"`
}

// PostrankStats summarizes the post-rank pipeline.
type PostrankStats struct {
	Dedup          *DedupStats       `json:"dedup,omitempty"`
	Diversity      *DiversityStats   `json:"diversity,omitempty"`
	Aggregation    *AggregationStats `json:"aggregation,omitempty"`
	TotalLatencyMs int64             `json:"total_latency_ms"`
}

// Intelligence is the response section describing query understanding.
type Intelligence struct {
	Intent     Intent     `json:"intent"`
	Difficulty Difficulty `json:"difficulty"`
	Strategy   Strategy   `json:"strategy"`
	Confidence float64    `json:"confidence"`
}

// SearchResponse is the canonical output shared by all transports.
type SearchResponse struct {
	RequestID    string                `json:"request_id"`
	Query        string                `json:"query"`
	Results      []*HybridSearchResult `json:"results"`
	Total        int                   `json:"total"`
	Store        string                `json:"store"`
	SearchTimeMs int64                 `json:"search_time_ms"`
	Intelligence Intelligence          `json:"intelligence"`
	Reranking    RerankingInfo         `json:"reranking"`
	Postrank     *PostrankStats        `json:"postrank,omitempty"`
}

// ErrorPayload is the uniform transport error body.
type ErrorPayload struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorPayloadOf builds the transport error body for any error.
func ErrorPayloadOf(err error) ErrorPayload {
	payload := ErrorPayload{
		Code:    string(qerrors.PublicOf(err)),
		Message: err.Error(),
	}
	if qe, ok := err.(*qerrors.QueryError); ok {
		payload.Message = qe.Message
		if len(qe.Details) > 0 {
			payload.Details = qe.Details
		}
	}
	return payload
}
