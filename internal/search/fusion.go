package search

import (
	"sort"
	"strings"

	"github.com/codequery-dev/codequery/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI
// Search, OpenSearch, and others).
const DefaultRRFConstant = 60

// Default code-aware bonus values.
const (
	DefaultSymbolBonus    = 0.02
	DefaultSymbolBonusCap = 0.06
	DefaultPathBonus      = 0.01
	DefaultLanguageBonus  = 0.01
)

// scoreRatioSentinel is reported when the second score is zero.
const scoreRatioSentinel = 999

// languageKeywords maps query tokens to canonical language names.
var languageKeywords = map[string]string{
	"python": "python", "go": "go", "golang": "go", "rust": "rust",
	"java": "java", "javascript": "javascript", "js": "javascript",
	"typescript": "typescript", "ts": "typescript", "ruby": "ruby",
	"c": "c", "cpp": "cpp", "c++": "cpp", "csharp": "csharp",
	"php": "php", "kotlin": "kotlin", "swift": "swift", "scala": "scala",
}

// FuseOptions parameterizes one fusion run.
type FuseOptions struct {
	SparseWeight float64
	DenseWeight  float64
	GroupByFile  bool
}

// Fuser combines sparse and dense rankings using weighted Reciprocal
// Rank Fusion plus code-aware bonuses.
//
// Base formula per document, with rank 0 meaning absent from that leg:
//
//	base = (sparseRank>0 ? sparseWeight/(k+sparseRank) : 0)
//	     + (denseRank>0  ? denseWeight /(k+denseRank)  : 0)
type Fuser struct {
	K              int
	SymbolBonus    float64
	SymbolBonusCap float64
	PathBonus      float64
	LanguageBonus  float64
}

// NewFuser creates a fuser with default constants.
func NewFuser() *Fuser {
	return NewFuserWithK(DefaultRRFConstant)
}

// NewFuserWithK creates a fuser with a custom RRF constant.
// If k <= 0, defaults to 60.
func NewFuserWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{
		K:              k,
		SymbolBonus:    DefaultSymbolBonus,
		SymbolBonusCap: DefaultSymbolBonusCap,
		PathBonus:      DefaultPathBonus,
		LanguageBonus:  DefaultLanguageBonus,
	}
}

// Fuse combines both result lists into a single ranked list. The
// chunks map resolves doc IDs to their metadata; documents without a
// chunk entry still rank but earn no bonuses and carry no provenance.
//
// Ordering is deterministic: final score descending, then lower sparse
// rank, then lower dense rank, then doc ID.
func (f *Fuser) Fuse(
	sparse []*store.SparseResult,
	dense []*store.DenseResult,
	chunks map[string]*store.Chunk,
	query NormalizedQuery,
	opts FuseOptions,
) []*HybridSearchResult {
	if len(sparse) == 0 && len(dense) == 0 {
		return []*HybridSearchResult{}
	}

	byID := make(map[string]*HybridSearchResult, len(sparse)+len(dense))

	for rank, r := range sparse {
		res := f.getOrCreate(byID, r.DocID, chunks)
		res.SparseScore = r.Score
		res.SparseRank = rank + 1
		res.MatchedTerms = r.MatchedTerms
	}

	for rank, r := range dense {
		res := f.getOrCreate(byID, r.DocID, chunks)
		res.DenseScore = r.Score
		res.DenseRank = rank + 1
	}

	queryTokens := strings.Fields(query.Normalized)

	results := make([]*HybridSearchResult, 0, len(byID))
	for _, res := range byID {
		base := 0.0
		if res.SparseRank > 0 {
			base += opts.SparseWeight / float64(f.K+res.SparseRank)
		}
		if res.DenseRank > 0 {
			base += opts.DenseWeight / float64(f.K+res.DenseRank)
		}

		symbolBonus, otherBonus := f.bonuses(res, queryTokens)

		// Path and language bonuses may not exceed the base score;
		// only the symbol bonus escapes the clamp to encode
		// navigational intent.
		if otherBonus > base {
			otherBonus = base
		}

		res.FinalScore = base + symbolBonus + otherBonus
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})

	if opts.GroupByFile {
		results = interleaveTopFiles(results)
	}

	return results
}

// getOrCreate returns the accumulator for a doc ID, populating chunk
// provenance on first sight.
func (f *Fuser) getOrCreate(m map[string]*HybridSearchResult, id string, chunks map[string]*store.Chunk) *HybridSearchResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &HybridSearchResult{DocID: id}
	if c, ok := chunks[id]; ok {
		r.Path = c.Path
		r.Language = c.Language
		r.StartLine = c.StartLine
		r.EndLine = c.EndLine
		r.Content = c.Content
		r.Symbols = c.Symbols
	}
	m[id] = r
	return r
}

// bonuses computes the symbol bonus and the combined path/language
// bonus for one result.
func (f *Fuser) bonuses(res *HybridSearchResult, queryTokens []string) (symbol, other float64) {
	// Symbol hits: per query token exactly matching a chunk symbol,
	// capped.
	for _, tok := range queryTokens {
		for _, sym := range res.Symbols {
			if strings.EqualFold(tok, sym) {
				symbol += f.SymbolBonus
				break
			}
		}
	}
	if symbol > f.SymbolBonusCap {
		symbol = f.SymbolBonusCap
	}

	// Path segment hits, excluding the file extension.
	segments := pathSegments(res.Path)
	for _, tok := range queryTokens {
		for _, seg := range segments {
			if tok == seg {
				other += f.PathBonus
				break
			}
		}
	}

	// Language keyword hit.
	lang := strings.ToLower(res.Language)
	for _, tok := range queryTokens {
		if canonical, ok := languageKeywords[tok]; ok && canonical == lang {
			other += f.LanguageBonus
			break
		}
	}

	return symbol, other
}

// pathSegments splits a path into lowercase '/'-delimited segments
// with the final extension removed.
func pathSegments(path string) []string {
	if path == "" {
		return nil
	}
	segments := strings.Split(strings.ToLower(path), "/")
	last := len(segments) - 1
	if dot := strings.LastIndex(segments[last], "."); dot > 0 {
		segments[last] = segments[last][:dot]
	}
	return segments
}

// compare implements the deterministic result ordering.
func (f *Fuser) compare(a, b *HybridSearchResult) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	if ra, rb := effectiveRank(a.SparseRank), effectiveRank(b.SparseRank); ra != rb {
		return ra < rb
	}
	if ra, rb := effectiveRank(a.DenseRank), effectiveRank(b.DenseRank); ra != rb {
		return ra < rb
	}
	return a.DocID < b.DocID
}

// effectiveRank treats 0 (absent) as worse than any real rank.
func effectiveRank(r int) int {
	if r == 0 {
		return int(^uint(0) >> 1)
	}
	return r
}

// interleaveTopFiles reorders so no file contributes more than one
// chunk to the top 3 positions. Displaced chunks keep their relative
// order after position 3.
func interleaveTopFiles(results []*HybridSearchResult) []*HybridSearchResult {
	if len(results) <= 1 {
		return results
	}

	const topSlots = 3

	out := make([]*HybridSearchResult, 0, len(results))
	deferred := make([]*HybridSearchResult, 0)
	seen := make(map[string]struct{}, topSlots)

	i := 0
	for ; i < len(results) && len(out) < topSlots; i++ {
		r := results[i]
		if _, dup := seen[r.Path]; dup {
			deferred = append(deferred, r)
			continue
		}
		seen[r.Path] = struct{}{}
		out = append(out, r)
	}

	out = append(out, deferred...)
	out = append(out, results[i:]...)
	return out
}

// ComputeFusionStats summarizes the top of the fused distribution.
func ComputeFusionStats(results []*HybridSearchResult) FusionStats {
	var stats FusionStats
	if len(results) == 0 {
		return stats
	}

	stats.TopScore = results[0].FinalScore
	if len(results) > 1 {
		stats.SecondScore = results[1].FinalScore
	}
	stats.ScoreGap = stats.TopScore - stats.SecondScore
	if stats.SecondScore > 0 {
		stats.ScoreRatio = stats.TopScore / stats.SecondScore
	} else {
		stats.ScoreRatio = scoreRatioSentinel
	}
	return stats
}
