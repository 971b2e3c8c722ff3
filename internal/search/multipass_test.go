package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequery-dev/codequery/internal/rerank"
)

// fakeReranker scores documents from a lookup table, sorted descending
// per the Reranker contract. It can fail on a specific call or stall
// past the pass deadline.
type fakeReranker struct {
	scores map[string]float64
	failOn int // 1-based call number, 0 never
	delay  time.Duration
	calls  int
}

func (f *fakeReranker) Rerank(ctx context.Context, _ string, documents []string) ([]rerank.Result, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, errors.New("scoring service unavailable")
	}

	results := make([]rerank.Result, len(documents))
	for i, d := range documents {
		results[i] = rerank.Result{Index: i, Score: f.scores[d]}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func (f *fakeReranker) Available(context.Context) bool { return true }
func (f *fakeReranker) Close() error                   { return nil }

func fusedResults(scores ...float64) []*HybridSearchResult {
	out := make([]*HybridSearchResult, len(scores))
	for i, s := range scores {
		out[i] = &HybridSearchResult{
			DocID:      fmt.Sprintf("doc-%d", i),
			Content:    fmt.Sprintf("content of document %d", i),
			FinalScore: s,
		}
	}
	return out
}

func docIDs(results []*HybridSearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func TestMultiPassReranker_DisabledBudget(t *testing.T) {
	m := NewMultiPassReranker(&fakeReranker{}, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8)

	out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 0})

	assert.Equal(t, fused, out)
	assert.False(t, stats.Pass1Applied)
	assert.Equal(t, "reranking_disabled", stats.SkipReason)
}

func TestMultiPassReranker_NilReranker(t *testing.T) {
	m := NewMultiPassReranker(nil, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9)

	out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 10})

	assert.Equal(t, fused, out)
	assert.Equal(t, "reranking_disabled", stats.SkipReason)
}

func TestMultiPassReranker_Pass1Reorders(t *testing.T) {
	fake := &fakeReranker{scores: map[string]float64{
		"content of document 0": 5,
		"content of document 1": 10,
		"content of document 2": 1,
	}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7)

	out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 3})

	require.True(t, stats.Pass1Applied)
	assert.Equal(t, 3, stats.Pass1Input)
	assert.Equal(t, 3, stats.Pass1Output)
	assert.Equal(t, []string{"doc-1", "doc-0", "doc-2"}, docIDs(out))

	// Rerank scores replace FinalScore; the fusion score is preserved.
	assert.Equal(t, 10.0, out[0].FinalScore)
	assert.Equal(t, 0.8, out[0].FusionScore)
}

func TestMultiPassReranker_TailKeepsFusedOrder(t *testing.T) {
	fake := &fakeReranker{scores: map[string]float64{
		"content of document 0": 1,
		"content of document 1": 2,
	}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7, 0.6)

	out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 2})

	require.True(t, stats.Pass1Applied)
	// Only the first two were scored; the rest trail in fused order.
	assert.Equal(t, []string{"doc-1", "doc-0", "doc-2", "doc-3"}, docIDs(out))
	assert.Equal(t, 0.7, out[2].FinalScore)
}

func TestMultiPassReranker_Pass1FailureDegrades(t *testing.T) {
	fake := &fakeReranker{failOn: 1}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7)

	out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 3})

	assert.Equal(t, []string{"doc-0", "doc-1", "doc-2"}, docIDs(out))
	assert.False(t, stats.Pass1Applied)
	assert.Equal(t, "pass1_failed", stats.SkipReason)
}

func TestMultiPassReranker_Pass1TimeoutDegrades(t *testing.T) {
	fake := &fakeReranker{delay: 200 * time.Millisecond}
	cfg := DefaultMultiPassRerankerConfig()
	cfg.Pass1Timeout = 5 * time.Millisecond
	m := NewMultiPassReranker(fake, cfg)
	fused := fusedResults(0.9, 0.8)

	out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 2})

	assert.Equal(t, []string{"doc-0", "doc-1"}, docIDs(out))
	assert.False(t, stats.Pass1Applied)
	assert.Equal(t, "pass1_failed", stats.SkipReason)
}

// cannedReranker replies with a fixed result set regardless of input,
// for exercising malformed scoring-service responses.
type cannedReranker struct {
	results []rerank.Result
}

func (c *cannedReranker) Rerank(context.Context, string, []string) ([]rerank.Result, error) {
	return c.results, nil
}

func (c *cannedReranker) Available(context.Context) bool { return true }
func (c *cannedReranker) Close() error                   { return nil }

func TestMultiPassReranker_InvalidIndexDegrades(t *testing.T) {
	cases := map[string][]rerank.Result{
		"out_of_range": {
			{Index: 0, Score: 0.9},
			{Index: 7, Score: 0.8},
		},
		"negative": {
			{Index: -1, Score: 0.9},
			{Index: 1, Score: 0.8},
		},
		"duplicate": {
			{Index: 0, Score: 0.9},
			{Index: 0, Score: 0.8},
		},
	}

	for name, results := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewMultiPassReranker(&cannedReranker{results: results}, DefaultMultiPassRerankerConfig())
			fused := fusedResults(0.9, 0.8)

			out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 2})

			assert.Equal(t, []string{"doc-0", "doc-1"}, docIDs(out))
			assert.False(t, stats.Pass1Applied)
			assert.Equal(t, "pass1_failed", stats.SkipReason)
			// Fused scores untouched.
			assert.Equal(t, 0.9, out[0].FinalScore)
		})
	}
}

func TestMultiPassReranker_EarlyExitInsufficientResults(t *testing.T) {
	fake := &fakeReranker{scores: map[string]float64{"content of document 0": 7}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9)

	_, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{
		RerankCandidates:     1,
		UseSecondPass:        true,
		SecondPassCandidates: 1,
	})

	require.True(t, stats.Pass1Applied)
	assert.True(t, stats.EarlyExit)
	assert.Equal(t, ExitInsufficientResults, stats.EarlyExitReason)
	assert.False(t, stats.Pass2Applied)
	assert.Equal(t, 1, fake.calls)
}

func TestMultiPassReranker_EarlyExitPeakedDistribution(t *testing.T) {
	fake := &fakeReranker{scores: map[string]float64{
		"content of document 0": 10,
		"content of document 1": 1,
		"content of document 2": 1,
	}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7)

	_, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{
		RerankCandidates:     3,
		UseSecondPass:        true,
		SecondPassCandidates: 2,
	})

	assert.True(t, stats.EarlyExit)
	assert.Equal(t, ExitPeakedDistribution, stats.EarlyExitReason)
	assert.False(t, stats.Pass2Applied)
	assert.Equal(t, 1, fake.calls)
}

func TestMultiPassReranker_EarlyExitHighScoreGap(t *testing.T) {
	// Not peaked (normalized variance under the peak floor) but the
	// leader is 0.4 clear of second place.
	fake := &fakeReranker{scores: map[string]float64{
		"content of document 0": 1.0,
		"content of document 1": 0.6,
		"content of document 2": 0.55,
		"content of document 3": 0.5,
	}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7, 0.6)

	_, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{
		RerankCandidates:     4,
		UseSecondPass:        true,
		SecondPassCandidates: 2,
	})

	assert.True(t, stats.EarlyExit)
	assert.Equal(t, ExitHighScoreGap, stats.EarlyExitReason)
	assert.False(t, stats.Pass2Applied)
}

func TestMultiPassReranker_FlatDistributionForcesSecondPass(t *testing.T) {
	fake := &fakeReranker{scores: map[string]float64{
		"content of document 0": 0.50,
		"content of document 1": 0.49,
		"content of document 2": 0.48,
		"content of document 3": 0.47,
	}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7, 0.6)

	_, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{
		RerankCandidates:     4,
		UseSecondPass:        true,
		SecondPassCandidates: 2,
	})

	assert.False(t, stats.EarlyExit)
	require.True(t, stats.Pass2Applied)
	assert.Equal(t, 2, stats.Pass2Input)
	assert.Equal(t, 2, fake.calls)
}

func TestMultiPassReranker_NoSecondPassWhenDisabled(t *testing.T) {
	fake := &fakeReranker{scores: map[string]float64{
		"content of document 0": 0.50,
		"content of document 1": 0.49,
		"content of document 2": 0.48,
	}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7)

	_, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{
		RerankCandidates: 3,
		UseSecondPass:    false,
	})

	assert.False(t, stats.Pass2Applied)
	assert.Equal(t, 1, fake.calls)
}

func TestMultiPassReranker_Pass2FailureKeepsPass1Order(t *testing.T) {
	fake := &fakeReranker{
		scores: map[string]float64{
			"content of document 0": 0.50,
			"content of document 1": 0.49,
			"content of document 2": 0.48,
		},
		failOn: 2,
	}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7)

	out, stats := m.Rerank(context.Background(), "q", fused, RetrievalConfig{
		RerankCandidates:     3,
		UseSecondPass:        true,
		SecondPassCandidates: 2,
	})

	require.True(t, stats.Pass1Applied)
	assert.False(t, stats.Pass2Applied)
	assert.Equal(t, []string{"doc-0", "doc-1", "doc-2"}, docIDs(out))
}

func TestMultiPassReranker_PreservesDocumentSet(t *testing.T) {
	fake := &fakeReranker{scores: map[string]float64{
		"content of document 0": 3,
		"content of document 1": 9,
		"content of document 2": 6,
		"content of document 3": 1,
	}}
	m := NewMultiPassReranker(fake, DefaultMultiPassRerankerConfig())
	fused := fusedResults(0.9, 0.8, 0.7, 0.6)

	out, _ := m.Rerank(context.Background(), "q", fused, RetrievalConfig{RerankCandidates: 4})

	require.Len(t, out, len(fused))
	assert.ElementsMatch(t, docIDs(fused), docIDs(out))
}
