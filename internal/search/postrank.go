package search

import "time"

// PostRank runs dedup, MMR diversification, and file aggregation in
// that fixed order, each toggleable, and reports per-stage stats.
func PostRank(results []*HybridSearchResult, opts PostRankOptions) ([]*HybridSearchResult, *PostrankStats) {
	stats := &PostrankStats{}
	start := time.Now()

	if opts.EnableDedup {
		stageStart := time.Now()
		deduped, removed := Dedup(results, DedupOptions{
			Threshold:   opts.DedupThreshold,
			PreserveTop: opts.PreserveTop,
		})
		results = deduped
		stats.Dedup = &DedupStats{
			Removed:   removed,
			LatencyMs: time.Since(stageStart).Milliseconds(),
		}
	}

	if opts.EnableDiversity {
		stageStart := time.Now()
		diversified, avg := Diversify(results, opts.DiversityLambda)
		results = diversified
		stats.Diversity = &DiversityStats{
			AvgDiversity: avg,
			LatencyMs:    time.Since(stageStart).Milliseconds(),
		}
	}

	if opts.GroupByFile {
		stageStart := time.Now()
		aggregated, aggStats := AggregateByFile(results, opts.MaxChunksPerFile)
		results = aggregated
		aggStats.LatencyMs = time.Since(stageStart).Milliseconds()
		stats.Aggregation = &aggStats
	}

	stats.TotalLatencyMs = time.Since(start).Milliseconds()
	return results, stats
}
