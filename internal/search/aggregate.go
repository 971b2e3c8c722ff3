package search

import "sort"

// AggregateByFile groups results by path. The highest-scoring chunk of
// each file becomes the representative; chunks past maxChunksPerFile
// are dropped. Groups are emitted sorted by total file score
// descending, stable on each file's first appearance, with chunks
// ordered by score inside a group.
func AggregateByFile(results []*HybridSearchResult, maxChunksPerFile int) ([]*HybridSearchResult, AggregationStats) {
	var stats AggregationStats
	if len(results) == 0 {
		return results, stats
	}
	if maxChunksPerFile <= 0 {
		maxChunksPerFile = DefaultMaxChunks
	}

	type fileGroup struct {
		path       string
		firstIndex int
		chunks     []*HybridSearchResult
		score      float64
	}

	byPath := make(map[string]*fileGroup)
	order := make([]*fileGroup, 0)

	for i, r := range results {
		g, ok := byPath[r.Path]
		if !ok {
			g = &fileGroup{path: r.Path, firstIndex: i}
			byPath[r.Path] = g
			order = append(order, g)
		}
		g.chunks = append(g.chunks, r)
		g.score += r.FinalScore
	}
	stats.Files = len(order)

	// Annotate before dropping so relatedChunks reflects the whole
	// group. Chunks rank by score within their file, so the
	// representative survives any earlier diversity reordering.
	for _, g := range order {
		sort.SliceStable(g.chunks, func(i, j int) bool {
			return g.chunks[i].FinalScore > g.chunks[j].FinalScore
		})
		for rank, c := range g.chunks {
			c.IsRepresentative = rank == 0
			c.RelatedChunks = len(g.chunks) - 1
			c.FileScore = g.score
			c.ChunkRankInFile = rank + 1
		}
		if len(g.chunks) > maxChunksPerFile {
			stats.ChunksDropped += len(g.chunks) - maxChunksPerFile
			g.chunks = g.chunks[:maxChunksPerFile]
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].firstIndex < order[j].firstIndex
	})

	out := make([]*HybridSearchResult, 0, len(results))
	for _, g := range order {
		out = append(out, g.chunks...)
	}
	return out, stats
}

// PostRankOptions toggles the post-rank sub-stages.
type PostRankOptions struct {
	EnableDedup      bool
	DedupThreshold   float64
	PreserveTop      int
	EnableDiversity  bool
	DiversityLambda  float64
	GroupByFile      bool
	MaxChunksPerFile int
}

// PostRankOptionsFromRequest derives post-rank options from a request
// with defaults already applied.
func PostRankOptionsFromRequest(req *SearchRequest) PostRankOptions {
	return PostRankOptions{
		EnableDedup:      *req.EnableDedup,
		DedupThreshold:   *req.DedupThreshold,
		PreserveTop:      DefaultPreserveTop,
		EnableDiversity:  *req.EnableDiversity,
		DiversityLambda:  *req.DiversityLambda,
		GroupByFile:      req.GroupByFile,
		MaxChunksPerFile: req.MaxChunksPerFile,
	}
}
