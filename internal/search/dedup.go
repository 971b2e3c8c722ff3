package search

import (
	"strings"

	"github.com/codequery-dev/codequery/internal/store"
)

// Dedup defaults.
const (
	DefaultPreserveTop  = 3
	shingleSize         = 5
	longerContentFactor = 1.5
)

// DedupOptions parameterizes near-duplicate removal.
type DedupOptions struct {
	// Threshold is the Jaccard similarity at which a later result is
	// considered a duplicate. 1.0 disables the stage.
	Threshold float64

	// PreserveTop results are always kept regardless of similarity.
	PreserveTop int
}

// DefaultDedupOptions returns the documented defaults.
func DefaultDedupOptions() DedupOptions {
	return DedupOptions{
		Threshold:   DefaultDedupCutoff,
		PreserveTop: DefaultPreserveTop,
	}
}

// Dedup removes semantic near-duplicates using shingle-based Jaccard
// similarity over 5-grams of code tokens. When a later result
// duplicates an earlier one it is dropped, unless it comes from a
// different file and is substantially longer.
func Dedup(results []*HybridSearchResult, opts DedupOptions) ([]*HybridSearchResult, int) {
	if opts.Threshold >= 1.0 || len(results) <= 1 {
		return results, 0
	}
	if opts.PreserveTop < 0 {
		opts.PreserveTop = 0
	}

	shingleSets := make([]map[string]struct{}, len(results))
	for i, r := range results {
		shingleSets[i] = contentShingles(r.Content)
	}

	kept := make([]*HybridSearchResult, 0, len(results))
	keptShingles := make([]map[string]struct{}, 0, len(results))
	removed := 0

	for i, candidate := range results {
		if i < opts.PreserveTop {
			kept = append(kept, candidate)
			keptShingles = append(keptShingles, shingleSets[i])
			continue
		}

		duplicate := false
		for j, prior := range kept {
			sim := jaccard(keptShingles[j], shingleSets[i])
			if sim < opts.Threshold {
				continue
			}
			// Different file with substantially more content wins a
			// reprieve.
			if candidate.Path != prior.Path &&
				float64(len(candidate.Content)) > longerContentFactor*float64(len(prior.Content)) {
				continue
			}
			duplicate = true
			break
		}

		if duplicate {
			removed++
			continue
		}
		kept = append(kept, candidate)
		keptShingles = append(keptShingles, shingleSets[i])
	}

	return kept, removed
}

// contentShingles builds the 5-gram shingle set of a chunk's
// normalized code tokens.
func contentShingles(content string) map[string]struct{} {
	tokens := store.TokenizeCode(content)
	set := make(map[string]struct{})

	if len(tokens) < shingleSize {
		if len(tokens) > 0 {
			set[strings.Join(tokens, " ")] = struct{}{}
		}
		return set
	}

	for i := 0; i+shingleSize <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+shingleSize], " ")] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|, with 0 for two empty sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0
	for s := range small {
		if _, ok := large[s]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
