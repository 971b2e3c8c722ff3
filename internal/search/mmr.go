package search

// Diversify re-ranks results by Maximal Marginal Relevance:
// mmr(d) = λ·score(d) − (1−λ)·max similarity to already-selected
// results. Higher λ favors relevance, lower λ favors novelty. Returns
// the new ordering and the average diversity (mean of 1 − maxSim at
// selection time).
func Diversify(results []*HybridSearchResult, lambda float64) ([]*HybridSearchResult, float64) {
	if len(results) == 0 {
		return results, 0
	}
	if len(results) == 1 {
		return results, 1
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}

	shingleSets := make([]map[string]struct{}, len(results))
	for i, r := range results {
		shingleSets[i] = contentShingles(r.Content)
	}

	selected := make([]*HybridSearchResult, 0, len(results))
	selectedIdx := make([]int, 0, len(results))
	used := make([]bool, len(results))

	var diversitySum float64

	for len(selected) < len(results) {
		bestIdx := -1
		bestMMR := 0.0
		bestMaxSim := 0.0

		for i := range results {
			if used[i] {
				continue
			}

			maxSim := 0.0
			for _, j := range selectedIdx {
				if sim := jaccard(shingleSets[i], shingleSets[j]); sim > maxSim {
					maxSim = sim
				}
			}

			mmr := lambda*results[i].FinalScore - (1-lambda)*maxSim
			if bestIdx == -1 || mmr > bestMMR {
				bestIdx = i
				bestMMR = mmr
				bestMaxSim = maxSim
			}
		}

		used[bestIdx] = true
		selected = append(selected, results[bestIdx])
		selectedIdx = append(selectedIdx, bestIdx)
		diversitySum += 1 - bestMaxSim
	}

	return selected, diversitySum / float64(len(selected))
}
