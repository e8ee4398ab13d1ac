package retrieve

import "ragcorpus/internal/docstore"

// MMR implements the maximal marginal relevance diversification from
// spec §4.3 step 3: at each step pick the candidate maximising
// lambda*relevance - (1-lambda)*max_similarity_to_already_selected,
// stopping at k. Similarity between candidates is the Jaccard overlap
// of their snippets' word sets (textSimilarity); a candidate with an
// empty snippet has similarity 0 to everything already selected, so its
// relevance score alone decides the pick.
func MMR(candidates []docstore.ScoredRecord, lambda float64, k int) []docstore.ScoredRecord {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	pool := append([]docstore.ScoredRecord(nil), candidates...)
	selected := make([]docstore.ScoredRecord, 0, k)

	for len(selected) < k && len(pool) > 0 {
		bestIdx := -1
		bestScore := -1e18
		for i, c := range pool {
			maxSim := 0.0
			for _, s := range selected {
				if sim := textSimilarity(c.Snippet, s.Snippet); sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := lambda*c.Score - (1-lambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}
		selected = append(selected, pool[bestIdx])
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}
	return selected
}

// textSimilarity is a cheap token-overlap (Jaccard) similarity used as
// MMR's novelty penalty when no shared embedding space is convenient to
// compare candidates in (text and image candidates never mix here, but
// candidates drawn from different sub-questions may lack a common
// vector). Bounded to [0,1].
func textSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	wa := tokenSet(a)
	wb := tokenSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) > 0 {
			out[string(word)] = struct{}{}
			word = word[:0]
		}
	}
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '.' || r == ',' {
			flush()
			continue
		}
		word = append(word, r)
	}
	flush()
	return out
}
