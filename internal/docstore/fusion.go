package docstore

import "sort"

// FuseWeighted combines semantic and lexical result lists into one
// ranked list using the plain normalised weighted sum from spec §4.3
// step 2: score = weight*semantic_norm + (1-weight)*lexical_norm, where
// each side's scores are min-max normalised to [0,1] before combining so
// that cosine-similarity and BM25 scores (different scales) contribute
// comparably. A record present in only one list is scored on that side
// alone, normalised against its own list.
func FuseWeighted(semantic, lexical []ScoredRecord, weight float64, k int) []ScoredRecord {
	semNorm := normalize(semantic)
	lexNorm := normalize(lexical)

	combined := make(map[string]*ScoredRecord, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))

	for i, r := range semantic {
		c := r
		c.Score = weight * semNorm[i]
		combined[r.ID] = &c
		order = append(order, r.ID)
	}
	for i, r := range lexical {
		if existing, ok := combined[r.ID]; ok {
			existing.Score += (1 - weight) * lexNorm[i]
			if existing.Snippet == "" {
				existing.Snippet = r.Snippet
			}
			continue
		}
		c := r
		c.Score = (1 - weight) * lexNorm[i]
		combined[r.ID] = &c
		order = append(order, r.ID)
	}

	out := make([]ScoredRecord, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, *combined[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// normalize min-max scales a list of scores to [0,1], returned in the
// same order as recs. A list with zero variance (or fewer than two
// elements) normalizes every score to 1, since there's nothing to
// discriminate on.
func normalize(recs []ScoredRecord) []float64 {
	out := make([]float64, len(recs))
	if len(recs) == 0 {
		return out
	}
	min, max := recs[0].Score, recs[0].Score
	for _, r := range recs {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	span := max - min
	for i, r := range recs {
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = (r.Score - min) / span
	}
	return out
}
