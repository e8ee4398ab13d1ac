package docstore

import (
	"context"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// hnswBackend is the local, in-process VectorBackend variant used when
// Qdrant is unreachable at startup (spec §4.1's degraded-capability
// fallback). Ids are kept alongside vectors in a parallel map since
// hnsw.Graph nodes are keyed by a comparable key type, not arbitrary
// metadata.
type hnswBackend struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	meta  map[string]map[string]string
}

func newHNSWBackend(dim int) VectorBackend {
	g := hnsw.NewGraph[string]()
	return &hnswBackend{graph: g, meta: make(map[string]map[string]string)}
}

func (h *hnswBackend) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph.Add(hnsw.MakeNode(id, vector))
	h.meta[id] = metadata
	return nil
}

func (h *hnswBackend) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph.Delete(id)
	delete(h.meta, id)
	return nil
}

func (h *hnswBackend) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]ScoredRecord, error) {
	if k <= 0 {
		k = 10
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Over-fetch to compensate for post-hoc filtering, since hnsw has no
	// native predicate pushdown.
	raw := h.graph.Search(vector, k*4+k)
	out := make([]ScoredRecord, 0, k)
	for _, n := range raw {
		meta := h.meta[n.Key]
		if !matchesFilter(meta, filter) {
			continue
		}
		out = append(out, ScoredRecord{ID: n.Key, Score: cosineSimilarity(vector, n.Value), Metadata: meta})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (h *hnswBackend) Close() error { return nil }

func matchesFilter(meta map[string]string, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
