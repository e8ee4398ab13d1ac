// Package reranker implements the cross-encoder reranking stage from
// spec §4.3 step 4: reorders the fused-and-diversified candidate list
// by relevance against the literal query text. Grounded on the
// Reranker/NoopReranker shape in the sibling rag/retrieve package.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"ragcorpus/internal/docstore"
)

// Reranker reorders items by relevance to query. Implementations must
// not drop items.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []docstore.ScoredRecord) ([]docstore.ScoredRecord, error)
}

// Noop leaves ordering from the fusion/diversification stage
// unchanged — used when no cross-encoder endpoint is configured.
type Noop struct{}

func (Noop) Rerank(_ context.Context, _ string, items []docstore.ScoredRecord) ([]docstore.ScoredRecord, error) {
	return items, nil
}

// HTTPCrossEncoder calls an external cross-encoder scoring endpoint
// (a local reranker server exposing a /rerank-style contract, the
// common deployment shape for open cross-encoder models).
type HTTPCrossEncoder struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	http     *http.Client
}

func NewHTTPCrossEncoder(endpoint, apiKey string, timeout time.Duration) *HTTPCrossEncoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCrossEncoder{Endpoint: endpoint, APIKey: apiKey, Timeout: timeout, http: &http.Client{Timeout: timeout}}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func (h *HTTPCrossEncoder) Rerank(ctx context.Context, query string, items []docstore.ScoredRecord) ([]docstore.ScoredRecord, error) {
	if len(items) == 0 {
		return items, nil
	}
	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = it.Snippet
	}
	body, err := json.Marshal(rerankRequest{Query: query, Documents: docs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		// Reranking is a quality enhancement, not a hard dependency: on
		// failure, degrade to the incoming order rather than failing the
		// query (spec §8's "retrieval degrades, it doesn't fail" rule).
		return items, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return items, nil
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return items, nil
	}
	if len(rr.Results) != len(items) {
		return items, nil
	}
	out := make([]docstore.ScoredRecord, len(items))
	for _, r := range rr.Results {
		if r.Index < 0 || r.Index >= len(items) {
			return items, nil
		}
		rec := items[r.Index]
		rec.Score = r.Score
		out[r.Index] = rec
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
