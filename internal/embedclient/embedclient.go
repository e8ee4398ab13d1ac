// Package embedclient implements the embedding capability spec §4.2
// step 5 and §4.3 step 1 both need: embed_batch(texts) -> [][]float32.
// Grounded on the sibling embedding package's HTTP request/response
// shape (OpenAI-compatible /embeddings endpoint), generalized into a
// bounded-concurrency batcher using golang.org/x/sync/errgroup the way
// the teacher's ingestion pipeline bounds concurrent embedding calls.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ragcorpus/internal/apperr"
)

// Config configures the embedding endpoint. BaseURL+Path must resolve
// to an OpenAI-compatible /embeddings endpoint.
type Config struct {
	BaseURL       string
	Path          string
	Model         string
	APIKey        string
	Timeout       time.Duration
	BatchSize     int
	MaxConcurrent int
}

// Client embeds text in size-bounded batches with bounded concurrency.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Path == "" {
		cfg.Path = "/v1/embeddings"
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch returns one embedding per input text, preserving order.
// Inputs are split into cfg.BatchSize-sized requests dispatched with
// cfg.MaxConcurrent concurrency.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			embeds, err := c.embedOne(gctx, b.texts)
			if err != nil {
				return err
			}
			for i, e := range embeds {
				out[b.start+i] = e
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.KindIngestProcessing, "embed batch", err)
	}
	return out, nil
}

// EmbedBatchTolerant behaves like EmbedBatch but tolerates per-subbatch
// failures instead of aborting the whole call: any text whose backing
// HTTP batch fails after the request is left with a nil vector rather
// than discarding every other batch's results, and failed lists the
// input indices that could not be embedded, so an ingestion caller can
// record exactly which chunks/images to mark as partial (spec §4.2
// step 5 / §8's half-batch embedding failure scenario).
func (c *Client) EmbedBatchTolerant(ctx context.Context, texts []string) (vectors [][]float32, failed []int, err error) {
	if len(texts) == 0 {
		return nil, nil, nil
	}
	out := make([][]float32, len(texts))

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	var mu sync.Mutex
	var failedIdx []int
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MaxConcurrent)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			embeds, berr := c.embedOne(ctx, b.texts)
			if berr != nil {
				mu.Lock()
				for i := range b.texts {
					failedIdx = append(failedIdx, b.start+i)
				}
				mu.Unlock()
				return nil
			}
			for i, e := range embeds {
				out[b.start+i] = e
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Ints(failedIdx)
	if len(failedIdx) == len(texts) {
		return out, failedIdx, apperr.ErrEmbeddingFailed
	}
	return out, failedIdx, nil
}

func (c *Client) embedOne(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientInfra, "embedding endpoint unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, apperr.Wrap(apperr.KindTransientInfra, fmt.Sprintf("embedding endpoint returned %s", resp.Status), fmt.Errorf("%s", respBody))
	}

	var er embedResponse
	if err := json.Unmarshal(respBody, &er); err != nil {
		return nil, apperr.ErrEmbeddingFailed
	}
	if len(er.Data) != len(texts) {
		return nil, apperr.ErrEmbeddingFailed
	}
	out := make([][]float32, len(texts))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
