package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// bleveRecord is the document shape bleve indexes: the raw text (for
// BM25 scoring and snippet extraction) plus the metadata map flattened
// so each key becomes a separately filterable field.
type bleveRecord struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// bleveLexical is the shared lexical backend for both the cloud-hybrid
// and local Document Store variants (spec §4.1: bleve provides
// BM25-equivalent scoring in both).
type bleveLexical struct {
	mu      sync.RWMutex
	index   bleve.Index
	records map[string]bleveRecord // id -> stored text/metadata; bleve itself only indexes for scoring
}

func newBleveLexical(indexName string) (LexicalBackend, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("open bleve index %q: %w", indexName, err)
	}
	return &bleveLexical{index: idx, records: make(map[string]bleveRecord)}, nil
}

func (b *bleveLexical) Index(ctx context.Context, id, text string, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[id] = bleveRecord{Text: text, Metadata: metadata}
	return b.index.Index(id, bleveRecord{Text: text, Metadata: metadata})
}

func (b *bleveLexical) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, id)
	return b.index.Delete(id)
}

func (b *bleveLexical) Search(ctx context.Context, queryText string, k int, filter map[string]string) ([]ScoredRecord, error) {
	if k <= 0 {
		k = 10
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	mq := bleve.NewMatchQuery(queryText)
	mq.SetField("text")
	var q query.Query = mq
	if len(filter) > 0 {
		conj := bleve.NewConjunctionQuery(mq)
		for k, v := range filter {
			tq := bleve.NewTermQuery(v)
			tq.SetField("metadata." + k)
			conj.AddQuery(tq)
		}
		q = conj
	}

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := b.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec := ScoredRecord{ID: hit.ID, Score: hit.Score}
		if r, ok := b.records[hit.ID]; ok {
			rec.Snippet = snippet(r.Text, 240)
			rec.Metadata = r.Metadata
		}
		out = append(out, rec)
	}
	return out, nil
}

func (b *bleveLexical) GetByID(ctx context.Context, id string) (string, map[string]string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[id]
	if !ok {
		return "", nil, false, nil
	}
	return r.Text, r.Metadata, true, nil
}

// DocumentIDs returns the distinct source document_id values carried in
// each record's metadata (record ids are chunk/image ids, not document
// ids).
func (b *bleveLexical) DocumentIDs(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range b.records {
		if id := r.Metadata["document_id"]; id != "" {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}

// ListByMetadata returns every record whose metadata matches filter
// exactly, scanning the records map directly rather than going through
// bleve (an empty-text match query against bleve returns no hits).
func (b *bleveLexical) ListByMetadata(ctx context.Context, filter map[string]string) ([]ScoredRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []ScoredRecord
	for id, r := range b.records {
		match := true
		for k, v := range filter {
			if r.Metadata[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, ScoredRecord{ID: id, Snippet: snippet(r.Text, 240), Metadata: r.Metadata})
		}
	}
	return out, nil
}

func (b *bleveLexical) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

func snippet(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
