// Package docstore implements the Document Store adapter (spec §4.1): a
// dual-stream abstraction over a vector backend and a lexical backend,
// fronting either a cloud-hosted Qdrant cluster or a local in-process
// HNSW graph, with bleve providing real BM25-equivalent lexical scoring
// in both variants. Text chunks and image-OCR records are kept in two
// separate, never-merged indices — the adapter never exposes an
// operation that could fuse them.
package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"ragcorpus/internal/apperr"
	"ragcorpus/internal/config"
)

// Record is the narrow shape insert_batch needs: either a Chunk or an
// ImageRecord, reduced to (id, text, embedding, metadata).
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// ScoredRecord is one hit from semantic_search, lexical_search or
// hybrid_search.
type ScoredRecord struct {
	ID       string
	Score    float64
	Snippet  string
	Metadata map[string]string
}

// VectorBackend is the minimal contract a vector variant (Qdrant or
// HNSW) must satisfy.
type VectorBackend interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]ScoredRecord, error)
	Close() error
}

// LexicalBackend is the minimal contract the bleve-backed lexical index
// must satisfy.
type LexicalBackend interface {
	Index(ctx context.Context, id, text string, metadata map[string]string) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]ScoredRecord, error)
	GetByID(ctx context.Context, id string) (string, map[string]string, bool, error)
	ListByMetadata(ctx context.Context, filter map[string]string) ([]ScoredRecord, error)
	Close() error
}

// Stream is one of the two dual-stream indices (spec's "text_index" and
// "images_index").
type Stream struct {
	Name    string
	Vector  VectorBackend
	Lexical LexicalBackend
}

// Store is the Document Store adapter: one Stream per content type,
// shared retry policy, and the degraded-capability fallback rule from
// spec §4.1.
type Store struct {
	log      zerolog.Logger
	cfg      config.StorageConfig
	streams  map[string]*Stream // index_name -> Stream
	degraded bool                // true if running the local variant after a failed cloud dial
}

func New(cfg config.StorageConfig, log zerolog.Logger) *Store {
	return &Store{cfg: cfg, log: log, streams: make(map[string]*Stream)}
}

// Degraded reports whether the store fell back to the local variant.
func (s *Store) Degraded() bool { return s.degraded }

// OpenStream lazily creates (or returns) the Stream for indexName,
// dialing Qdrant first and falling back to the local HNSW variant on
// failure, logging a degraded-capability warning rather than dropping
// data (spec §4.1).
func (s *Store) OpenStream(ctx context.Context, indexName string) (*Stream, error) {
	if st, ok := s.streams[indexName]; ok {
		return st, nil
	}
	lex, err := newBleveLexical(indexName)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFatal, "open lexical index", err)
	}

	var vec VectorBackend
	if s.cfg.QdrantAddr != "" {
		vec, err = newQdrantBackend(s.cfg.QdrantAddr, s.cfg.QdrantAPIKey, indexName, s.cfg.VectorDimension, s.cfg.DistanceMetric)
	}
	if vec == nil {
		if err != nil {
			s.log.Warn().Err(err).Str("index", indexName).Msg("qdrant unreachable at startup, falling back to local HNSW variant")
		}
		s.degraded = true
		vec = newHNSWBackend(s.cfg.VectorDimension)
	}

	st := &Stream{Name: indexName, Vector: vec, Lexical: lex}
	s.streams[indexName] = st
	return st, nil
}

// IndexExists reports whether indexName has been opened (used by
// GET /documents/{id}/storage/status to report truthful index names,
// per spec's Open Question on per-document vs. shared indices).
func (s *Store) IndexExists(indexName string) bool {
	_, ok := s.streams[indexName]
	return ok
}

// ListDocumentsInIndex returns the distinct document_ids with at least
// one record in indexName's lexical stream (lexical is authoritative for
// id enumeration; vector backends here are id-opaque by design).
func (s *Store) ListDocumentsInIndex(ctx context.Context, indexName string) ([]string, error) {
	st, ok := s.streams[indexName]
	if !ok {
		return nil, nil
	}
	return st.Lexical.(interface {
		DocumentIDs(ctx context.Context) ([]string, error)
	}).DocumentIDs(ctx)
}

// withRetry wraps a transient-error-prone call with exponential backoff,
// jittered, base 500ms, factor 2, max 5 attempts (spec §4.1).
func withRetry(ctx context.Context, cfg config.StorageConfig, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffBase
	if b.InitialInterval == 0 {
		b.InitialInterval = 500 * time.Millisecond
	}
	b.Multiplier = cfg.BackoffFactor
	if b.Multiplier == 0 {
		b.Multiplier = 2
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries(cfg)))
	return err
}

func maxTries(cfg config.StorageConfig) uint {
	if cfg.BackoffMaxTries <= 0 {
		return 5
	}
	return uint(cfg.BackoffMaxTries)
}

// InsertBatch writes records (all Chunks or all ImageRecords, never
// mixed) to stream's vector and lexical backends. Fails atomically per
// batch for each backend: when a write fails after retries, the records
// of the batch already written to that backend are deleted from it
// again (best effort; delete errors are ignored), so that backend holds
// all records or none (spec §4.1) — callers combine the two backend
// results to decide success/partial/failed (spec §4.2 step 7).
func (s *Store) InsertBatch(ctx context.Context, indexName string, records []Record) (vectorOK, lexicalOK bool, err error) {
	st, oerr := s.OpenStream(ctx, indexName)
	if oerr != nil {
		return false, false, oerr
	}

	vectorOK = true
	var written []string
	for _, r := range records {
		if len(r.Embedding) == 0 {
			continue
		}
		rec := r
		if rerr := withRetry(ctx, s.cfg, func() error {
			return st.Vector.Upsert(ctx, rec.ID, rec.Embedding, rec.Metadata)
		}); rerr != nil {
			s.log.Error().Err(rerr).Str("index", indexName).Msg("vector upsert failed after retries")
			vectorOK = false
			for _, id := range written {
				_ = st.Vector.Delete(ctx, id)
			}
			break
		}
		written = append(written, rec.ID)
	}

	lexicalOK = true
	written = nil
	for _, r := range records {
		rec := r
		if rerr := withRetry(ctx, s.cfg, func() error {
			return st.Lexical.Index(ctx, rec.ID, rec.Text, rec.Metadata)
		}); rerr != nil {
			s.log.Error().Err(rerr).Str("index", indexName).Msg("lexical index failed after retries")
			lexicalOK = false
			for _, id := range written {
				_ = st.Lexical.Remove(ctx, id)
			}
			break
		}
		written = append(written, rec.ID)
	}
	return vectorOK, lexicalOK, nil
}

// DeleteByDocument removes every record bearing document_id (as found in
// the lexical backend's metadata), plus any record listed in ids, from
// both the vector and lexical backends of stream. Idempotent.
func (s *Store) DeleteByDocument(ctx context.Context, indexName, documentID string, ids []string) error {
	st, ok := s.streams[indexName]
	if !ok {
		return nil
	}
	if recs, err := st.Lexical.ListByMetadata(ctx, map[string]string{"document_id": documentID}); err == nil {
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
	}
	for _, id := range ids {
		_ = st.Vector.Delete(ctx, id)
		_ = st.Lexical.Remove(ctx, id)
	}
	return nil
}

// SemanticSearch returns top-k records by cosine similarity.
func (s *Store) SemanticSearch(ctx context.Context, indexName string, queryVector []float32, k int, filter map[string]string) ([]ScoredRecord, error) {
	st, ok := s.streams[indexName]
	if !ok {
		return nil, fmt.Errorf("docstore: index %q not open", indexName)
	}
	var out []ScoredRecord
	err := withRetry(ctx, s.cfg, func() error {
		var serr error
		out, serr = st.Vector.SimilaritySearch(ctx, queryVector, k, filter)
		return serr
	})
	return out, err
}

// LexicalSearch returns top-k records by BM25-equivalent relevance.
func (s *Store) LexicalSearch(ctx context.Context, indexName, queryText string, k int, filter map[string]string) ([]ScoredRecord, error) {
	st, ok := s.streams[indexName]
	if !ok {
		return nil, fmt.Errorf("docstore: index %q not open", indexName)
	}
	var out []ScoredRecord
	err := withRetry(ctx, s.cfg, func() error {
		var serr error
		out, serr = st.Lexical.Search(ctx, queryText, k, filter)
		return serr
	})
	return out, err
}

// HybridSearch is the internal helper producing a fused scored list from
// both streams using the plain normalised weighted sum from spec §4.3
// step 2: score = w*semantic + (1-w)*lexical.
func (s *Store) HybridSearch(ctx context.Context, indexName string, queryText string, queryVector []float32, k int, weight float64, filter map[string]string) ([]ScoredRecord, error) {
	sem, err := s.SemanticSearch(ctx, indexName, queryVector, k, filter)
	if err != nil {
		return nil, err
	}
	lex, err := s.LexicalSearch(ctx, indexName, queryText, k, filter)
	if err != nil {
		return nil, err
	}
	return FuseWeighted(sem, lex, weight, k), nil
}

// GetByID returns the stored text and metadata for id from stream's
// lexical backend (the lexical index is the system of record for raw
// text; the vector backend stores only embeddings + metadata).
func (s *Store) GetByID(ctx context.Context, indexName, id string) (string, map[string]string, bool, error) {
	st, ok := s.streams[indexName]
	if !ok {
		return "", nil, false, nil
	}
	return st.Lexical.GetByID(ctx, id)
}

// ListByFilter returns every record in indexName's lexical stream whose
// metadata matches filter exactly, unscored. Used by the page-retrieval
// endpoint (spec §6's GET /documents/{id}/pages/{page}), which needs
// every chunk/image on a page rather than a top-k ranked subset.
func (s *Store) ListByFilter(ctx context.Context, indexName string, filter map[string]string) ([]ScoredRecord, error) {
	st, ok := s.streams[indexName]
	if !ok {
		return nil, nil
	}
	return st.Lexical.ListByMetadata(ctx, filter)
}

// Close releases every opened stream's backends.
func (s *Store) Close() error {
	var firstErr error
	for _, st := range s.streams {
		if err := st.Vector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := st.Lexical.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
