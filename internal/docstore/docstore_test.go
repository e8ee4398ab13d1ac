package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcorpus/internal/config"
	"ragcorpus/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DefaultStorageConfig()
	cfg.VectorDimension = 3
	s := New(cfg, logging.NewDefault("docstore-test"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_OpenStreamFallsBackToLocalVariantWithoutQdrantAddr(t *testing.T) {
	s := newTestStore(t)
	_, err := s.OpenStream(context.Background(), "docs__text")
	require.NoError(t, err)
	assert.True(t, s.Degraded())
}

func TestStore_OpenStreamIsIdempotentPerIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st1, err := s.OpenStream(ctx, "docs__text")
	require.NoError(t, err)
	st2, err := s.OpenStream(ctx, "docs__text")
	require.NoError(t, err)
	assert.Same(t, st1, st2)
}

func TestStore_InsertBatchThenSemanticAndLexicalSearchFindRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []Record{
		{ID: "c1", Text: "the quick brown fox", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"document_id": "doc1"}},
	}
	vecOK, lexOK, err := s.InsertBatch(ctx, "docs__text", records)
	require.NoError(t, err)
	assert.True(t, vecOK)
	assert.True(t, lexOK)

	sem, err := s.SemanticSearch(ctx, "docs__text", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, sem, 1)
	assert.Equal(t, "c1", sem[0].ID)

	lex, err := s.LexicalSearch(ctx, "docs__text", "brown fox", 5, nil)
	require.NoError(t, err)
	require.Len(t, lex, 1)
	assert.Equal(t, "c1", lex[0].ID)
}

func TestStore_HybridSearchFusesBothStreams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, indexOne(ctx, s, "c1", "alpha beta gamma", []float32{1, 0, 0}, map[string]string{"document_id": "doc1"}))
	require.NoError(t, indexOne(ctx, s, "c2", "delta epsilon zeta", []float32{0, 1, 0}, map[string]string{"document_id": "doc2"}))

	out, err := s.HybridSearch(ctx, "docs__text", "alpha", []float32{1, 0, 0}, 5, 0.5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "c1", out[0].ID)
}

func TestStore_DeleteByDocumentRemovesRecordFromBothBackends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, indexOne(ctx, s, "c1", "deletable", []float32{1, 0, 0}, map[string]string{"document_id": "doc1"}))

	require.NoError(t, s.DeleteByDocument(ctx, "docs__text", "doc1", []string{"c1"}))

	sem, err := s.SemanticSearch(ctx, "docs__text", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	for _, r := range sem {
		assert.NotEqual(t, "c1", r.ID)
	}
	_, _, ok, err := s.GetByID(ctx, "docs__text", "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ListByFilterReturnsMatchingRecordsOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, indexOne(ctx, s, "c1", "page one", []float32{1, 0, 0}, map[string]string{"document_id": "doc1", "page": "1"}))
	require.NoError(t, indexOne(ctx, s, "c2", "page two", []float32{0, 1, 0}, map[string]string{"document_id": "doc1", "page": "2"}))

	out, err := s.ListByFilter(ctx, "docs__text", map[string]string{"document_id": "doc1", "page": "1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ID)
}

func TestStore_ListByFilterOnUnopenedIndexReturnsNil(t *testing.T) {
	s := newTestStore(t)
	out, err := s.ListByFilter(context.Background(), "never__opened", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStore_ListDocumentsInIndexReturnsDistinctDocumentIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, indexOne(ctx, s, "c1", "x", []float32{1, 0, 0}, map[string]string{"document_id": "doc1"}))
	require.NoError(t, indexOne(ctx, s, "c2", "y", []float32{0, 1, 0}, map[string]string{"document_id": "doc1"}))
	require.NoError(t, indexOne(ctx, s, "c3", "z", []float32{0, 0, 1}, map[string]string{"document_id": "doc2"}))

	ids, err := s.ListDocumentsInIndex(ctx, "docs__text")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc1", "doc2"}, ids)
}

func indexOne(ctx context.Context, s *Store, id, text string, vec []float32, meta map[string]string) error {
	_, _, err := s.InsertBatch(ctx, "docs__text", []Record{{ID: id, Text: text, Embedding: vec, Metadata: meta}})
	return err
}
