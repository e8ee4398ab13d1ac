package mcpsurface

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcorpus/internal/blobstore"
	"ragcorpus/internal/config"
	"ragcorpus/internal/docstore"
	"ragcorpus/internal/embedclient"
	"ragcorpus/internal/generator"
	"ragcorpus/internal/ingest"
	"ragcorpus/internal/logging"
	"ragcorpus/internal/objectstore"
	"ragcorpus/internal/parser"
	"ragcorpus/internal/registry"
	"ragcorpus/internal/reranker"
	"ragcorpus/internal/retrieve"
)

type fixedGenerator struct{ text string }

func (f fixedGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, generator.Usage, error) {
	return f.text, generator.Usage{PromptTokens: 1, CompletionTokens: 1}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg, err := registry.New(config.DefaultRegistryConfig(t.TempDir()), logging.NewDefault("mcp-test"))
	require.NoError(t, err)

	storageCfg := config.DefaultStorageConfig()
	storageCfg.VectorDimension = 3
	store := docstore.New(storageCfg, logging.NewDefault("mcp-test"))
	t.Cleanup(func() { _ = store.Close() })

	blobs := blobstore.New(objectstore.NewMemoryStore())

	embedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var data []datum
		for i := range req.Input {
			data = append(data, datum{Index: i, Embedding: []float32{1, 0, 0}})
		}
		_ = json.NewEncoder(w).Encode(struct {
			Data []datum `json:"data"`
		}{Data: data})
	}))
	t.Cleanup(embedSrv.Close)
	embed := embedclient.New(embedclient.Config{BaseURL: embedSrv.URL})

	parsers := map[parser.Kind]parser.Parser{parser.KindPlain: parser.NewPlain(parser.PlainTextExtract)}
	ingester := ingest.NewWorker(reg, store, blobs, embed, parsers, nil, config.DefaultIngestionConfig(), logging.NewDefault("mcp-test"))

	var gen generator.Generator = fixedGenerator{text: "the answer [1]"}
	retriever := retrieve.NewWorker(store, embed, gen, reranker.Noop{}, config.DefaultRetrievalConfig())

	return NewServer(reg, store, blobs, ingester, retriever, retriever, logging.NewDefault("mcp-test"))
}

func TestHandleIngestDocument_DecodesAndIngestsDocument(t *testing.T) {
	s := newTestServer(t)
	content := base64.StdEncoding.EncodeToString([]byte("the quick brown fox jumps over the lazy dog"))

	_, out, err := s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{Name: "notes.txt", ContentBase64: content})
	require.NoError(t, err)
	assert.Equal(t, "success", out.Status)
	assert.Greater(t, out.ChunksCreated, 0)
	assert.NotEmpty(t, out.DocumentID)
}

func TestHandleIngestDocument_InvalidBase64ReturnsError(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{Name: "notes.txt", ContentBase64: "not-valid-base64!!"})
	require.Error(t, err)
}

func TestHandleIngestDocument_MissingFieldsReturnsClientError(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{})
	require.Error(t, err)
}

func TestHandleListDocuments_ReturnsEmptyThenOne(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleListDocuments(t.Context(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Total)

	content := base64.StdEncoding.EncodeToString([]byte("some document content"))
	_, _, err = s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{Name: "a.txt", ContentBase64: content})
	require.NoError(t, err)

	_, out, err = s.handleListDocuments(t.Context(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
}

func TestHandleGetDocumentStatus_UnknownDocumentReturnsError(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleGetDocumentStatus(t.Context(), nil, GetDocumentStatusInput{DocumentID: "missing"})
	require.Error(t, err)
}

func TestHandleGetDocumentStatus_KnownDocumentReturnsDocument(t *testing.T) {
	s := newTestServer(t)
	content := base64.StdEncoding.EncodeToString([]byte("status check content"))
	_, ingested, err := s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{Name: "b.txt", ContentBase64: content})
	require.NoError(t, err)

	_, out, err := s.handleGetDocumentStatus(t.Context(), nil, GetDocumentStatusInput{DocumentID: ingested.DocumentID})
	require.NoError(t, err)
	require.NotNil(t, out.Document)
	assert.Equal(t, ingested.DocumentID, out.Document.DocumentID)
}

func TestHandleDeleteDocument_RemovesDocumentThenStatusLookupFails(t *testing.T) {
	s := newTestServer(t)
	content := base64.StdEncoding.EncodeToString([]byte("content to delete"))
	_, ingested, err := s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{Name: "c.txt", ContentBase64: content})
	require.NoError(t, err)

	_, out, err := s.handleDeleteDocument(t.Context(), nil, DeleteDocumentInput{DocumentID: ingested.DocumentID})
	require.NoError(t, err)
	assert.True(t, out.Deleted)

	_, _, err = s.handleGetDocumentStatus(t.Context(), nil, GetDocumentStatusInput{DocumentID: ingested.DocumentID})
	assert.Error(t, err)
}

func TestHandleDeleteDocument_UnknownDocumentReturnsError(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleDeleteDocument(t.Context(), nil, DeleteDocumentInput{DocumentID: "missing"})
	require.Error(t, err)
}

func TestHandleManageIndex_DefaultsToSharedTextIndex(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleManageIndex(t.Context(), nil, ManageIndexInput{})
	require.NoError(t, err)
	assert.Equal(t, sharedTextIndex, out.IndexName)
}

func TestHandleManageIndex_ReportsOpenAfterIngest(t *testing.T) {
	s := newTestServer(t)
	content := base64.StdEncoding.EncodeToString([]byte("index open check content"))
	_, _, err := s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{Name: "d.txt", ContentBase64: content})
	require.NoError(t, err)

	_, out, err := s.handleManageIndex(t.Context(), nil, ManageIndexInput{IndexName: sharedTextIndex})
	require.NoError(t, err)
	assert.True(t, out.Open)
}

func TestHandleGetSystemStats_TracksStatusBreakdown(t *testing.T) {
	s := newTestServer(t)
	content := base64.StdEncoding.EncodeToString([]byte("stats check content"))
	_, _, err := s.handleIngestDocument(t.Context(), nil, IngestDocumentInput{Name: "e.txt", ContentBase64: content})
	require.NoError(t, err)

	_, out, err := s.handleGetSystemStats(t.Context(), nil, GetSystemStatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalDocuments)
	assert.Equal(t, 1, out.ByStatus["success"])
}

func TestHandleSearchKnowledgeBase_MissingQuestionReturnsError(t *testing.T) {
	s := newTestServer(t)
	_, _, err := s.handleSearchKnowledgeBase(t.Context(), nil, SearchKnowledgeBaseInput{})
	assert.Error(t, err)
}

func TestHandleSearchKnowledgeBase_NoDocumentsReturnsInsufficientContext(t *testing.T) {
	s := newTestServer(t)
	_, out, err := s.handleSearchKnowledgeBase(t.Context(), nil, SearchKnowledgeBaseInput{Question: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "insufficient context", out.Answer)
}
