package embedclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcorpus/internal/apperr"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedBatch_EmptyInputReturnsNilWithoutRequest(t *testing.T) {
	called := false
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	c := New(Config{BaseURL: srv.URL})

	out, err := c.EmbedBatch(t.Context(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.False(t, called)
}

func TestEmbedBatch_PreservesInputOrderAcrossBatches(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i)}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	c := New(Config{BaseURL: srv.URL, BatchSize: 2, MaxConcurrent: 2})

	texts := []string{"a", "b", "c", "d", "e"}
	out, err := c.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, e := range out {
		require.Len(t, e, 1)
		assert.Equal(t, float32(i), e[0])
	}
}

func TestEmbedBatch_NonSuccessStatusReturnsTransientInfraError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})
	c := New(Config{BaseURL: srv.URL})

	_, err := c.EmbedBatch(t.Context(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding endpoint returned 500 Internal Server Error")
}

func TestEmbedBatch_MismatchedResponseLengthReturnsEmbeddingFailed(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{})
	})
	c := New(Config{BaseURL: srv.URL})

	_, err := c.EmbedBatch(t.Context(), []string{"x", "y"})
	assert.ErrorIs(t, err, apperr.ErrEmbeddingFailed)
}

func TestEmbedBatchTolerant_PersistentHalfBatchFailureLeavesOtherBatchIntact(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Input[0] == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
			return
		}
		resp := embedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i)}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	c := New(Config{BaseURL: srv.URL, BatchSize: 1, MaxConcurrent: 1})

	texts := []string{"ok1", "fail", "ok2"}
	out, failed, err := c.EmbedBatchTolerant(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.NotNil(t, out[0])
	assert.Nil(t, out[1])
	assert.NotNil(t, out[2])
	assert.Equal(t, []int{1}, failed)
}

func TestEmbedBatchTolerant_EveryBatchFailingReturnsEmbeddingFailed(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})
	c := New(Config{BaseURL: srv.URL, BatchSize: 1, MaxConcurrent: 1})

	out, failed, err := c.EmbedBatchTolerant(t.Context(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, []int{0, 1}, failed)
	require.Len(t, out, 2)
}

func TestNew_AppliesDocumentedDefaults(t *testing.T) {
	c := New(Config{BaseURL: "http://example.invalid"})
	assert.Equal(t, 64, c.cfg.BatchSize)
	assert.Equal(t, 4, c.cfg.MaxConcurrent)
	assert.Equal(t, "/v1/embeddings", c.cfg.Path)
}
