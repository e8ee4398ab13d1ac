package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"ragcorpus/internal/apperr"
	"ragcorpus/internal/config"
	"ragcorpus/internal/ingest"
	"ragcorpus/internal/model"
	"ragcorpus/internal/parser"
)

const maxUploadBytes = 200 << 20 // 200MiB, generous for a single source document

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("missing form field \"file\""))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	opts := ingest.Options{
		ParserPreference: parser.Kind(r.FormValue("parser_preference")),
		ChunkingStrategy:  config.ChunkPreset(r.FormValue("chunking_strategy")),
	}
	if opts.ParserPreference == "auto" {
		opts.ParserPreference = ""
	}

	doc, err := s.ingester.Ingest(r.Context(), data, header.Filename, opts)
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.reg.List()
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.reg.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string `json:"name"`
		ExpectedVersion *int   `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	expectedVersion := -1
	if body.ExpectedVersion != nil {
		expectedVersion = *body.ExpectedVersion
	}
	updated, err := s.reg.Update(r.PathValue("id"), expectedVersion, func(d *model.Document) {
		if body.Name != "" {
			d.Name = body.Name
		}
	})
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// handleReIngestDocument upgrades a document whose images stream stalled
// at status=partial (or otherwise needs reprocessing) by re-running
// parsing through dual-index write against the originally stored bytes
// (spec §4.2 Re-ingest, §8's partial->success boundary scenario).
func (s *Server) handleReIngestDocument(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParserPreference string `json:"parser_preference"`
		ChunkingStrategy string `json:"chunking_strategy"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}
	opts := ingest.Options{
		ParserPreference: parser.Kind(body.ParserPreference),
		ChunkingStrategy: config.ChunkPreset(body.ChunkingStrategy),
	}
	if opts.ParserPreference == "auto" {
		opts.ParserPreference = ""
	}

	doc, err := s.ingester.ReIngest(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	doc, err := s.reg.Get(id)
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}

	for _, indexName := range []string{doc.TextIndex, doc.ImagesIndex} {
		ids, lerr := s.store.ListByFilter(ctx, indexName, map[string]string{"document_id": id})
		if lerr != nil {
			continue
		}
		recIDs := make([]string, len(ids))
		for i, rec := range ids {
			recIDs[i] = rec.ID
		}
		_ = s.store.DeleteByDocument(ctx, indexName, id, recIDs)
	}
	_ = s.blobs.DeleteDocument(ctx, id)
	if err := s.reg.Remove(id); err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("page must be an integer"))
		return
	}
	doc, err := s.reg.Get(id)
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}

	filter := map[string]string{"document_id": id, "page": strconv.Itoa(page)}
	chunks, _ := s.store.ListByFilter(ctx, doc.TextIndex, filter)
	images, _ := s.store.ListByFilter(ctx, doc.ImagesIndex, filter)

	respondJSON(w, http.StatusOK, map[string]any{
		"text_chunks":  chunks,
		"images":       images,
		"total_chunks": len(chunks),
		"total_images": len(images),
	})
}

func (s *Server) handleStorageStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.reg.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"text_index":     doc.TextIndex,
		"images_index":   doc.ImagesIndex,
		"chunks_created": doc.ChunksCreated,
		"images_stored":  doc.ImagesStored,
		"status":         doc.Status,
		"degraded":       s.store.Degraded(),
	})
}

// handleHealth probes the Document Store's backend health rather than
// unconditionally reporting healthy (spec §6): a degraded vector/lexical
// backend should surface here the same way it surfaces on storage/status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	if s.store.Degraded() {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	respondJSON(w, httpStatus, map[string]any{"status": status})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"detail": err.Error()})
}
