// Package gateway implements the Gateway's HTTP surface (spec §4.4/§6):
// document lifecycle endpoints plus query endpoints, wired directly to
// the Registry, Document Store, Blob Store, Ingestion Worker and
// Retrieval Worker. Grounded on the teacher's internal/httpapi package —
// same net/http method+pattern routing, same respondJSON/respondError
// helpers — generalised from the playground's prompt/dataset/experiment
// resources to documents and queries.
package gateway

import (
	"net/http"

	"github.com/rs/zerolog"

	"ragcorpus/internal/blobstore"
	"ragcorpus/internal/docstore"
	"ragcorpus/internal/ingest"
	"ragcorpus/internal/registry"
	"ragcorpus/internal/retrieve"
)

// Server exposes the corpus's REST API.
type Server struct {
	reg      *registry.Registry
	store    *docstore.Store
	blobs    *blobstore.Store
	ingester *ingest.Worker
	textQ    *retrieve.Worker
	imagesQ  *retrieve.Worker
	log      zerolog.Logger
	mux      *http.ServeMux
}

// NewServer wires a Gateway Server. textQ and imagesQ may be the same
// *retrieve.Worker when a single Worker serves both streams; kept
// distinct because spec §4.3 lets semantic/lexical weighting differ per
// stream in principle.
func NewServer(reg *registry.Registry, store *docstore.Store, blobs *blobstore.Store, ingester *ingest.Worker, textQ, imagesQ *retrieve.Worker, log zerolog.Logger) *Server {
	s := &Server{reg: reg, store: store, blobs: blobs, ingester: ingester, textQ: textQ, imagesQ: imagesQ, log: log}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux = http.NewServeMux()

	s.mux.HandleFunc("POST /documents", s.handleUploadDocument)
	s.mux.HandleFunc("GET /documents", s.handleListDocuments)
	s.mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("PUT /documents/{id}", s.handleUpdateDocument)
	s.mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("POST /documents/{id}/reingest", s.handleReIngestDocument)
	s.mux.HandleFunc("GET /documents/{id}/pages/{page}", s.handleGetPage)
	s.mux.HandleFunc("GET /documents/{id}/storage/status", s.handleStorageStatus)

	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("POST /query/images", s.handleQueryImages)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}
