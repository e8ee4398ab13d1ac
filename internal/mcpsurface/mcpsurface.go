// Package mcpsurface exposes the corpus over the Model Context Protocol
// (spec §4.5): seven tools, each a thin one-to-one wrapper around a
// Gateway operation, adding schema validation but no independent state.
// Grounded on the registerTools/mcp.AddTool pattern from the pack's MCP
// server example (amanmcp's internal/mcp package), rebuilt around
// document/query tools instead of codebase search tools.
package mcpsurface

import (
	"context"
	"encoding/base64"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"ragcorpus/internal/apperr"
	"ragcorpus/internal/blobstore"
	"ragcorpus/internal/config"
	"ragcorpus/internal/docstore"
	"ragcorpus/internal/ingest"
	"ragcorpus/internal/model"
	"ragcorpus/internal/parser"
	"ragcorpus/internal/registry"
	"ragcorpus/internal/retrieve"
)

const (
	sharedTextIndex   = "docs__text"
	sharedImagesIndex = "docs__images"
)

// Server wraps an *mcp.Server wired to the same components the Gateway
// uses, so both surfaces stay in lockstep with the same ground truth.
type Server struct {
	mcp      *mcp.Server
	reg      *registry.Registry
	store    *docstore.Store
	blobs    *blobstore.Store
	ingester *ingest.Worker
	textQ    *retrieve.Worker
	imagesQ  *retrieve.Worker
	log      zerolog.Logger
}

// NewServer constructs the MCP surface and registers all seven tools.
func NewServer(reg *registry.Registry, store *docstore.Store, blobs *blobstore.Store, ingester *ingest.Worker, textQ, imagesQ *retrieve.Worker, log zerolog.Logger) *Server {
	s := &Server{reg: reg, store: store, blobs: blobs, ingester: ingester, textQ: textQ, imagesQ: imagesQ, log: log}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "ragcorpus", Version: "1"}, nil)
	s.registerTools()
	return s
}

// Serve runs the MCP server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_knowledge_base",
		Description: "Answer a question against the ingested corpus, returning a cited answer.",
	}, s.handleSearchKnowledgeBase)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a new source document (base64-encoded bytes) into the corpus.",
	}, s.handleIngestDocument)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every document currently registered, with status and counts.",
	}, s.handleListDocuments)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_document_status",
		Description: "Get the processing status and storage counts for one document.",
	}, s.handleGetDocumentStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document and cascade the removal to the document store and blob storage.",
	}, s.handleDeleteDocument)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "manage_index",
		Description: "Report which backend variant (cloud-hybrid or local) currently serves an index.",
	}, s.handleManageIndex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_system_stats",
		Description: "Report aggregate corpus statistics: document count, status breakdown, degraded-capability flag.",
	}, s.handleGetSystemStats)
}

// SearchKnowledgeBaseInput mirrors POST /query's body (spec §6).
type SearchKnowledgeBaseInput struct {
	Question      string   `json:"question" jsonschema:"the question to answer"`
	K             int      `json:"k,omitempty" jsonschema:"number of chunks to retrieve, default from retrieval config"`
	SearchMode    string   `json:"search_mode,omitempty" jsonschema:"semantic, keyword, or hybrid"`
	UseAgenticRAG bool     `json:"use_agentic_rag,omitempty" jsonschema:"decompose the question into sub-questions before retrieving"`
	DocumentID    string   `json:"document_id,omitempty" jsonschema:"restrict retrieval to one document"`
	ActiveSources []string `json:"active_sources,omitempty" jsonschema:"restrict retrieval to these source names"`
}

// SearchKnowledgeBaseOutput mirrors POST /query's response body.
type SearchKnowledgeBaseOutput struct {
	Answer          string             `json:"answer"`
	Citations       []retrieve.Citation `json:"citations"`
	NumChunksUsed   int                `json:"num_chunks_used"`
	ContextTokens   int                `json:"context_tokens"`
	TotalTokens     int                `json:"total_tokens"`
	Warnings        []string           `json:"warnings,omitempty"`
}

func (s *Server) handleSearchKnowledgeBase(ctx context.Context, _ *mcp.CallToolRequest, in SearchKnowledgeBaseInput) (*mcp.CallToolResult, SearchKnowledgeBaseOutput, error) {
	if in.Question == "" {
		return nil, SearchKnowledgeBaseOutput{}, apperr.New(apperr.KindClient, "question is required")
	}
	opt := retrieve.Options{
		K:             in.K,
		SearchMode:    config.SearchMode(in.SearchMode),
		UseAgenticRAG: in.UseAgenticRAG,
		DocumentID:    in.DocumentID,
		ActiveSources: in.ActiveSources,
	}
	answer, err := s.textQ.Query(ctx, in.Question, sharedTextIndex, "", opt)
	if err != nil {
		return nil, SearchKnowledgeBaseOutput{}, err
	}
	return nil, SearchKnowledgeBaseOutput{
		Answer:        answer.AnswerText,
		Citations:     answer.Citations,
		NumChunksUsed: answer.NumChunksUsed,
		ContextTokens: answer.ContextTokens,
		TotalTokens:   answer.TotalTokens,
		Warnings:      answer.Warnings,
	}, nil
}

// IngestDocumentInput carries the raw bytes inline (MCP has no multipart
// upload concept), mirroring POST /documents' optional overrides.
type IngestDocumentInput struct {
	Name             string `json:"name" jsonschema:"source file name, including extension"`
	ContentBase64    string `json:"content_base64" jsonschema:"base64-encoded raw file bytes"`
	ParserPreference string `json:"parser_preference,omitempty" jsonschema:"auto, fast, ocr, image_model, office, or plain"`
	ChunkingStrategy string `json:"chunking_strategy,omitempty" jsonschema:"precise, balanced, or comprehensive"`
}

type IngestDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ChunksCreated int `json:"chunks_created"`
	ImagesStored  int `json:"images_stored"`
}

func (s *Server) handleIngestDocument(ctx context.Context, _ *mcp.CallToolRequest, in IngestDocumentInput) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	if in.Name == "" || in.ContentBase64 == "" {
		return nil, IngestDocumentOutput{}, apperr.New(apperr.KindClient, "name and content_base64 are required")
	}
	raw, err := base64.StdEncoding.DecodeString(in.ContentBase64)
	if err != nil {
		return nil, IngestDocumentOutput{}, apperr.Wrap(apperr.KindClient, "invalid base64 content", err)
	}
	pref := parser.Kind(in.ParserPreference)
	if pref == "auto" {
		pref = ""
	}
	doc, err := s.ingester.Ingest(ctx, raw, in.Name, ingest.Options{
		ParserPreference: pref,
		ChunkingStrategy:  config.ChunkPreset(in.ChunkingStrategy),
	})
	if err != nil {
		return nil, IngestDocumentOutput{}, err
	}
	return nil, IngestDocumentOutput{
		DocumentID:    doc.DocumentID,
		Status:        string(doc.Status),
		ChunksCreated: doc.ChunksCreated,
		ImagesStored:  doc.ImagesStored,
	}, nil
}

type ListDocumentsInput struct{}

type ListDocumentsOutput struct {
	Documents []*model.Document `json:"documents"`
	Total     int                `json:"total"`
}

func (s *Server) handleListDocuments(ctx context.Context, _ *mcp.CallToolRequest, _ ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs := s.reg.List()
	return nil, ListDocumentsOutput{Documents: docs, Total: len(docs)}, nil
}

type GetDocumentStatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to inspect"`
}

type GetDocumentStatusOutput struct {
	Document *model.Document `json:"document"`
	Degraded bool            `json:"degraded"`
}

func (s *Server) handleGetDocumentStatus(ctx context.Context, _ *mcp.CallToolRequest, in GetDocumentStatusInput) (*mcp.CallToolResult, GetDocumentStatusOutput, error) {
	doc, err := s.reg.Get(in.DocumentID)
	if err != nil {
		return nil, GetDocumentStatusOutput{}, err
	}
	return nil, GetDocumentStatusOutput{Document: doc, Degraded: s.store.Degraded()}, nil
}

type DeleteDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to delete"`
}

type DeleteDocumentOutput struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) handleDeleteDocument(ctx context.Context, _ *mcp.CallToolRequest, in DeleteDocumentInput) (*mcp.CallToolResult, DeleteDocumentOutput, error) {
	doc, err := s.reg.Get(in.DocumentID)
	if err != nil {
		return nil, DeleteDocumentOutput{}, err
	}
	for _, indexName := range []string{doc.TextIndex, doc.ImagesIndex} {
		recs, lerr := s.store.ListByFilter(ctx, indexName, map[string]string{"document_id": in.DocumentID})
		if lerr != nil {
			continue
		}
		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		_ = s.store.DeleteByDocument(ctx, indexName, in.DocumentID, ids)
	}
	_ = s.blobs.DeleteDocument(ctx, in.DocumentID)
	if err := s.reg.Remove(in.DocumentID); err != nil {
		return nil, DeleteDocumentOutput{}, err
	}
	return nil, DeleteDocumentOutput{Deleted: true}, nil
}

type ManageIndexInput struct {
	IndexName string `json:"index_name" jsonschema:"docs__text or docs__images"`
}

type ManageIndexOutput struct {
	IndexName string `json:"index_name"`
	Open      bool   `json:"open"`
	Degraded  bool   `json:"degraded"`
}

func (s *Server) handleManageIndex(ctx context.Context, _ *mcp.CallToolRequest, in ManageIndexInput) (*mcp.CallToolResult, ManageIndexOutput, error) {
	if in.IndexName == "" {
		in.IndexName = sharedTextIndex
	}
	return nil, ManageIndexOutput{
		IndexName: in.IndexName,
		Open:      s.store.IndexExists(in.IndexName),
		Degraded:  s.store.Degraded(),
	}, nil
}

type GetSystemStatsInput struct{}

type GetSystemStatsOutput struct {
	TotalDocuments int            `json:"total_documents"`
	ByStatus       map[string]int `json:"by_status"`
	Degraded       bool           `json:"degraded"`
}

func (s *Server) handleGetSystemStats(ctx context.Context, _ *mcp.CallToolRequest, _ GetSystemStatsInput) (*mcp.CallToolResult, GetSystemStatsOutput, error) {
	docs := s.reg.List()
	byStatus := make(map[string]int)
	for _, d := range docs {
		byStatus[string(d.Status)]++
	}
	return nil, GetSystemStatsOutput{
		TotalDocuments: len(docs),
		ByStatus:       byStatus,
		Degraded:       s.store.Degraded(),
	}, nil
}
