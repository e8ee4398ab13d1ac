package gateway

import (
	"encoding/json"
	"net/http"

	"ragcorpus/internal/apperr"
	"ragcorpus/internal/config"
	"ragcorpus/internal/retrieve"
)

const (
	sharedTextIndex   = "docs__text"
	sharedImagesIndex = "docs__images"
)

type queryRequest struct {
	Question       string   `json:"question"`
	K              int      `json:"k"`
	SearchMode     string   `json:"search_mode"`
	UseMMR         *bool    `json:"use_mmr"`
	SemanticWeight float64  `json:"semantic_weight"`
	MMRLambda      float64  `json:"mmr_lambda"`
	UseAgenticRAG  bool     `json:"use_agentic_rag"`
	Temperature    float64  `json:"temperature"`
	MaxTokens      int      `json:"max_tokens"`
	DocumentID     string   `json:"document_id"`
	ActiveSources  []string `json:"active_sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, apperr.New(apperr.KindClient, "question is required"))
		return
	}

	opt := retrieve.Options{
		K:              req.K,
		SearchMode:     config.SearchMode(req.SearchMode),
		UseMMR:         req.UseMMR == nil || *req.UseMMR,
		SemanticWeight: req.SemanticWeight,
		MMRLambda:      req.MMRLambda,
		UseAgenticRAG:  req.UseAgenticRAG,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		DocumentID:     req.DocumentID,
		ActiveSources:  req.ActiveSources,
		WantImages:     false,
	}

	answer, err := s.textQ.Query(r.Context(), req.Question, sharedTextIndex, "", opt)
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"answer":          answer.AnswerText,
		"sources":         sourceNames(answer.Citations),
		"citations":       answer.Citations,
		"num_chunks_used": answer.NumChunksUsed,
		"response_time":   answer.ResponseTime.String(),
		"context_tokens":  answer.ContextTokens,
		"response_tokens": answer.ResponseTokens,
		"total_tokens":    answer.TotalTokens,
		"warnings":        answer.Warnings,
		"generation_failed": answer.GenerationFailed,
	})
}

type queryImagesRequest struct {
	Question string `json:"question"`
	Source   string `json:"source"`
	K        int    `json:"k"`
}

func (s *Server) handleQueryImages(w http.ResponseWriter, r *http.Request) {
	var req queryImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Question == "" {
		respondError(w, http.StatusBadRequest, apperr.New(apperr.KindClient, "question is required"))
		return
	}

	images, err := s.imagesQ.QueryImages(r.Context(), req.Question, sharedImagesIndex, req.K, req.Source)
	if err != nil {
		respondError(w, apperr.StatusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"images":       images,
		"total":        len(images),
		"content_type": "image_ocr",
		"images_index": sharedImagesIndex,
	})
}

func sourceNames(citations []retrieve.Citation) []string {
	seen := make(map[string]struct{}, len(citations))
	var out []string
	for _, c := range citations {
		if _, ok := seen[c.SourceName]; !ok {
			seen[c.SourceName] = struct{}{}
			out = append(out, c.SourceName)
		}
	}
	return out
}
