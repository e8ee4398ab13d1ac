// Package model holds the corpus's persistent data shapes: Document,
// Chunk, ImageRecord and the registry's version bookkeeping. Nothing in
// this package talks to storage; it only defines what storage holds.
package model

import "time"

// Status is the lifecycle state of a Document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

// ContentType distinguishes the two never-merged retrieval streams.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImageOCR ContentType = "image_ocr"
)

// UploadMetadata captures how and when a document arrived.
type UploadMetadata struct {
	Source   string    `json:"source"`
	Uploader string    `json:"uploader"`
	SizeB    int64     `json:"size_bytes"`
	At       time.Time `json:"at"`
}

// PDFMetadata holds page-level and authorship facts when the source parser
// reports them. Zero values mean "not present", not "zero".
type PDFMetadata struct {
	PageCount   int       `json:"page_count,omitempty"`
	Author      string    `json:"author,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	HasMetadata bool      `json:"has_metadata"`
}

// ProcessingMetadata records the ingestion pipeline's own behaviour for a
// document: which parsers were attempted and how long each stage took.
type ProcessingMetadata struct {
	ParserFallbackChain []string         `json:"parser_fallback_chain,omitempty"`
	StageDurationsMS    map[string]int64 `json:"stage_durations_ms,omitempty"`
	FailedChunkIDs      []string         `json:"failed_chunk_ids,omitempty"`
	FailedImageIDs      []string         `json:"failed_image_ids,omitempty"`
}

// PriorVersion is one entry in a Document's version history.
type PriorVersion struct {
	Version int       `json:"version"`
	At      time.Time `json:"at"`
	Summary string    `json:"summary"`
}

// VersionInfo is the monotonic per-document version plus its change log.
type VersionInfo struct {
	Version int            `json:"version"`
	Prior   []PriorVersion `json:"prior,omitempty"`
}

// Document is a logical ingested source. See spec §3 for the attribute
// contract; document_id is immutable once assigned and chunks_created /
// images_stored are monotonically non-decreasing until deletion.
type Document struct {
	DocumentID         string              `json:"document_id"`
	Name               string              `json:"name"`
	OriginalName       string              `json:"original_name"`
	FileHash           string              `json:"file_hash"`
	Upload             UploadMetadata      `json:"upload_metadata"`
	PDF                *PDFMetadata        `json:"pdf_metadata,omitempty"`
	ParserUsed         string              `json:"parser_used"`
	Processing         ProcessingMetadata  `json:"processing_metadata"`
	ChunksCreated       int                `json:"chunks_created"`
	ImagesStored        int                `json:"images_stored"`
	Status             Status              `json:"status"`
	Error              string              `json:"error,omitempty"`
	TextIndex          string              `json:"text_index"`
	ImagesIndex        string              `json:"images_index"`
	Version            VersionInfo         `json:"version_info"`
}

// Chunk is a token-bounded contiguous text span, the retrieval unit for
// the text stream. Never mutated after creation.
type Chunk struct {
	ChunkID     string      `json:"chunk_id"`
	DocumentID  string      `json:"document_id"`
	SourceName  string      `json:"source_name"`
	Page        int         `json:"page,omitempty"`
	ChunkIndex  int         `json:"chunk_index"`
	TokenCount  int         `json:"token_count"`
	Text        string      `json:"text"`
	Embedding   []float32   `json:"embedding,omitempty"`
	ContentType ContentType `json:"content_type"`
}

// ImageRecord is an extracted image plus its OCR text, the retrieval unit
// for the image stream.
type ImageRecord struct {
	ImageID           string            `json:"image_id"`
	DocumentID        string            `json:"document_id"`
	SourceName        string            `json:"source_name"`
	Page              int               `json:"page,omitempty"`
	ImageNumber       int               `json:"image_number"`
	OCRText           string            `json:"ocr_text"`
	OCRQualityMetrics OCRQualityMetrics `json:"ocr_quality_metrics"`
	Embedding         []float32         `json:"embedding,omitempty"`
	ContentType       ContentType       `json:"content_type"`
	ExtractionMethod  string            `json:"extraction_method"`
	Placeholder       bool              `json:"placeholder,omitempty"`
}

// OCRQualityMetrics is a best-effort signal of OCR output quality.
type OCRQualityMetrics struct {
	CharCount  int     `json:"char_count"`
	WordCount  int     `json:"word_count"`
	Confidence float64 `json:"confidence,omitempty"`
}
