// Package config defines the explicit, typed configuration records used
// by each subsystem. There is deliberately no YAML/env loader here —
// constructing these structs (with documented defaults) is the caller's
// job; this repo only specifies their shape.
package config

import (
	"runtime"
	"time"
)

// ChunkPreset names one of the three fixed chunking presets from spec §4.2.
type ChunkPreset string

const (
	PresetPrecise       ChunkPreset = "precise"
	PresetBalanced      ChunkPreset = "balanced" // default
	PresetComprehensive ChunkPreset = "comprehensive"
)

// IngestionConfig governs the Ingestion Worker.
type IngestionConfig struct {
	ParserTimeout             time.Duration // default 20 * time.Minute
	ImageMarkerDivisor        int           // default 5000, per the image-marker heuristic
	ChunkPreset               ChunkPreset   // default PresetBalanced
	MaxConcurrentEmbedBatches int           // default 4
	EmbedBatchSize            int           // default 64
	MaxConcurrentIngests      int           // default runtime.NumCPU()-1, floor 1
}

// DefaultIngestionConfig returns the documented defaults.
func DefaultIngestionConfig() IngestionConfig {
	ingests := runtime.NumCPU() - 1
	if ingests < 1 {
		ingests = 1
	}
	return IngestionConfig{
		ParserTimeout:             20 * time.Minute,
		ImageMarkerDivisor:        5000,
		ChunkPreset:               PresetBalanced,
		MaxConcurrentEmbedBatches: 4,
		EmbedBatchSize:            64,
		MaxConcurrentIngests:      ingests,
	}
}

// ChunkSizing resolves a preset to its (max tokens, overlap tokens) pair.
func (c IngestionConfig) ChunkSizing() (maxTokens, overlapTokens int) {
	switch c.ChunkPreset {
	case PresetPrecise:
		return 256, 50
	case PresetComprehensive:
		return 512, 100
	default:
		return 384, 75
	}
}

// SearchMode gates which scoring streams contribute to fusion.
type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeKeyword  SearchMode = "keyword"
	SearchModeHybrid   SearchMode = "hybrid" // default
)

// RetrievalConfig governs the Retrieval Worker's defaults; per-query
// Options (spec §4.3) left at their zero value take these defaults
// field by field. DefaultUseMMR is the exception: the worker does not
// read it, and Options.UseMMR alone decides whether MMR runs.
type RetrievalConfig struct {
	DefaultK             int           // default 6
	DefaultSearchMode     SearchMode   // default hybrid
	DefaultUseMMR         bool         // default true
	DefaultSemanticWeight float64      // default 0.7
	MMRLambda             float64      // default 0.7
	MaxContextTokens      int          // default 6000
	SearchTimeout         time.Duration // default 15s
	RerankTimeout         time.Duration // default 10s
	GenerateTimeout       time.Duration // default 60s
	GenerateBackoffBase     time.Duration // default 500ms
	GenerateBackoffFactor   float64       // default 2
	GenerateBackoffMaxTries int           // default 3
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DefaultK:              6,
		DefaultSearchMode:     SearchModeHybrid,
		DefaultUseMMR:         true,
		DefaultSemanticWeight: 0.7,
		MMRLambda:             0.7,
		MaxContextTokens:      6000,
		SearchTimeout:         15 * time.Second,
		RerankTimeout:         10 * time.Second,
		GenerateTimeout:       60 * time.Second,
		GenerateBackoffBase:     500 * time.Millisecond,
		GenerateBackoffFactor:   2,
		GenerateBackoffMaxTries: 3,
	}
}

// StorageConfig governs the Document Store adapter and blob storage.
type StorageConfig struct {
	QdrantAddr       string // host of the cloud-hybrid vector backend, dialed on gRPC port 6334
	QdrantAPIKey     string
	VectorDimension  int
	DistanceMetric   string // "cosine" | "dot" | "euclid"
	BlobBucket       string
	BlobEndpoint     string // non-empty selects path-style S3-compatible addressing
	BlobUseSSEKMS    bool
	BackoffBase      time.Duration // default 500ms
	BackoffFactor    float64       // default 2
	BackoffMaxTries  int           // default 5
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		VectorDimension: 1536,
		DistanceMetric:  "cosine",
		BackoffBase:     500 * time.Millisecond,
		BackoffFactor:   2,
		BackoffMaxTries: 5,
	}
}

// GeneratorConfig governs the answer-synthesis LLM provider.
type GeneratorConfig struct {
	Provider    string // "openai" | "anthropic"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// RegistryConfig governs the Gateway's document registry persistence.
type RegistryConfig struct {
	Dir         string // directory holding documents.json, version, and the lock file
	LockTimeout time.Duration
}

func DefaultRegistryConfig(dir string) RegistryConfig {
	return RegistryConfig{Dir: dir, LockTimeout: 5 * time.Second}
}
