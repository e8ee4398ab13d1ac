package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestionConfig_ChunkSizingPerPreset(t *testing.T) {
	cases := []struct {
		preset          ChunkPreset
		maxTokens       int
		overlapTokens   int
	}{
		{PresetPrecise, 256, 50},
		{PresetBalanced, 384, 75},
		{PresetComprehensive, 512, 100},
		{ChunkPreset("unknown"), 384, 75},
	}
	for _, c := range cases {
		cfg := IngestionConfig{ChunkPreset: c.preset}
		max, overlap := cfg.ChunkSizing()
		assert.Equal(t, c.maxTokens, max, c.preset)
		assert.Equal(t, c.overlapTokens, overlap, c.preset)
	}
}

func TestDefaultIngestionConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultIngestionConfig()
	assert.Equal(t, PresetBalanced, cfg.ChunkPreset)
	assert.Equal(t, 5000, cfg.ImageMarkerDivisor)
	assert.Equal(t, 64, cfg.EmbedBatchSize)
}

func TestDefaultRetrievalConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultRetrievalConfig()
	assert.Equal(t, 6, cfg.DefaultK)
	assert.Equal(t, SearchModeHybrid, cfg.DefaultSearchMode)
	assert.True(t, cfg.DefaultUseMMR)
	assert.Equal(t, 0.7, cfg.DefaultSemanticWeight)
}

func TestDefaultStorageConfig_LeavesQdrantAddrEmptyForLocalFallback(t *testing.T) {
	cfg := DefaultStorageConfig()
	assert.Empty(t, cfg.QdrantAddr)
	assert.Equal(t, "cosine", cfg.DistanceMetric)
	assert.Equal(t, 1536, cfg.VectorDimension)
}

func TestDefaultRegistryConfig_UsesGivenDir(t *testing.T) {
	cfg := DefaultRegistryConfig("/tmp/registry")
	assert.Equal(t, "/tmp/registry", cfg.Dir)
	assert.NotZero(t, cfg.LockTimeout)
}
