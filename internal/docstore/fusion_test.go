package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseWeighted_SemanticOnlyWeightPrefersSemanticOrder(t *testing.T) {
	sem := []ScoredRecord{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.1},
	}
	lex := []ScoredRecord{
		{ID: "b", Score: 10},
		{ID: "a", Score: 1},
	}
	out := FuseWeighted(sem, lex, 1.0, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
}

func TestFuseWeighted_LexicalOnlyWeightPrefersLexicalOrder(t *testing.T) {
	sem := []ScoredRecord{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.1},
	}
	lex := []ScoredRecord{
		{ID: "b", Score: 10},
		{ID: "a", Score: 1},
	}
	out := FuseWeighted(sem, lex, 0.0, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
}

func TestFuseWeighted_TruncatesToK(t *testing.T) {
	sem := []ScoredRecord{{ID: "a", Score: 1}, {ID: "b", Score: 0.5}, {ID: "c", Score: 0.1}}
	out := FuseWeighted(sem, nil, 1.0, 2)
	assert.Len(t, out, 2)
}

func TestFuseWeighted_SingleElementNormalizesToOne(t *testing.T) {
	sem := []ScoredRecord{{ID: "a", Score: 0.3}}
	out := FuseWeighted(sem, nil, 0.5, 10)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.5, out[0].Score, 1e-9)
}
