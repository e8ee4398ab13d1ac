package retrieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcorpus/internal/docstore"
)

func TestMMR_EmptyCandidatesReturnsNil(t *testing.T) {
	assert.Nil(t, MMR(nil, 0.7, 5))
}

func TestMMR_ZeroKReturnsNil(t *testing.T) {
	cands := []docstore.ScoredRecord{{ID: "a", Score: 1}}
	assert.Nil(t, MMR(cands, 0.7, 0))
}

func TestMMR_SelectsTopKWhenAllDissimilar(t *testing.T) {
	cands := []docstore.ScoredRecord{
		{ID: "a", Score: 0.9, Snippet: "alpha unrelated text one"},
		{ID: "b", Score: 0.8, Snippet: "bravo unrelated text two"},
		{ID: "c", Score: 0.1, Snippet: "charlie unrelated text three"},
	}
	out := MMR(cands, 1.0, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestMMR_PenalisesNearDuplicateSnippets(t *testing.T) {
	cands := []docstore.ScoredRecord{
		{ID: "a", Score: 0.9, Snippet: "the quick brown fox jumps"},
		{ID: "dup", Score: 0.85, Snippet: "the quick brown fox jumps"},
		{ID: "distinct", Score: 0.5, Snippet: "completely unrelated content here"},
	}
	out := MMR(cands, 0.5, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "distinct", out[1].ID, "near-duplicate of already-selected 'a' should be penalised below 'distinct'")
}

func TestTextSimilarity_IdenticalTextScoresOne(t *testing.T) {
	assert.Equal(t, 1.0, textSimilarity("alpha beta", "alpha beta"))
}

func TestTextSimilarity_EmptyStringScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, textSimilarity("", "alpha"))
}

func TestTextSimilarity_DisjointTextScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, textSimilarity("alpha beta", "gamma delta"))
}
