package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBleve(t *testing.T) LexicalBackend {
	t.Helper()
	b, err := newBleveLexical("test__text")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBleveLexical_IndexAndSearchFindsMatchingText(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.Index(ctx, "c1", "the quick brown fox jumps over the lazy dog", map[string]string{"source_name": "fox.txt"}))
	require.NoError(t, b.Index(ctx, "c2", "an entirely unrelated sentence about weather", map[string]string{"source_name": "weather.txt"}))

	out, err := b.Search(ctx, "brown fox", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "c1", out[0].ID)
}

func TestBleveLexical_SearchAppliesMetadataFilter(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.Index(ctx, "c1", "apples and oranges", map[string]string{"document_id": "doc1"}))
	require.NoError(t, b.Index(ctx, "c2", "apples and oranges", map[string]string{"document_id": "doc2"}))

	out, err := b.Search(ctx, "apples", 10, map[string]string{"document_id": "doc2"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c2", out[0].ID)
}

func TestBleveLexical_RemoveDropsFromSearchAndGetByID(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.Index(ctx, "c1", "removable content", nil))
	require.NoError(t, b.Remove(ctx, "c1"))

	_, _, ok, err := b.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBleveLexical_GetByIDReturnsStoredTextAndMetadata(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.Index(ctx, "c1", "stored text", map[string]string{"page": "3"}))

	text, meta, ok, err := b.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "stored text", text)
	assert.Equal(t, "3", meta["page"])
}

func TestBleveLexical_ListByMetadataReturnsOnlyMatchingRecords(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.Index(ctx, "c1", "page one text", map[string]string{"document_id": "doc1", "page": "1"}))
	require.NoError(t, b.Index(ctx, "c2", "page two text", map[string]string{"document_id": "doc1", "page": "2"}))
	require.NoError(t, b.Index(ctx, "c3", "other document", map[string]string{"document_id": "doc2", "page": "1"}))

	out, err := b.(*bleveLexical).ListByMetadata(ctx, map[string]string{"document_id": "doc1", "page": "1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ID)
}

func TestSnippet_TruncatesLongTextWithEllipsis(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	out := snippet(string(long), 240)
	assert.Len(t, out, 243)
	assert.True(t, len(out) > 240)
}

func TestSnippet_ShortTextPassesThroughUnchanged(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 240))
}
