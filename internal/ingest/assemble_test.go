package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragcorpus/internal/chunker"
	"ragcorpus/internal/parser"
)

func TestAggregate_CollectsPageTextAndImages(t *testing.T) {
	res := parser.Result{
		Pages: []parser.Page{
			{PageNumber: 1, Text: "page one text", ExtractedImages: []parser.ExtractedImage{
				{ImageNumber: 1, OCRText: "ocr one", ExtractionMethod: "ocr"},
			}},
			{PageNumber: 2, Text: "page two text"},
		},
	}
	pages, images := aggregate(res, 5000)
	require.Len(t, pages, 2)
	assert.Equal(t, "page one text", pages[0].Text)
	require.Len(t, images, 1)
	assert.Equal(t, 1, images[0].Page)
	assert.Equal(t, "ocr one", images[0].OCRText)
	assert.Equal(t, 2, images[0].OCRQualityMetrics.WordCount)
}

func TestAggregate_NoImagesReturnsEmptySlice(t *testing.T) {
	res := parser.Result{Pages: []parser.Page{{PageNumber: 1, Text: "just text"}}}
	_, images := aggregate(res, 5000)
	assert.Empty(t, images)
}

func TestFullText_ConcatenatesAllPages(t *testing.T) {
	pages := []pageText{{Number: 1, Text: "a"}, {Number: 2, Text: "b"}}
	assert.Equal(t, "ab", fullText(pages))
}

func TestToChunks_ContinuesChunkIndexAcrossPages(t *testing.T) {
	pieces := []chunker.Chunk{{Text: "first"}, {Text: "second"}}
	out := toChunks("doc1", "a.txt", 3, pieces, 5)
	require.Len(t, out, 2)
	assert.Equal(t, 5, out[0].ChunkIndex)
	assert.Equal(t, 6, out[1].ChunkIndex)
	assert.Equal(t, 3, out[0].Page)
	assert.Equal(t, "doc1", out[0].DocumentID)
}
