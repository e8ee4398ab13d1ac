package ingest

import (
	"bytes"
	"io"
	"strings"

	"github.com/google/uuid"

	"ragcorpus/internal/chunker"
	"ragcorpus/internal/model"
	"ragcorpus/internal/parser"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// pageText pairs one page's text with its number, carried through from
// aggregate to the chunker stage
// so chunk.page stays exact (the chunker is run once per page rather
// than over one flattened document, so a chunk never needs to guess
// which page it came from).
type pageText struct {
	Number int
	Text   string
}

// aggregate extracts per-page text (for page-accurate chunking) and a
// flat list of ImageRecord-shaped entries, one per image record the
// parser returned (spec §4.2 step 3). It inserts no placeholder markers
// of its own and does not read markerDivisor.
func aggregate(res parser.Result, markerDivisor int) ([]pageText, []model.ImageRecord) {
	pages := make([]pageText, 0, len(res.Pages))
	var images []model.ImageRecord

	for _, page := range res.Pages {
		pages = append(pages, pageText{Number: page.PageNumber, Text: page.Text})

		for _, img := range page.ExtractedImages {
			images = append(images, model.ImageRecord{
				ImageID:          uuid.New().String(),
				Page:             page.PageNumber,
				ImageNumber:      img.ImageNumber,
				OCRText:          img.OCRText,
				ContentType:      model.ContentTypeImageOCR,
				ExtractionMethod: img.ExtractionMethod,
				Placeholder:      img.Placeholder,
				OCRQualityMetrics: model.OCRQualityMetrics{
					CharCount: len(img.OCRText),
					WordCount: len(strings.Fields(img.OCRText)),
				},
			})
		}
	}
	return pages, images
}

// fullText concatenates page texts, used only for the empty-document
// check (spec §8's "zero extractable text" boundary behaviour).
func fullText(pages []pageText) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// toChunks converts one page's chunker output into positioned
// model.Chunk values, with chunkIndex continuing the running counter
// across pages.
func toChunks(documentID, sourceName string, pageNumber int, pieces []chunker.Chunk, startIndex int) []model.Chunk {
	out := make([]model.Chunk, len(pieces))
	for i, p := range pieces {
		out[i] = model.Chunk{
			ChunkID:     uuid.New().String(),
			DocumentID:  documentID,
			SourceName:  sourceName,
			Page:        pageNumber,
			ChunkIndex:  startIndex + i,
			TokenCount:  p.TokenCount,
			Text:        p.Text,
			ContentType: model.ContentTypeText,
		}
	}
	return out
}
