// Package parser implements the ordered parser-fallback chain from
// spec §4.2 step 2: an explicit, value-returning (never exception-
// driven) adapter interface with named variants, dispatched by document
// kind and detector classification. The PDF/OCR extraction libraries
// themselves are out of scope (spec §1's explicit exclusion) — only the
// adapter contract and the fallback/selection logic live here.
package parser

import (
	"context"
	"time"
)

// Kind names a parser variant; code paths dispatch on this value rather
// than on a type hierarchy (spec §9's re-architecture note).
type Kind string

const (
	KindFastExtract Kind = "fast"
	KindOCR         Kind = "ocr"
	KindImageModel  Kind = "image_model"
	KindOffice      Kind = "office"
	KindPlain       Kind = "plain"
)

// Classification is the detector's verdict on a PDF's text layer.
type Classification string

const (
	ClassSearchableText Classification = "searchable_text"
	ClassScannedImage   Classification = "scanned_image"
	ClassMixed          Classification = "mixed"
)

// ExtractedImage is one image found on a page, either parser-reported
// with real OCR, or a heuristic placeholder (spec §4.2 step 3).
type ExtractedImage struct {
	ImageNumber      int
	OCRText          string
	Placeholder      bool
	ExtractionMethod string
}

// Page is one unit of structured text extraction output.
type Page struct {
	PageNumber      int
	Text            string
	ExtractedImages []ExtractedImage
}

// Result is a parser's output: a value, never a panic/exception — the
// ok/err variant spec §9 asks for.
type Result struct {
	Pages      []Page
	ParserUsed Kind
}

// Parser is the common adapter contract every named variant implements.
type Parser interface {
	Kind() Kind
	Parse(ctx context.Context, sourceBytes []byte, sourceName string) (Result, error)
}

// DefaultTimeout is the per-parser-invocation hard timeout (spec §5).
const DefaultTimeout = 20 * time.Minute

// Detector inspects a PDF's byte stream and returns its text-layer
// classification through Classify. This package ships no
// implementation: the PDF introspection (how much of each page is a
// text layer vs. raster image) is supplied by the caller, since the
// native PDF library is out of scope here.
type Detector interface {
	Classify(ctx context.Context, sourceBytes []byte) (Classification, error)
}

// Chain returns the ordered parser preference list for sourceName and,
// for PDFs, classification — spec §4.2 step 2's exact preference table.
// override, when non-empty, disables fallback and pins the chain to
// that single Kind.
func Chain(sourceName string, class Classification, override Kind, available map[Kind]Parser) []Parser {
	if override != "" {
		if p, ok := available[override]; ok {
			return []Parser{p}
		}
		return nil
	}

	var order []Kind
	switch {
	case isPDF(sourceName):
		switch class {
		case ClassScannedImage:
			order = []Kind{KindOCR, KindImageModel, KindFastExtract}
		default: // searchable_text or mixed
			order = []Kind{KindFastExtract, KindOCR, KindImageModel}
		}
	case isOffice(sourceName):
		order = []Kind{KindOffice}
	default:
		order = []Kind{KindPlain}
	}

	chain := make([]Parser, 0, len(order))
	for _, k := range order {
		if p, ok := available[k]; ok {
			chain = append(chain, p)
		}
	}
	return chain
}

func isPDF(name string) bool {
	return hasSuffixFold(name, ".pdf")
}

func isOffice(name string) bool {
	for _, ext := range []string{".docx", ".doc", ".pptx", ".xlsx"} {
		if hasSuffixFold(name, ext) {
			return true
		}
	}
	return false
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := range tail {
		a, b := tail[i], suffix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// ImageMarkerDivisor is the heuristic constant from spec §4.2 step 3 and
// §9's Open Question: max(1, total_text_length // divisor) placeholder
// images for a parser that reports images present but returns zero
// structured image records.
const ImageMarkerDivisor = 5000

// EstimateImageMarkers applies the heuristic. The ingestion pipeline
// does not call it, so no placeholder images are inserted from it.
func EstimateImageMarkers(totalTextLength int) int {
	n := totalTextLength / ImageMarkerDivisor
	if n < 1 {
		n = 1
	}
	return n
}
