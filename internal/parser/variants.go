package parser

import "context"

// ExtractFunc is the injected capability a concrete parser variant
// wraps — the actual PDF/OCR/office-document library call, out of
// scope per spec §1. Each named variant below is just this function
// plus a Kind tag, so callers can swap in real libraries without this
// package depending on any of them.
type ExtractFunc func(ctx context.Context, sourceBytes []byte, sourceName string) (Result, error)

type variant struct {
	kind Kind
	fn   ExtractFunc
}

func (v variant) Kind() Kind { return v.kind }

func (v variant) Parse(ctx context.Context, sourceBytes []byte, sourceName string) (Result, error) {
	res, err := v.fn(ctx, sourceBytes, sourceName)
	if err != nil {
		return Result{}, err
	}
	res.ParserUsed = v.kind
	return res, nil
}

// NewFastExtract wraps a searchable-text-layer extraction capability.
func NewFastExtract(fn ExtractFunc) Parser { return variant{kind: KindFastExtract, fn: fn} }

// NewOCR wraps an OCR-capable extraction capability (scanned pages).
func NewOCR(fn ExtractFunc) Parser { return variant{kind: KindOCR, fn: fn} }

// NewImageModel wraps a vision-model-based extraction capability, tried
// after OCR in both PDF preference orders (see Chain).
func NewImageModel(fn ExtractFunc) Parser { return variant{kind: KindImageModel, fn: fn} }

// NewOffice wraps an office-document (docx/pptx/xlsx) extraction
// capability.
func NewOffice(fn ExtractFunc) Parser { return variant{kind: KindOffice, fn: fn} }

// NewPlain wraps plain-text passthrough extraction.
func NewPlain(fn ExtractFunc) Parser { return variant{kind: KindPlain, fn: fn} }
