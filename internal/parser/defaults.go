package parser

import "context"

// PlainTextExtract is a real, self-contained ExtractFunc for plain-text
// sources — the one variant that needs no external library, since raw
// bytes already are the text.
func PlainTextExtract(ctx context.Context, sourceBytes []byte, sourceName string) (Result, error) {
	return Result{Pages: []Page{{PageNumber: 1, Text: string(sourceBytes)}}}, nil
}
