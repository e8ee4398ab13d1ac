package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_PDFSearchableTextPrefersFastExtract(t *testing.T) {
	available := map[Kind]Parser{
		KindFastExtract: NewFastExtract(okExtract),
		KindOCR:         NewOCR(okExtract),
		KindImageModel:  NewImageModel(okExtract),
	}
	chain := Chain("report.pdf", ClassSearchableText, "", available)
	require.Len(t, chain, 3)
	assert.Equal(t, KindFastExtract, chain[0].Kind())
	assert.Equal(t, KindOCR, chain[1].Kind())
	assert.Equal(t, KindImageModel, chain[2].Kind())
}

func TestChain_PDFScannedImagePrefersOCR(t *testing.T) {
	available := map[Kind]Parser{
		KindFastExtract: NewFastExtract(okExtract),
		KindOCR:         NewOCR(okExtract),
		KindImageModel:  NewImageModel(okExtract),
	}
	chain := Chain("scan.pdf", ClassScannedImage, "", available)
	require.Len(t, chain, 3)
	assert.Equal(t, KindOCR, chain[0].Kind())
}

func TestChain_OfficeDocumentUsesOfficeParserOnly(t *testing.T) {
	available := map[Kind]Parser{KindOffice: NewOffice(okExtract)}
	chain := Chain("report.docx", "", "", available)
	require.Len(t, chain, 1)
	assert.Equal(t, KindOffice, chain[0].Kind())
}

func TestChain_PlainTextSourceUsesPlainParser(t *testing.T) {
	available := map[Kind]Parser{KindPlain: NewPlain(PlainTextExtract)}
	chain := Chain("notes.txt", "", "", available)
	require.Len(t, chain, 1)
	assert.Equal(t, KindPlain, chain[0].Kind())
}

func TestChain_OverridePinsToSingleParser(t *testing.T) {
	available := map[Kind]Parser{
		KindFastExtract: NewFastExtract(okExtract),
		KindOCR:         NewOCR(okExtract),
	}
	chain := Chain("report.pdf", ClassSearchableText, KindOCR, available)
	require.Len(t, chain, 1)
	assert.Equal(t, KindOCR, chain[0].Kind())
}

func TestChain_OverrideToUnavailableParserReturnsNil(t *testing.T) {
	available := map[Kind]Parser{KindFastExtract: NewFastExtract(okExtract)}
	chain := Chain("report.pdf", ClassSearchableText, KindImageModel, available)
	assert.Nil(t, chain)
}

func TestChain_MissingVariantsAreSkippedNotNil(t *testing.T) {
	available := map[Kind]Parser{KindImageModel: NewImageModel(okExtract)}
	chain := Chain("report.pdf", ClassSearchableText, "", available)
	require.Len(t, chain, 1)
	assert.Equal(t, KindImageModel, chain[0].Kind())
}

func TestEstimateImageMarkers_FloorsAtOne(t *testing.T) {
	assert.Equal(t, 1, EstimateImageMarkers(0))
	assert.Equal(t, 1, EstimateImageMarkers(4999))
}

func TestEstimateImageMarkers_ScalesWithTextLength(t *testing.T) {
	assert.Equal(t, 2, EstimateImageMarkers(10000))
}

func TestPlainTextExtract_ReturnsSinglePageWithRawBytesAsText(t *testing.T) {
	res, err := PlainTextExtract(context.Background(), []byte("hello"), "notes.txt")
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "hello", res.Pages[0].Text)
}

func okExtract(ctx context.Context, sourceBytes []byte, sourceName string) (Result, error) {
	return Result{Pages: []Page{{PageNumber: 1, Text: string(sourceBytes)}}}, nil
}

func failExtract(ctx context.Context, sourceBytes []byte, sourceName string) (Result, error) {
	return Result{}, errors.New("boom")
}

func slowExtract(ctx context.Context, sourceBytes []byte, sourceName string) (Result, error) {
	select {
	case <-time.After(500 * time.Millisecond):
		return Result{}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func TestRunChain_FirstSuccessfulParserWins(t *testing.T) {
	chain := []Parser{NewFastExtract(failExtract), NewOCR(okExtract)}
	res, used, err := RunChain(context.Background(), chain, []byte("x"), "a.pdf", time.Second)
	require.NoError(t, err)
	assert.Equal(t, KindOCR, used)
	assert.Equal(t, "x", res.Pages[0].Text)
}

func TestRunChain_AllParsersFailReturnsWrappedError(t *testing.T) {
	chain := []Parser{NewFastExtract(failExtract), NewOCR(failExtract)}
	_, _, err := RunChain(context.Background(), chain, []byte("x"), "a.pdf", time.Second)
	require.Error(t, err)
}

func TestRunChain_TimeoutTreatedAsFailureFallsThroughChain(t *testing.T) {
	chain := []Parser{NewFastExtract(slowExtract), NewOCR(okExtract)}
	res, used, err := RunChain(context.Background(), chain, []byte("x"), "a.pdf", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, KindOCR, used)
	assert.Equal(t, "x", res.Pages[0].Text)
}
