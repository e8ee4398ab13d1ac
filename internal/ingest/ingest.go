// Package ingest implements the Ingestion Worker (spec §4.2): the
// intake -> parse -> chunk -> embed -> dual-index-write -> registry-
// commit pipeline that turns one source document into durable Chunks
// and ImageRecords. Grounded on the staged, metrics-instrumented
// Service.Ingest method in the sibling rag/service package, rebuilt
// around the platform's own Document/Chunk/ImageRecord model instead of
// the generic ingest.IngestRequest shape.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ragcorpus/internal/apperr"
	"ragcorpus/internal/blobstore"
	"ragcorpus/internal/chunker"
	"ragcorpus/internal/config"
	"ragcorpus/internal/docstore"
	"ragcorpus/internal/embedclient"
	"ragcorpus/internal/metrics"
	"ragcorpus/internal/model"
	"ragcorpus/internal/parser"
	"ragcorpus/internal/registry"
	"ragcorpus/internal/tokencount"
)

// Options mirrors the optional per-request overrides spec §6's
// POST /documents form fields expose.
type Options struct {
	ParserPreference parser.Kind // empty = auto, else pins and disables fallback
	ChunkingStrategy  config.ChunkPreset
}

// Worker runs the ingestion pipeline.
type Worker struct {
	reg        *registry.Registry
	store      *docstore.Store
	blobs      *blobstore.Store
	embed      *embedclient.Client
	parsers    map[parser.Kind]parser.Parser
	detector   parser.Detector
	cfg        config.IngestionConfig
	log        zerolog.Logger
	metrics    metrics.Recorder
}

func NewWorker(reg *registry.Registry, store *docstore.Store, blobs *blobstore.Store, embed *embedclient.Client, parsers map[parser.Kind]parser.Parser, detector parser.Detector, cfg config.IngestionConfig, log zerolog.Logger) *Worker {
	return &Worker{reg: reg, store: store, blobs: blobs, embed: embed, parsers: parsers, detector: detector, cfg: cfg, log: log}
}

// SetMetrics wires a metrics sink; until called, the worker records
// nothing rather than requiring every caller to supply one.
func (w *Worker) SetMetrics(m metrics.Recorder) { w.metrics = m }

// Ingest runs the full pipeline (spec §4.2 steps 1-8).
func (w *Worker) Ingest(ctx context.Context, sourceBytes []byte, sourceName string, opts Options) (*model.Document, error) {
	ctx, span := otel.Tracer("ragcorpus/ingest").Start(ctx, "Ingest",
		trace.WithAttributes(attribute.String("source_name", sourceName), attribute.Int("source_bytes", len(sourceBytes))))
	defer span.End()

	start := time.Now()

	// Step 1: intake.
	hash := hashOf(sourceBytes)
	docID := uuid.New().String()

	if _, err := w.blobs.PutSource(ctx, docID, sourceName, bytesReader(sourceBytes), ""); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientInfra, "persist source blob", err)
	}

	doc := &model.Document{
		DocumentID: docID,
		Name:       sourceName,
		FileHash:   hash,
		Upload: model.UploadMetadata{
			Source: "upload",
			At:     start,
			SizeB:  int64(len(sourceBytes)),
		},
		Status:      model.StatusProcessing,
		TextIndex:   "docs__text",
		ImagesIndex: "docs__images",
		Version:     model.VersionInfo{Version: 1},
	}
	if err := w.reg.Add(doc); err != nil {
		return nil, err
	}

	return w.runPipeline(ctx, doc, sourceBytes, opts, start, false)
}

// ReIngest re-runs steps 2-7 of the pipeline for an already-registered
// document, fetching the source bytes it stored at upload time, deleting
// every record it previously wrote to the text and images streams, and
// then inserting the fresh ones. The delete and the insert are separate
// steps, not one atomic replacement: if the pipeline fails after the
// delete, the document is left without records in those streams and
// with status=failed. This is the upgrade
// path spec §8 names for a document stuck at status=partial — most
// commonly one whose parser detected images it could not extract
// (model.ImageRecord.Placeholder) — retrying with a different parser
// preference can turn those placeholders into real OCR text and the
// document's status from partial to success.
func (w *Worker) ReIngest(ctx context.Context, docID string, opts Options) (*model.Document, error) {
	ctx, span := otel.Tracer("ragcorpus/ingest").Start(ctx, "ReIngest", trace.WithAttributes(attribute.String("document_id", docID)))
	defer span.End()

	start := time.Now()
	doc, err := w.reg.Get(docID)
	if err != nil {
		return nil, err
	}

	filename := doc.OriginalName
	if filename == "" {
		filename = doc.Name
	}
	_, sourceBytes, err := w.blobs.GetSource(ctx, docID, filename)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientInfra, "fetch stored source for re-ingest", err)
	}

	if _, err := w.reg.Update(docID, -1, func(d *model.Document) { d.Status = model.StatusProcessing }); err != nil {
		return nil, err
	}

	if err := w.replaceDocumentRecords(ctx, doc.TextIndex, docID); err != nil {
		return w.fail(doc, "replace_text", err)
	}
	if err := w.replaceDocumentRecords(ctx, doc.ImagesIndex, docID); err != nil {
		return w.fail(doc, "replace_images", err)
	}

	return w.runPipeline(ctx, doc, sourceBytes, opts, start, true)
}

// replaceDocumentRecords deletes every record already stored for docID
// in indexName, so a re-ingest never leaves a stale generation of
// chunks or images alongside a fresh one. The delete is not atomic with
// the insert that follows it in runPipeline.
func (w *Worker) replaceDocumentRecords(ctx context.Context, indexName, docID string) error {
	existing, err := w.store.ListByFilter(ctx, indexName, map[string]string{"document_id": docID})
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	ids := make([]string, len(existing))
	for i, r := range existing {
		ids[i] = r.ID
	}
	return w.store.DeleteByDocument(ctx, indexName, docID, ids)
}

// runPipeline performs parser selection through registry commit (spec
// §4.2 steps 2-8), shared by Ingest (fresh document) and ReIngest
// (existing document, already-cleared streams).
func (w *Worker) runPipeline(ctx context.Context, doc *model.Document, sourceBytes []byte, opts Options, start time.Time, isReIngest bool) (*model.Document, error) {
	docID := doc.DocumentID
	sourceName := doc.Name
	textIndex := doc.TextIndex
	imagesIndex := doc.ImagesIndex

	stageDurations := map[string]int64{}
	t0 := time.Now()

	// Step 2: parser selection.
	class := parser.ClassSearchableText
	if w.detector != nil && isPDFName(sourceName) {
		if c, err := w.detector.Classify(ctx, sourceBytes); err == nil {
			class = c
		}
	}
	chain := parser.Chain(sourceName, class, opts.ParserPreference, w.parsers)
	res, parserUsed, err := parser.RunChain(ctx, chain, sourceBytes, sourceName, w.cfg.ParserTimeout)
	stageDurations["parse"] = msSince(t0)
	if err != nil {
		return w.fail(doc, "parse", err)
	}

	// Step 3: aggregate the parser's pages and image records. No
	// image-marker heuristic is applied: images come only from the
	// records the parser variant returned.
	t0 = time.Now()
	pages, images := aggregate(res, w.cfg.ImageMarkerDivisor)
	if strings.TrimSpace(fullText(pages)) == "" && len(images) == 0 {
		return w.fail(doc, "extract", apperr.ErrNoText)
	}
	stageDurations["extract"] = msSince(t0)

	// Step 4: chunking, page by page so chunk.page stays exact.
	t0 = time.Now()
	preset := opts.ChunkingStrategy
	cfg := w.cfg
	if preset != "" {
		cfg.ChunkPreset = preset
	}
	counter := tokencount.ForModel("cl100k_base")
	var chunks []model.Chunk
	for _, page := range pages {
		pieces := chunker.Split(page.Text, cfg, counter)
		chunks = append(chunks, toChunks(docID, sourceName, page.Number, pieces, len(chunks))...)
	}
	stageDurations["chunk"] = msSince(t0)
	if len(chunks) == 0 && strings.TrimSpace(fullText(pages)) != "" {
		return w.fail(doc, "chunk", fmt.Errorf("chunking produced zero chunks"))
	}

	// Step 5: embedding (chunks), tolerating a persistent failure on part
	// of the batch rather than discarding every chunk over one bad batch.
	t0 = time.Now()
	chunkTexts := make([]string, len(chunks))
	for i, c := range chunks {
		chunkTexts[i] = c.Text
	}
	chunkVectors, chunkFailedIdx, _ := w.embed.EmbedBatchTolerant(ctx, chunkTexts)
	stageDurations["embed_chunks"] = msSince(t0)

	// Step 6: image OCR embedding, same tolerance.
	t0 = time.Now()
	imageTexts := make([]string, len(images))
	for i, im := range images {
		imageTexts[i] = im.OCRText
	}
	imageVectors, imageFailedIdx, _ := w.embed.EmbedBatchTolerant(ctx, imageTexts)
	stageDurations["embed_images"] = msSince(t0)

	failedChunkIDs := idsAt(chunkIDs(chunks), chunkFailedIdx)
	failedImageIDs := idsAt(imageIDs(images), imageFailedIdx)

	// Step 7: dual-index write, the text stream first and then the
	// images stream, one after the other.
	t0 = time.Now()
	var textVecOK, textLexOK bool = true, true
	if len(chunks) > 0 {
		records := make([]docstore.Record, len(chunks))
		for i, c := range chunks {
			var vec []float32
			if i < len(chunkVectors) {
				vec = chunkVectors[i]
			}
			records[i] = docstore.Record{
				ID:        c.ChunkID,
				Text:      c.Text,
				Embedding: vec,
				Metadata: map[string]string{
					"document_id": docID,
					"source_name": sourceName,
					"page":        itoa(c.Page),
					"chunk_index": itoa(c.ChunkIndex),
				},
			}
		}
		textVecOK, textLexOK, err = w.store.InsertBatch(ctx, textIndex, records)
		if err != nil {
			textVecOK, textLexOK = false, false
		}
	}

	var imgVecOK, imgLexOK bool = true, true
	if len(images) > 0 {
		records := make([]docstore.Record, len(images))
		for i, im := range images {
			var vec []float32
			if i < len(imageVectors) {
				vec = imageVectors[i]
			}
			records[i] = docstore.Record{
				ID:        im.ImageID,
				Text:      im.OCRText,
				Embedding: vec,
				Metadata: map[string]string{
					"document_id":  docID,
					"source_name":  sourceName,
					"page":         itoa(im.Page),
					"image_number": itoa(im.ImageNumber),
				},
			}
		}
		imgVecOK, imgLexOK, err = w.store.InsertBatch(ctx, imagesIndex, records)
		if err != nil {
			imgVecOK, imgLexOK = false, false
		}
	}
	stageDurations["index_write"] = msSince(t0)

	// Status per spec §4.2 step 7 / §8: failed when no backend of any
	// non-empty stream holds the data; success only when every stream
	// fully wrote, every chunk/image embedded, and no image stayed a
	// placeholder; partial otherwise. An empty stream counts as fully
	// written but not as persisted.
	chunksPersisted := len(chunks) > 0 && (textVecOK || textLexOK)
	imagesPersisted := len(images) > 0 && (imgVecOK || imgLexOK)
	chunksFullyWrote := len(chunks) == 0 || (textVecOK && textLexOK)
	imagesFullyWrote := len(images) == 0 || (imgVecOK && imgLexOK)
	allWrote := chunksFullyWrote && imagesFullyWrote
	nothingPersisted := (len(chunks) > 0 || len(images) > 0) && !chunksPersisted && !imagesPersisted
	hasEmbeddingFailures := len(failedChunkIDs) > 0 || len(failedImageIDs) > 0
	hasPlaceholderImages := anyPlaceholder(images)

	status := model.StatusSuccess
	switch {
	case nothingPersisted:
		status = model.StatusFailed
	case allWrote && !hasEmbeddingFailures && !hasPlaceholderImages:
		status = model.StatusSuccess
	default:
		status = model.StatusPartial
	}

	chunksCreated := len(chunks) - len(failedChunkIDs)
	imagesStored := len(images) - len(failedImageIDs)

	// Step 8: registry commit.
	updated, err := w.reg.Update(docID, -1, func(d *model.Document) {
		d.ParserUsed = string(parserUsed)
		d.Processing = model.ProcessingMetadata{
			ParserFallbackChain: chainNames(chain),
			StageDurationsMS:    stageDurations,
			FailedChunkIDs:      failedChunkIDs,
			FailedImageIDs:      failedImageIDs,
		}
		d.ChunksCreated = chunksCreated
		d.ImagesStored = imagesStored
		d.Status = status
	})
	if err != nil {
		return nil, err
	}
	op := "ingest"
	if isReIngest {
		op = "re-ingest"
	}
	w.log.Info().Str("document_id", docID).Str("status", string(status)).Int("chunks", chunksCreated).Int("images", imagesStored).Msg(op + " complete")
	w.record("ingest_documents_total", map[string]string{"status": string(status)})
	w.observe("ingest_duration_ms", float64(msSince(start)), map[string]string{"status": string(status)})
	return updated, nil
}

func (w *Worker) fail(doc *model.Document, step string, cause error) (*model.Document, error) {
	updated, err := w.reg.Update(doc.DocumentID, -1, func(d *model.Document) {
		d.Status = model.StatusFailed
		d.Error = cause.Error()
	})
	if err != nil {
		return nil, err
	}
	w.log.Error().Str("document_id", doc.DocumentID).Str("step", step).Err(cause).Msg("ingest failed")
	w.record("ingest_documents_total", map[string]string{"status": string(model.StatusFailed)})
	w.record("ingest_failures_total", map[string]string{"step": step})
	return updated, apperr.Wrap(apperr.KindIngestProcessing, "ingest failed at "+step, cause)
}

func (w *Worker) record(name string, labels map[string]string) {
	if w.metrics != nil {
		w.metrics.IncCounter(name, labels)
	}
}

func (w *Worker) observe(name string, value float64, labels map[string]string) {
	if w.metrics != nil {
		w.metrics.ObserveHistogram(name, value, labels)
	}
}

func chunkIDs(chunks []model.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ChunkID
	}
	return out
}

func imageIDs(images []model.ImageRecord) []string {
	out := make([]string, len(images))
	for i, im := range images {
		out[i] = im.ImageID
	}
	return out
}

// idsAt resolves a set of failed input indices (from
// embedclient.EmbedBatchTolerant) back to the record ids at those
// positions, for recording in ProcessingMetadata.
func idsAt(ids []string, indices []int) []string {
	if len(indices) == 0 {
		return nil
	}
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(ids) {
			out = append(out, ids[i])
		}
	}
	return out
}

func anyPlaceholder(images []model.ImageRecord) bool {
	for _, im := range images {
		if im.Placeholder {
			return true
		}
	}
	return false
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func msSince(t0 time.Time) int64 { return time.Since(t0).Milliseconds() }

func itoa(n int) string { return fmt.Sprintf("%d", n) }

func isPDFName(name string) bool {
	return len(name) >= 4 && name[len(name)-4:] == ".pdf"
}

func chainNames(chain []parser.Parser) []string {
	out := make([]string, len(chain))
	for i, p := range chain {
		out[i] = string(p.Kind())
	}
	return out
}
