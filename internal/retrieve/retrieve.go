// Package retrieve implements the Retrieval Worker (spec §4.3): hybrid
// search, MMR diversification, cross-encoder rerank, parallel image
// retrieval, context assembly and cited answer generation. Grounded on
// the staged Service.Retrieve method in the sibling rag/service
// package (query-plan -> parallel-candidates -> fusion -> rerank ->
// packaging), rebuilt around the platform's weighted-sum fusion and
// citation-tagged answer synthesis instead of RRF + graph augmentation.
package retrieve

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ragcorpus/internal/config"
	"ragcorpus/internal/docstore"
	"ragcorpus/internal/embedclient"
	"ragcorpus/internal/generator"
	"ragcorpus/internal/metrics"
	"ragcorpus/internal/reranker"
)

// SearchMode gates which scoring streams contribute (spec §4.3 options).
type SearchMode = config.SearchMode

// Options enumerates every recognized query option (spec §4.3).
type Options struct {
	K              int
	SearchMode     SearchMode
	UseMMR         bool
	SemanticWeight float64
	MMRLambda      float64
	UseAgenticRAG  bool
	Temperature    float64
	MaxTokens      int
	DocumentID     string
	ActiveSources  []string
	WantImages     bool
}

// Citation is one grounded reference attached to the generated answer.
type Citation struct {
	N              int
	ID             string
	SourceName     string
	Page           int
	Snippet        string
	FullText       string
	SimilarityScore float64
	ContentType    string
	ImageRef       string
}

// Answer is the Retrieval Worker's public result (spec §4.3's `query`
// operation return value).
type Answer struct {
	AnswerText        string
	Citations         []Citation
	NumChunksUsed     int
	ResponseTime      time.Duration
	ContextTokens     int
	ResponseTokens    int
	TotalTokens       int
	Warnings          []string
	GenerationFailed  bool
}

// Worker answers queries over one text/images index pair.
type Worker struct {
	store    *docstore.Store
	embed    *embedclient.Client
	gen      generator.Generator
	rerank   reranker.Reranker
	cfg      config.RetrievalConfig
	metrics  metrics.Recorder
}

func NewWorker(store *docstore.Store, embed *embedclient.Client, gen generator.Generator, rerank reranker.Reranker, cfg config.RetrievalConfig) *Worker {
	return &Worker{store: store, embed: embed, gen: gen, rerank: rerank, cfg: cfg}
}

// SetMetrics wires a metrics sink; until called, the worker records
// nothing rather than requiring every caller to supply one.
func (w *Worker) SetMetrics(m metrics.Recorder) { w.metrics = m }

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

func resolveOptions(o Options, cfg config.RetrievalConfig) Options {
	if o.K <= 0 {
		o.K = cfg.DefaultK
	}
	if o.SearchMode == "" {
		o.SearchMode = cfg.DefaultSearchMode
	}
	if o.SemanticWeight == 0 {
		o.SemanticWeight = cfg.DefaultSemanticWeight
	}
	if o.MMRLambda == 0 {
		o.MMRLambda = cfg.MMRLambda
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 1024
	}
	return o
}

// Query answers question against textIndex (and imagesIndex, when
// requested), implementing spec §4.3 steps 1-8.
func (w *Worker) Query(ctx context.Context, question, textIndex, imagesIndex string, opt Options) (Answer, error) {
	ctx, span := otel.Tracer("ragcorpus/retrieve").Start(ctx, "Query",
		trace.WithAttributes(attribute.String("text_index", textIndex), attribute.Bool("use_agentic_rag", opt.UseAgenticRAG)))
	defer span.End()

	start := time.Now()
	opt = resolveOptions(opt, w.cfg)
	var warnings []string

	questions := []string{question}
	if opt.UseAgenticRAG {
		subs, err := w.decompose(ctx, question)
		if err != nil {
			warnings = append(warnings, "agentic decomposition unavailable, falling back to direct query")
		} else if len(subs) > 0 {
			questions = subs
		}
	}

	filter := map[string]string{}
	if opt.DocumentID != "" {
		filter["document_id"] = opt.DocumentID
	}
	if len(opt.ActiveSources) > 0 {
		// active_sources is a list, but Document Store filters are
		// exact-match maps; the pooled candidates are restricted by
		// source_name below (filterBySources) instead of pushing an OR
		// predicate into the backend.
	}

	kPool := poolSize(opt.K)
	var fused []docstore.ScoredRecord
	for _, q := range questions {
		cands, err := w.candidatesForQuestion(ctx, q, textIndex, kPool, opt, filter)
		if err != nil {
			return Answer{}, err
		}
		fused = append(fused, cands...)
	}
	fused = dedupeByID(fused)

	if len(opt.ActiveSources) > 0 {
		restricted := filterBySources(fused, opt.ActiveSources)
		if len(restricted) == 0 {
			warnings = append(warnings, "no requested active_sources are known; falling back to unrestricted search")
		} else {
			fused = restricted
		}
	}

	// Step 3: MMR diversification.
	kRerank := 3 * opt.K
	selected := fused
	if opt.UseMMR {
		selected = MMR(fused, opt.MMRLambda, kRerank)
	} else if len(selected) > kRerank {
		sort.SliceStable(selected, func(i, j int) bool { return selected[i].Score > selected[j].Score })
		selected = selected[:kRerank]
	}

	// Step 4: cross-encoder rerank.
	reranked, err := w.rerank.Rerank(ctx, question, selected)
	if err != nil {
		warnings = append(warnings, "reranker unavailable, using fused order")
		reranked = selected
	}
	reranked = stableSort(reranked)
	if len(reranked) > opt.K {
		reranked = reranked[:opt.K]
	}

	// Step 5: image retrieval (parallel), independent ranked list.
	var imageCitations []Citation
	if opt.WantImages && imagesIndex != "" {
		imgs, ierr := w.candidatesForQuestion(ctx, question, imagesIndex, kPool, opt, filter)
		if ierr != nil {
			warnings = append(warnings, "image retrieval unavailable")
		} else {
			imgReranked, rerr := w.rerank.Rerank(ctx, question, imgs)
			if rerr != nil {
				imgReranked = imgs
			}
			if len(imgReranked) > opt.K {
				imgReranked = imgReranked[:opt.K]
			}
			for _, im := range imgReranked {
				imageCitations = append(imageCitations, Citation{
					ID: im.ID, SourceName: im.Metadata["source_name"],
					Page: atoi(im.Metadata["page"]), Snippet: firstN(im.Snippet, 200),
					FullText: im.Snippet, SimilarityScore: im.Score,
					ContentType: "image_ocr", ImageRef: im.ID,
				})
			}
		}
	}

	if len(reranked) == 0 && len(imageCitations) == 0 {
		w.record("retrieve_queries_total", map[string]string{"result": "insufficient_context"})
		return Answer{
			AnswerText:    "insufficient context",
			Citations:     nil,
			NumChunksUsed: 0,
			ResponseTime:  time.Since(start),
			Warnings:      warnings,
		}, nil
	}

	// Step 6: context assembly.
	context, citations := assembleContext(reranked, w.cfg.MaxContextTokens)

	// Image citations are numbered to continue where the text citations
	// left off, so the merged list below never carries two sources under
	// the same [n] tag.
	for i := range imageCitations {
		imageCitations[i].N = len(citations) + i + 1
	}

	// Step 7: answer generation, retried with bounded exponential backoff
	// (generateWithRetry) before falling back to the extractive answer
	// (spec §4.3 failure semantics / §5).
	systemPrompt := "Answer using only the provided context. Cite every claim with a [n] tag referring to the numbered sources. If the context is insufficient, say so."
	userPrompt := question + "\n\n" + context
	answerText, usage, genErr := w.generateWithRetry(ctx, systemPrompt, userPrompt, opt.Temperature, opt.MaxTokens)
	generationFailed := false
	if genErr != nil || answerText == "" {
		generationFailed = true
		warnings = append(warnings, "generator unavailable after retries; returning extractive fallback")
		answerText = extractiveFallback(citations)
	}

	allCitations := append(citations, imageCitations...)

	result := "generated"
	if generationFailed {
		result = "extractive_fallback"
	}
	w.record("retrieve_queries_total", map[string]string{"result": result})
	w.observe("retrieve_duration_ms", float64(time.Since(start).Milliseconds()), map[string]string{"result": result})

	return Answer{
		AnswerText:       answerText,
		Citations:        allCitations,
		NumChunksUsed:    len(citations),
		ResponseTime:     time.Since(start),
		ContextTokens:    estimateTokens(context),
		ResponseTokens:   usage.CompletionTokens,
		TotalTokens:      usage.PromptTokens + usage.CompletionTokens,
		Warnings:         warnings,
		GenerationFailed: generationFailed,
	}, nil
}

// QueryImages answers the image-only retrieval endpoint (spec §6's
// POST /query/images): no generation, no text stream, just ranked image
// citations from imagesIndex.
func (w *Worker) QueryImages(ctx context.Context, question, imagesIndex string, k int, source string) ([]Citation, error) {
	if k <= 0 {
		k = w.cfg.DefaultK
	}
	filter := map[string]string{}
	if source != "" {
		filter["source_name"] = source
	}
	opt := Options{SearchMode: w.cfg.DefaultSearchMode, SemanticWeight: w.cfg.DefaultSemanticWeight}
	cands, err := w.candidatesForQuestion(ctx, question, imagesIndex, poolSize(k), opt, filter)
	if err != nil {
		return nil, err
	}
	reranked, rerr := w.rerank.Rerank(ctx, question, cands)
	if rerr != nil {
		reranked = cands
	}
	reranked = stableSort(reranked)
	if len(reranked) > k {
		reranked = reranked[:k]
	}
	out := make([]Citation, len(reranked))
	for i, im := range reranked {
		out[i] = Citation{
			N: i + 1, ID: im.ID, SourceName: im.Metadata["source_name"],
			Page: atoi(im.Metadata["page"]), Snippet: firstN(im.Snippet, 200),
			FullText: im.Snippet, SimilarityScore: im.Score,
			ContentType: "image_ocr", ImageRef: im.ID,
		}
	}
	return out, nil
}

func poolSize(k int) int {
	if v := 5 * k; v > 50 {
		return v
	}
	return 50
}

func (w *Worker) candidatesForQuestion(ctx context.Context, question, indexName string, kPool int, opt Options, filter map[string]string) ([]docstore.ScoredRecord, error) {
	// An index nothing has been written to yet has no candidates.
	if !w.store.IndexExists(indexName) {
		return nil, nil
	}
	var vec []float32
	if opt.SearchMode != config.SearchModeKeyword {
		vecs, err := w.embed.EmbedBatch(ctx, []string{question})
		if err == nil && len(vecs) > 0 {
			vec = vecs[0]
		}
	}

	var recs []docstore.ScoredRecord
	var err error
	switch opt.SearchMode {
	case config.SearchModeSemantic:
		recs, err = w.store.SemanticSearch(ctx, indexName, vec, kPool, filter)
	case config.SearchModeKeyword:
		recs, err = w.store.LexicalSearch(ctx, indexName, question, kPool, filter)
	default:
		recs, err = w.store.HybridSearch(ctx, indexName, question, vec, kPool, opt.SemanticWeight, filter)
	}
	if err != nil {
		return nil, err
	}
	w.backfillSnippets(ctx, indexName, recs)
	return recs, nil
}

// backfillSnippets fills in Snippet for any candidate a vector-only
// lookup returned with no stored text. semantic_search draws exclusively
// from the vector backend, which carries embeddings and metadata but no
// raw text, so under search_mode=semantic every candidate would
// otherwise reach context assembly and citation-building with an empty
// snippet/full_text. The lexical backend's GetByID is the system of
// record for raw text (docstore.Store.GetByID's contract) regardless of
// which stream produced the candidate.
func (w *Worker) backfillSnippets(ctx context.Context, indexName string, recs []docstore.ScoredRecord) {
	for i := range recs {
		if recs[i].Snippet != "" {
			continue
		}
		if text, _, ok, err := w.store.GetByID(ctx, indexName, recs[i].ID); err == nil && ok {
			recs[i].Snippet = text
		}
	}
}

// generateResult bundles Generate's two return values so backoff.Retry,
// which is generic over a single value type, can carry both through.
type generateResult struct {
	text  string
	usage generator.Usage
}

// generateWithRetry wraps the generator call in bounded exponential
// backoff, the same kind docstore.withRetry applies to backend calls
// (spec §5), so one flaky LLM call doesn't fall straight through to the
// extractive fallback when a retry would have succeeded. The embedding
// and rerank calls in this package are made once, without retry.
func (w *Worker) generateWithRetry(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, generator.Usage, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.GenerateBackoffBase
	if b.InitialInterval == 0 {
		b.InitialInterval = 500 * time.Millisecond
	}
	b.Multiplier = w.cfg.GenerateBackoffFactor
	if b.Multiplier == 0 {
		b.Multiplier = 2
	}
	maxTries := uint(w.cfg.GenerateBackoffMaxTries)
	if maxTries == 0 {
		maxTries = 3
	}
	res, err := backoff.Retry(ctx, func() (generateResult, error) {
		text, usage, gerr := w.gen.Generate(ctx, systemPrompt, userPrompt, temperature, maxTokens)
		if gerr != nil {
			return generateResult{}, gerr
		}
		return generateResult{text: text, usage: usage}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	if err != nil {
		return "", generator.Usage{}, err
	}
	return res.text, res.usage, nil
}

func (w *Worker) decompose(ctx context.Context, question string) ([]string, error) {
	sys := "Decompose the user's question into 1 to 5 standalone sub-questions, one per line, no numbering."
	text, _, err := w.gen.Generate(ctx, sys, question, 0.2, 256)
	if err != nil {
		return nil, err
	}
	var subs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			subs = append(subs, line)
		}
		if len(subs) >= 5 {
			break
		}
	}
	return subs, nil
}

func dedupeByID(recs []docstore.ScoredRecord) []docstore.ScoredRecord {
	seen := make(map[string]int, len(recs))
	out := make([]docstore.ScoredRecord, 0, len(recs))
	for _, r := range recs {
		if idx, ok := seen[r.ID]; ok {
			if r.Score > out[idx].Score {
				out[idx] = r
			}
			continue
		}
		seen[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

func filterBySources(recs []docstore.ScoredRecord, sources []string) []docstore.ScoredRecord {
	allow := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		allow[s] = struct{}{}
	}
	out := make([]docstore.ScoredRecord, 0, len(recs))
	for _, r := range recs {
		if _, ok := allow[r.Metadata["source_name"]]; ok {
			out = append(out, r)
		}
	}
	return out
}

// stableSort orders by Score (whatever the reranker left on each
// record), then by (source_name, chunk_index) lexical order. The fused
// score is not kept beside the reranker's, so there is no separate
// fused-score tie-break.
func stableSort(recs []docstore.ScoredRecord) []docstore.ScoredRecord {
	out := append([]docstore.ScoredRecord(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		si, sj := out[i].Metadata["source_name"], out[j].Metadata["source_name"]
		if si != sj {
			return si < sj
		}
		return atoi(out[i].Metadata["chunk_index"]) < atoi(out[j].Metadata["chunk_index"])
	})
	return out
}

func assembleContext(recs []docstore.ScoredRecord, maxTokens int) (string, []Citation) {
	var sb strings.Builder
	citations := make([]Citation, 0, len(recs))
	used := 0
	for i, r := range recs {
		n := i + 1
		header := "[" + itoa(n) + "] source=" + r.Metadata["source_name"] + " page=" + r.Metadata["page"]
		block := header + "\n" + r.Snippet + "\n\n"
		tokens := estimateTokens(block)
		if used+tokens > maxTokens && used > 0 {
			break
		}
		sb.WriteString(block)
		used += tokens
		citations = append(citations, Citation{
			N: n, ID: r.ID, SourceName: r.Metadata["source_name"],
			Page: atoi(r.Metadata["page"]), Snippet: firstN(r.Snippet, 200),
			FullText: r.Snippet, SimilarityScore: r.Score, ContentType: "text",
		})
	}
	return sb.String(), citations
}

func extractiveFallback(citations []Citation) string {
	var sb strings.Builder
	for _, c := range citations {
		sb.WriteString(c.Snippet)
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String())
}

func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		n = 1
	}
	return n
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func itoa(n int) string { return strconv.Itoa(n) }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
