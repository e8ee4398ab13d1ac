// Command ragserver wires the Document Registry, Document Store,
// Blob Store, Ingestion Worker, Retrieval Worker, Gateway and MCP
// Surface together and serves the Gateway's HTTP API (spec §6) plus,
// when MCP_STDIO=1, the MCP Surface over stdio (spec §4.5).
// Grounded on the teacher's cmd/agentd main: env-driven config
// construction, a zerolog logger built before anything else, an
// http.Server run under signal.NotifyContext for graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ragcorpus/internal/blobstore"
	"ragcorpus/internal/config"
	"ragcorpus/internal/docstore"
	"ragcorpus/internal/embedclient"
	"ragcorpus/internal/gateway"
	"ragcorpus/internal/generator"
	"ragcorpus/internal/ingest"
	"ragcorpus/internal/logging"
	"ragcorpus/internal/mcpsurface"
	"ragcorpus/internal/metrics"
	"ragcorpus/internal/objectstore"
	"ragcorpus/internal/parser"
	"ragcorpus/internal/reranker"
	"ragcorpus/internal/registry"
	"ragcorpus/internal/retrieve"
)

func main() {
	log := logging.NewDefault("ragserver")

	shutdownTelemetry, err := metrics.InitProvider("ragcorpus")
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry provider")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Error().Err(err).Msg("shut down telemetry provider")
		}
	}()

	storageCfg := storageConfigFromEnv()
	registryCfg := config.DefaultRegistryConfig(envOr("REGISTRY_DIR", "./data/registry"))
	ingestionCfg := ingestionConfigFromEnv()
	retrievalCfg := config.DefaultRetrievalConfig()
	genCfg := generatorConfigFromEnv()

	reg, err := registry.New(registryCfg, log.With().Str("subcomponent", "registry").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("open registry")
	}

	blobBackend, err := objectStoreFromEnv(storageCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open blob backend")
	}
	blobs := blobstore.New(blobBackend)

	store := docstore.New(storageCfg, log.With().Str("subcomponent", "docstore").Logger())

	embed := embedclient.New(embedclient.Config{
		BaseURL: envOr("EMBEDDING_BASE_URL", "http://localhost:8081"),
		Model:   envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		APIKey:  os.Getenv("EMBEDDING_API_KEY"),
	})

	gen, err := generator.New(genCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("construct generator")
	}

	var rerank reranker.Reranker = reranker.Noop{}
	if endpoint := os.Getenv("RERANKER_ENDPOINT"); endpoint != "" {
		rerank = reranker.NewHTTPCrossEncoder(endpoint, os.Getenv("RERANKER_API_KEY"), 0)
	}

	parsers := map[parser.Kind]parser.Parser{
		parser.KindPlain: parser.NewPlain(parser.PlainTextExtract),
	}
	ingester := ingest.NewWorker(reg, store, blobs, embed, parsers, nil, ingestionCfg, log.With().Str("subcomponent", "ingest").Logger())
	retriever := retrieve.NewWorker(store, embed, gen, rerank, retrievalCfg)
	ingester.SetMetrics(metrics.New("ragcorpus.ingest"))
	retriever.SetMetrics(metrics.New("ragcorpus.retrieve"))

	gw := gateway.NewServer(reg, store, blobs, ingester, retriever, retriever, log.With().Str("subcomponent", "gateway").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("MCP_STDIO") == "1" {
		mcp := mcpsurface.NewServer(reg, store, blobs, ingester, retriever, retriever, log.With().Str("subcomponent", "mcp").Logger())
		go func() {
			if err := mcp.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("mcp surface stopped with error")
			}
		}()
	}

	addr := envOr("LISTEN_ADDR", ":8080")
	srv := &http.Server{Addr: addr, Handler: gw}

	go func() {
		log.Info().Str("addr", addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("gateway server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("close document store")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func storageConfigFromEnv() config.StorageConfig {
	cfg := config.DefaultStorageConfig()
	cfg.QdrantAddr = os.Getenv("QDRANT_ADDR")
	cfg.QdrantAPIKey = os.Getenv("QDRANT_API_KEY")
	cfg.VectorDimension = envIntOr("VECTOR_DIMENSION", cfg.VectorDimension)
	cfg.DistanceMetric = envOr("DISTANCE_METRIC", cfg.DistanceMetric)
	cfg.BlobBucket = os.Getenv("BLOB_BUCKET")
	cfg.BlobEndpoint = os.Getenv("BLOB_ENDPOINT")
	return cfg
}

func ingestionConfigFromEnv() config.IngestionConfig {
	cfg := config.DefaultIngestionConfig()
	cfg.ChunkPreset = config.ChunkPreset(envOr("CHUNK_PRESET", string(cfg.ChunkPreset)))
	return cfg
}

func generatorConfigFromEnv() generator.Config {
	return generator.Config{
		Provider:    envOr("GENERATOR_PROVIDER", "openai"),
		Model:       os.Getenv("GENERATOR_MODEL"),
		APIKey:      os.Getenv("GENERATOR_API_KEY"),
		BaseURL:     os.Getenv("GENERATOR_BASE_URL"),
		Temperature: 0.2,
		MaxTokens:   1024,
	}
}

func objectStoreFromEnv(cfg config.StorageConfig) (objectstore.ObjectStore, error) {
	if cfg.BlobBucket == "" {
		return objectstore.NewMemoryStore(), nil
	}
	sse := objectstore.S3SSEConfig{}
	if cfg.BlobUseSSEKMS {
		sse.Mode = "sse-kms"
	}
	return objectstore.NewS3Store(context.Background(), objectstore.S3Config{
		Bucket:       cfg.BlobBucket,
		Region:       envOr("AWS_REGION", "us-east-1"),
		Endpoint:     cfg.BlobEndpoint,
		UsePathStyle: cfg.BlobEndpoint != "",
		AccessKey:    os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SSE:          sse,
	})
}
