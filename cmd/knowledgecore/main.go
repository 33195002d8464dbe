// Command knowledgecore wires the Relation Mapping Pipeline, Versioned
// Triple Store, and Document Embedder into a single CLI for offline batch
// use: ingest a document, run a similarity search, execute a SPARQL-subset
// query, or print store statistics. There is no HTTP/REST surface (see
// Non-goals) — every invocation does one thing and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/config"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/observe"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding/backend/ollama"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding/backend/openai"
	embmock "github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding/mock"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/ingest"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/relation"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/relation/extractor/llm"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
	triplepg "github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple/postgres"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex"
	vectormock "github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex/mock"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex/pgvector"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex/qdrant"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("knowledgecore", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage()
		return 2
	}
	command, commandArgs := rest[0], rest[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "knowledgecore: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "knowledgecore: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	shutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: "knowledgecore"})
	if err != nil {
		slog.Error("failed to initialise telemetry providers", "err", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg)
	if err != nil {
		slog.Error("failed to wire dependencies", "err", err)
		return 1
	}
	defer deps.Close()

	printStartupSummary(cfg, command)

	switch command {
	case "ingest":
		return runIngest(ctx, deps, commandArgs)
	case "search":
		return runSearch(ctx, deps, commandArgs)
	case "query":
		return runQuery(ctx, deps, commandArgs)
	case "stats":
		return runStats(ctx, deps, commandArgs)
	case "delete":
		return runDelete(ctx, deps, commandArgs)
	default:
		fmt.Fprintf(os.Stderr, "knowledgecore: unknown command %q\n", command)
		printUsage()
		return 2
	}
}

// dependencies holds every wired component a command needs, so individual
// command handlers stay thin.
type dependencies struct {
	tripleStore triple.Store
	vectorIndex vectorindex.Client
	generator   *embedding.Generator
	embedder    *ingest.Embedder
	pipeline    *relation.Pipeline
	pgPool      *pgxpool.Pool // non-nil only when pgvector opened its own pool
}

func (d *dependencies) Close() {
	if closer, ok := d.tripleStore.(interface{ Close() }); ok {
		closer.Close()
	}
	if d.pgPool != nil {
		d.pgPool.Close()
	}
}

// buildDependencies constructs the triple store, vector index, embedding
// generator, document embedder, and relation pipeline named by cfg.
func buildDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	metrics := observe.DefaultMetrics()

	store, err := buildTripleStore(ctx, cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("triple store: %w", err)
	}

	index, pgPool, err := buildVectorIndex(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}

	generator, err := buildEmbeddingGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding generator: %w", err)
	}

	embedder := ingest.New(ingest.Config{
		DefaultCollection:   cfg.Embeddings.DocumentCollection,
		DefaultChunkSize:    cfg.Embeddings.DefaultChunkSize,
		DefaultChunkOverlap: cfg.Embeddings.DefaultChunkOverlap,
		EmbedConcurrency:    4,
	}, generator, index)

	mapper := triple.NewMapper(store)
	pipeline := relation.NewPipeline(buildRelationRegistry(cfg), relation.Config{
		MinConfidenceThreshold: cfg.RelationMapping.MinConfidenceThreshold,
		AllowSelfRelations:     cfg.RelationMapping.AllowSelfRelations,
		ValidateEntityTypes:    cfg.RelationMapping.ValidateEntityTypes,
		AutoConvertToTriples:   cfg.RelationMapping.AutoConvertToTriples,
		DefaultGraphURI:        cfg.RelationMapping.DefaultGraphURI,
	}, mapper)

	return &dependencies{
		tripleStore: store,
		vectorIndex: index,
		generator:   generator,
		embedder:    embedder,
		pipeline:    pipeline,
		pgPool:      pgPool,
	}, nil
}

func buildTripleStore(ctx context.Context, cfg *config.Config, metrics *observe.Metrics) (triple.Store, error) {
	switch cfg.TripleStore.Backend {
	case "", "memory":
		return triple.NewMemStore(metrics), nil
	case "postgres":
		if cfg.TripleStore.PostgresDSN == "" {
			return nil, fmt.Errorf("triple_store.backend is %q but postgres_dsn is empty", cfg.TripleStore.Backend)
		}
		return triplepg.NewStore(ctx, cfg.TripleStore.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown triple_store.backend %q", cfg.TripleStore.Backend)
	}
}

func buildVectorIndex(ctx context.Context, cfg *config.Config) (vectorindex.Client, *pgxpool.Pool, error) {
	switch cfg.VectorIndex.Backend {
	case "", "mock":
		return vectormock.New(), nil, nil
	case "qdrant":
		client, err := qdrant.New(qdrant.Config{
			Host:            cfg.VectorIndex.Host,
			Port:            cfg.VectorIndex.GRPCPort,
			APIKey:          cfg.VectorIndex.APIKey,
			UseTLS:          cfg.VectorIndex.UseHTTPS,
			MaxRetries:      cfg.VectorIndex.MaxRetries,
			MaxRetryDelayMs: cfg.VectorIndex.MaxRetryDelayMs,
			BatchSize:       cfg.VectorIndex.BatchSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case "pgvector":
		if cfg.VectorIndex.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("vector_index.backend is %q but postgres_dsn is empty", cfg.VectorIndex.Backend)
		}
		pool, err := pgxpool.New(ctx, cfg.VectorIndex.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pgvector.New(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector_index.backend %q", cfg.VectorIndex.Backend)
	}
}

func buildEmbeddingGenerator(cfg *config.Config) (*embedding.Generator, error) {
	genCfg := embedding.Config{
		DefaultModel:     cfg.Embeddings.DefaultModel,
		MaxInputLength:   cfg.Embeddings.MaxInputLength,
		MaxBatchSize:     cfg.Embeddings.MaxBatchSize,
		MaxRetryAttempts: cfg.Embeddings.MaxRetryAttempts,
		RetryDelayMs:     cfg.Embeddings.RetryDelayMs,
		NormalizeVectors: cfg.Embeddings.NormalizeVectors,
	}

	backends := make(map[string]embedding.Backend)
	model := cfg.Embeddings.DefaultModel

	switch cfg.Embeddings.Backend {
	case "", "mock":
		backends[model] = &embmock.Backend{DimensionsValue: 768, ModelIDValue: model}
	case "openai":
		if cfg.Embeddings.APIKey == "" {
			return nil, fmt.Errorf("embeddings.backend is %q but api_key is empty", cfg.Embeddings.Backend)
		}
		var opts []openai.Option
		if cfg.Embeddings.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Embeddings.BaseURL))
		}
		backend, err := openai.New(cfg.Embeddings.APIKey, model, opts...)
		if err != nil {
			return nil, err
		}
		backends[model] = backend
	case "ollama":
		backend, err := ollama.New(cfg.Embeddings.BaseURL, model)
		if err != nil {
			return nil, err
		}
		backends[model] = backend
	default:
		return nil, fmt.Errorf("unknown embeddings.backend %q", cfg.Embeddings.Backend)
	}

	return embedding.NewGenerator(genCfg, backends), nil
}

// buildRelationRegistry registers the llm extractor when an OpenAI key is
// configured (embeddings.api_key is the one chat-capable credential this CLI
// carries); with no key configured the registry stays empty and the
// pipeline runs with zero extractors, returning no relations.
func buildRelationRegistry(cfg *config.Config) *relation.Registry {
	reg := relation.NewRegistry()
	if cfg.Embeddings.Backend == "openai" && cfg.Embeddings.APIKey != "" {
		extractor, err := llm.New(cfg.Embeddings.APIKey, "")
		if err != nil {
			slog.Warn("llm extractor not registered", "err", err)
			return reg
		}
		reg.Register(extractor)
	}
	return reg
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: knowledgecore [-config path] <command> [args]

commands:
  ingest  -tenant T -doc-id ID -collection C -file PATH   embed and index a document
  search  -tenant T -collection C -q TEXT [-limit N]       similarity search over indexed chunks
  query   -tenant T -sparql QUERY                          run a SELECT/CONSTRUCT query
  stats   -tenant T                                        print triple store statistics
  delete  -tenant T -doc-id ID -collection C               remove a document's chunks from the index
`)
}

func printStartupSummary(cfg *config.Config, command string) {
	fmt.Println("knowledgecore")
	fmt.Printf("  command          : %s\n", command)
	fmt.Printf("  triple store     : %s\n", nonEmpty(cfg.TripleStore.Backend, "memory"))
	fmt.Printf("  vector index     : %s\n", nonEmpty(cfg.VectorIndex.Backend, "mock"))
	fmt.Printf("  embeddings       : %s / %s\n", nonEmpty(cfg.Embeddings.Backend, "mock"), cfg.Embeddings.DefaultModel)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Commands ──────────────────────────────────────────────────────────────

func runIngest(ctx context.Context, deps *dependencies, args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	docID := fs.String("doc-id", "", "document id (required)")
	collection := fs.String("collection", "", "vector index collection (defaults to embeddings.document_collection)")
	file := fs.String("file", "", "path to the document text file (required)")
	title := fs.String("title", "", "document title")
	model := fs.String("model", "", "embedding model (defaults to embeddings.default_model)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *tenant == "" || *docID == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "ingest: -tenant, -doc-id, and -file are required")
		return 2
	}

	text, err := os.ReadFile(*file)
	if err != nil {
		slog.Error("read document", "err", err)
		return 1
	}

	chunks, err := deps.embedder.ProcessDocument(ctx, *docID, string(text), *title, nil, *tenant, *collection, *model, 0, 0)
	if err != nil {
		slog.Error("ingest failed", "err", err)
		return 1
	}
	fmt.Printf("ingested %d chunks for document %s\n", chunks, *docID)
	return 0
}

func runSearch(ctx context.Context, deps *dependencies, args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	collection := fs.String("collection", "", "vector index collection (defaults to embeddings.document_collection)")
	query := fs.String("q", "", "query text (required)")
	model := fs.String("model", "", "embedding model (defaults to embeddings.default_model)")
	limit := fs.Int("limit", 10, "maximum results")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *tenant == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "search: -tenant and -q are required")
		return 2
	}

	results, err := deps.embedder.SearchSimilar(ctx, *query, *limit, *tenant, *collection, *model)
	if err != nil {
		slog.Error("search failed", "err", err)
		return 1
	}
	return printJSON(results)
}

func runQuery(ctx context.Context, deps *dependencies, args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	sparql := fs.String("sparql", "", "SELECT or CONSTRUCT query (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *tenant == "" || *sparql == "" {
		fmt.Fprintln(os.Stderr, "query: -tenant and -sparql are required")
		return 2
	}

	result, err := deps.tripleStore.ExecuteSPARQL(ctx, *tenant, *sparql)
	if err != nil {
		slog.Error("query failed", "err", err)
		return 1
	}
	return printJSON(result)
}

func runStats(ctx context.Context, deps *dependencies, args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *tenant == "" {
		fmt.Fprintln(os.Stderr, "stats: -tenant is required")
		return 2
	}

	stats, err := deps.tripleStore.Statistics(ctx, *tenant)
	if err != nil {
		slog.Error("stats failed", "err", err)
		return 1
	}
	return printJSON(stats)
}

func runDelete(ctx context.Context, deps *dependencies, args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant id (required)")
	docID := fs.String("doc-id", "", "document id (required)")
	collection := fs.String("collection", "", "vector index collection (defaults to embeddings.document_collection)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *tenant == "" || *docID == "" {
		fmt.Fprintln(os.Stderr, "delete: -tenant and -doc-id are required")
		return 2
	}

	if err := deps.embedder.DeleteDocument(ctx, *docID, *tenant, *collection); err != nil {
		slog.Error("delete failed", "err", err)
		return 1
	}
	fmt.Printf("deleted document %s\n", *docID)
	return 0
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode output", "err", err)
		return 1
	}
	return 0
}
