package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, fills in defaults, and
// returns a validated [Config]. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-value fields with the defaults named in each
// Config field's doc comment.
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.RelationMapping.MinConfidenceThreshold == 0 {
		cfg.RelationMapping.MinConfidenceThreshold = 0.5
	}
	if cfg.RelationMapping.DefaultGraphURI == "" {
		cfg.RelationMapping.DefaultGraphURI = "http://smartinsight.com/graph/default"
	}

	if cfg.TripleStore.Backend == "" {
		cfg.TripleStore.Backend = "memory"
	}
	if cfg.TripleStore.DefaultGraphURI == "" {
		cfg.TripleStore.DefaultGraphURI = cfg.RelationMapping.DefaultGraphURI
	}
	if cfg.TripleStore.QueryTimeoutSeconds <= 0 {
		cfg.TripleStore.QueryTimeoutSeconds = 30
	}

	if cfg.Embeddings.Backend == "" {
		cfg.Embeddings.Backend = "mock"
	}
	if cfg.Embeddings.MaxInputLength <= 0 {
		cfg.Embeddings.MaxInputLength = 8192
	}
	if cfg.Embeddings.DefaultChunkSize <= 0 {
		cfg.Embeddings.DefaultChunkSize = 1000
	}
	if cfg.Embeddings.DefaultChunkOverlap <= 0 {
		cfg.Embeddings.DefaultChunkOverlap = 200
	}
	if cfg.Embeddings.MaxBatchSize <= 0 {
		cfg.Embeddings.MaxBatchSize = 32
	}
	if cfg.Embeddings.MaxRetryAttempts <= 0 {
		cfg.Embeddings.MaxRetryAttempts = 3
	}
	if cfg.Embeddings.RetryDelayMs <= 0 {
		cfg.Embeddings.RetryDelayMs = 500
	}
	if cfg.Embeddings.DocumentCollection == "" {
		cfg.Embeddings.DocumentCollection = "documents"
	}

	if cfg.VectorIndex.Backend == "" {
		cfg.VectorIndex.Backend = "mock"
	}
	if cfg.VectorIndex.Host == "" {
		cfg.VectorIndex.Host = "localhost"
	}
	if cfg.VectorIndex.HTTPPort <= 0 {
		cfg.VectorIndex.HTTPPort = 6333
	}
	if cfg.VectorIndex.GRPCPort <= 0 {
		cfg.VectorIndex.GRPCPort = 6334
	}
	if cfg.VectorIndex.MaxRetries <= 0 {
		cfg.VectorIndex.MaxRetries = 3
	}
	if cfg.VectorIndex.MaxRetryDelayMs <= 0 {
		cfg.VectorIndex.MaxRetryDelayMs = 5000
	}
	if cfg.VectorIndex.BatchSize <= 0 {
		cfg.VectorIndex.BatchSize = 100
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if t := cfg.RelationMapping.MinConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("relation_mapping.min_confidence_threshold %v is out of range [0, 1]", t))
	}

	switch cfg.TripleStore.Backend {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("triple_store.backend %q is invalid; valid values: memory, postgres", cfg.TripleStore.Backend))
	}
	if cfg.TripleStore.Backend == "postgres" && cfg.TripleStore.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("triple_store.postgres_dsn must be set when backend is %q", cfg.TripleStore.Backend))
	}
	if cfg.TripleStore.QueryTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("triple_store.query_timeout_seconds must be positive, got %d", cfg.TripleStore.QueryTimeoutSeconds))
	}

	switch cfg.Embeddings.Backend {
	case "mock", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("embeddings.backend %q is invalid; valid values: mock, openai, ollama", cfg.Embeddings.Backend))
	}
	if cfg.Embeddings.Backend == "openai" && cfg.Embeddings.APIKey == "" {
		errs = append(errs, fmt.Errorf("embeddings.api_key must be set when backend is %q", cfg.Embeddings.Backend))
	}

	if cfg.Embeddings.DefaultChunkOverlap > cfg.Embeddings.DefaultChunkSize/2 {
		slog.Warn("embeddings.default_chunk_overlap exceeds half of default_chunk_size; it will be clamped at chunk time",
			"chunk_size", cfg.Embeddings.DefaultChunkSize,
			"overlap", cfg.Embeddings.DefaultChunkOverlap,
		)
	}
	if cfg.Embeddings.MaxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.max_batch_size must be positive, got %d", cfg.Embeddings.MaxBatchSize))
	}

	switch cfg.VectorIndex.Backend {
	case "mock", "qdrant", "pgvector":
	default:
		errs = append(errs, fmt.Errorf("vector_index.backend %q is invalid; valid values: mock, qdrant, pgvector", cfg.VectorIndex.Backend))
	}
	if cfg.VectorIndex.Backend == "pgvector" && cfg.VectorIndex.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("vector_index.postgres_dsn must be set when backend is %q", cfg.VectorIndex.Backend))
	}
	if cfg.VectorIndex.Backend == "qdrant" {
		if cfg.VectorIndex.GRPCPort <= 0 || cfg.VectorIndex.GRPCPort > 65535 {
			errs = append(errs, fmt.Errorf("vector_index.grpc_port %d is out of range", cfg.VectorIndex.GRPCPort))
		}
	}
	if cfg.VectorIndex.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("vector_index.batch_size must be positive, got %d", cfg.VectorIndex.BatchSize))
	}

	return errors.Join(errs...)
}
