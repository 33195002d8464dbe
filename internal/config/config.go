// Package config provides the configuration schema, loader, and diffing
// support for the knowledge platform core.
package config

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	RelationMapping RelationMappingConfig `yaml:"relation_mapping"`
	TripleStore     TripleStoreConfig     `yaml:"triple_store"`
	Embeddings      EmbeddingsConfig      `yaml:"embeddings"`
	VectorIndex     VectorIndexConfig     `yaml:"vector_index"`
}

// LogLevel controls logging verbosity.
type LogLevel string

// Valid LogLevel values.
const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError, "":
		return true
	default:
		return false
	}
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// RelationMappingConfig tunes the Relation Extraction and Mapping pipeline
// (C1-C3).
type RelationMappingConfig struct {
	// MinConfidenceThreshold drops extracted relations scoring below this
	// value; it is the first check of the pipeline's validation step.
	// Range [0, 1]. Default: 0.5.
	MinConfidenceThreshold float64 `yaml:"min_confidence_threshold"`

	// AllowSelfRelations, when false, rejects relations whose source and
	// target entity identifiers are equal.
	AllowSelfRelations bool `yaml:"allow_self_relations"`

	// ValidateEntityTypes enables type-compatibility checks between a
	// relation's declared type and its source/target entity types.
	ValidateEntityTypes bool `yaml:"validate_entity_types"`

	// AutoConvertToTriples runs accepted relations through the Triple
	// Mapper (C3) as part of the pipeline rather than as a separate step.
	AutoConvertToTriples bool `yaml:"auto_convert_to_triples"`

	// DefaultGraphURI is used when a relation does not specify a target
	// graph for its derived triples.
	DefaultGraphURI string `yaml:"default_graph_uri"`
}

// TripleStoreConfig tunes the Versioned Triple Store (C4).
type TripleStoreConfig struct {
	// Backend selects the storage implementation: "memory" (default) or
	// "postgres".
	Backend string `yaml:"backend"`

	// PostgresDSN is the connection string used when Backend is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`

	// DefaultGraphURI defaults to relation_mapping.default_graph_uri. No
	// store reads it: a triple written without a graph is placed in
	// triple.DefaultGraphURI(tenant).
	DefaultGraphURI string `yaml:"default_graph_uri"`

	// QueryTimeoutSeconds must be positive. Default: 30. No query path reads
	// it; SPARQL-subset queries are not canceled after this many seconds.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds"`
}

// EmbeddingsConfig tunes the Embedding Generator (C6) and, via
// DefaultChunkSize/DefaultChunkOverlap, the Structure-Aware Chunker (C5).
type EmbeddingsConfig struct {
	// Backend selects the embedding provider: "openai", "ollama", or "mock"
	// (default "mock", safe to run without any external dependency).
	Backend string `yaml:"backend"`

	// APIKey authenticates requests to the OpenAI backend. Ignored by other
	// backends.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint: the OpenAI API base
	// URL, or the Ollama server address (default "http://localhost:11434").
	BaseURL string `yaml:"base_url"`

	// DefaultModel is used when a caller does not specify one.
	DefaultModel string `yaml:"default_model"`

	// MaxInputLength truncates text longer than this many runes before
	// embedding. Default: 8192.
	MaxInputLength int `yaml:"max_input_length"`

	// DefaultChunkSize is the target chunk length, in runes, used by the
	// chunker when a caller does not override it. Default: 1000.
	DefaultChunkSize int `yaml:"default_chunk_size"`

	// DefaultChunkOverlap is the number of runes shared by consecutive
	// windows when the chunker splits a sentence longer than the chunk size;
	// chunks built from whole sentences do not overlap. Default: 200.
	// Clamped to at most half of DefaultChunkSize.
	DefaultChunkOverlap int `yaml:"default_chunk_overlap"`

	// MaxBatchSize caps how many texts are embedded per backend call.
	// Default: 32.
	MaxBatchSize int `yaml:"max_batch_size"`

	// MaxRetryAttempts is the total number of attempts per backend call,
	// including the first. Default: 3.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`

	// RetryDelayMs is the base backoff delay in milliseconds. Default: 500.
	RetryDelayMs int `yaml:"retry_delay_ms"`

	// NormalizeVectors, when true, L2-normalizes every returned vector.
	NormalizeVectors bool `yaml:"normalize_vectors"`

	// DocumentCollection names the vector index collection documents are
	// written to by the Document Embedder (C8).
	DocumentCollection string `yaml:"document_collection"`

	// ModelOptions holds backend-specific settings keyed by model name
	// (e.g. base URL, organization, timeout overrides).
	ModelOptions map[string]map[string]any `yaml:"model_options"`
}

// VectorIndexConfig configures the vector index client (C7).
type VectorIndexConfig struct {
	// Backend selects the vector index implementation: "qdrant", "pgvector",
	// or "mock" (default "mock").
	Backend string `yaml:"backend"`

	// PostgresDSN is the connection string used when Backend is "pgvector".
	PostgresDSN string `yaml:"postgres_dsn"`

	// Host is the vector index server hostname or IP.
	Host string `yaml:"host"`

	// HTTPPort is the REST port. Default: 6333. No client in this module
	// connects to it; the qdrant backend uses GRPCPort.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort is the gRPC port used for upsert/search/delete operations.
	GRPCPort int `yaml:"grpc_port"`

	// UseHTTPS enables TLS on the qdrant client's gRPC connection.
	UseHTTPS bool `yaml:"use_https"`

	// APIKey authenticates requests to a secured index deployment.
	APIKey string `yaml:"api_key"`

	// MaxRetries bounds retry attempts for a single operation. Default: 3.
	MaxRetries int `yaml:"max_retries"`

	// MaxRetryDelayMs caps the backoff delay between retries. Default: 5000.
	MaxRetryDelayMs int `yaml:"max_retry_delay_ms"`

	// BatchSize caps how many points are upserted per request. Default: 100.
	BatchSize int `yaml:"batch_size"`
}
