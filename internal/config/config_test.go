package config_test

import (
	"strings"
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("Server.LogLevel = %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.RelationMapping.MinConfidenceThreshold != 0.5 {
		t.Errorf("RelationMapping.MinConfidenceThreshold = %v, want 0.5", cfg.RelationMapping.MinConfidenceThreshold)
	}
	if cfg.Embeddings.DefaultChunkSize != 1000 {
		t.Errorf("Embeddings.DefaultChunkSize = %d, want 1000", cfg.Embeddings.DefaultChunkSize)
	}
	if cfg.Embeddings.DefaultChunkOverlap != 200 {
		t.Errorf("Embeddings.DefaultChunkOverlap = %d, want 200", cfg.Embeddings.DefaultChunkOverlap)
	}
	if cfg.VectorIndex.GRPCPort != 6334 {
		t.Errorf("VectorIndex.GRPCPort = %d, want 6334", cfg.VectorIndex.GRPCPort)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	yamlDoc := `
server:
  log_level: debug
relation_mapping:
  min_confidence_threshold: 0.7
  allow_self_relations: false
  validate_entity_types: true
  auto_convert_to_triples: true
  default_graph_uri: "http://example.com/graph/main"
triple_store:
  default_graph_uri: "http://example.com/graph/main"
  query_timeout_seconds: 15
embeddings:
  default_model: "text-embedding-3-small"
  max_input_length: 4096
  default_chunk_size: 500
  default_chunk_overlap: 50
  max_batch_size: 16
  document_collection: "docs"
vector_index:
  host: "vectors.internal"
  grpc_port: 7000
  batch_size: 200
`
	cfg, err := config.LoadFromReader(strings.NewReader(yamlDoc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("Server.LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.RelationMapping.MinConfidenceThreshold != 0.7 {
		t.Errorf("MinConfidenceThreshold = %v, want 0.7", cfg.RelationMapping.MinConfidenceThreshold)
	}
	if cfg.Embeddings.DefaultModel != "text-embedding-3-small" {
		t.Errorf("DefaultModel = %q", cfg.Embeddings.DefaultModel)
	}
	if cfg.VectorIndex.Host != "vectors.internal" || cfg.VectorIndex.GRPCPort != 7000 {
		t.Errorf("VectorIndex = %+v", cfg.VectorIndex)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  unknown_key: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  log_level: verbose\n"))
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

func TestValidate_ConfidenceThresholdOutOfRange(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("relation_mapping:\n  min_confidence_threshold: 1.5\n"))
	if err == nil {
		t.Fatal("expected validation error for out-of-range confidence threshold")
	}
}
