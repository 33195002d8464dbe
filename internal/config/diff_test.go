package config_test

import (
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/config"
)

func TestDiffConfigs_NoChanges(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	d := config.DiffConfigs(cfg, cfg)
	if d.LogLevelChanged || d.RelationMappingChanged || d.EmbeddingsModelChanged || d.VectorIndexHostChanged {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiffConfigs_LogLevelChanged(t *testing.T) {
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}
	d := config.DiffConfigs(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiffConfigs_RelationMappingChanged(t *testing.T) {
	old := &config.Config{RelationMapping: config.RelationMappingConfig{MinConfidenceThreshold: 0.5}}
	new := &config.Config{RelationMapping: config.RelationMappingConfig{MinConfidenceThreshold: 0.8}}
	d := config.DiffConfigs(old, new)
	if !d.RelationMappingChanged {
		t.Error("expected RelationMappingChanged=true")
	}
}

func TestDiffConfigs_EmbeddingsModelChanged(t *testing.T) {
	old := &config.Config{Embeddings: config.EmbeddingsConfig{DefaultModel: "a"}}
	new := &config.Config{Embeddings: config.EmbeddingsConfig{DefaultModel: "b"}}
	d := config.DiffConfigs(old, new)
	if !d.EmbeddingsModelChanged {
		t.Error("expected EmbeddingsModelChanged=true")
	}
}

func TestDiffConfigs_VectorIndexHostChanged(t *testing.T) {
	old := &config.Config{VectorIndex: config.VectorIndexConfig{Host: "a", GRPCPort: 6334}}
	new := &config.Config{VectorIndex: config.VectorIndexConfig{Host: "b", GRPCPort: 6334}}
	d := config.DiffConfigs(old, new)
	if !d.VectorIndexHostChanged {
		t.Error("expected VectorIndexHostChanged=true")
	}
}
