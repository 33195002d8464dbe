package config

// Diff describes what changed between two configs. Used to decide whether a
// reloaded configuration can be applied in place or requires a restart.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	RelationMappingChanged bool
	EmbeddingsModelChanged bool
	VectorIndexHostChanged bool
}

// DiffConfigs compares old and new configs and reports what changed.
func DiffConfigs(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.RelationMapping != new.RelationMapping {
		d.RelationMappingChanged = true
	}

	if old.Embeddings.DefaultModel != new.Embeddings.DefaultModel {
		d.EmbeddingsModelChanged = true
	}

	if old.VectorIndex.Host != new.VectorIndex.Host || old.VectorIndex.GRPCPort != new.VectorIndex.GRPCPort {
		d.VectorIndexHostChanged = true
	}

	return d
}
