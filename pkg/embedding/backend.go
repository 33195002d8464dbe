// Package embedding implements the Vector Embedding Subsystem's model-facing
// half (C6): a Backend abstraction over any text-embedding service, and a
// Generator that wraps a Backend with the batching, truncation, retry, and
// normalization behavior required of the subsystem as a whole.
package embedding

import "context"

// Backend is the abstraction over any text-embedding service (e.g. OpenAI
// text-embedding-3, a local Ollama model). All vectors returned by a single
// Backend instance share the same dimensionality (Dimensions()).
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Embed computes the embedding vector for a single text string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of text strings in a
	// single backend call. The returned slice has the same length as texts
	// and result[i] corresponds to texts[i]. On error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length produced by this backend.
	Dimensions() int

	// ModelID returns the backend-specific model identifier.
	ModelID() string
}
