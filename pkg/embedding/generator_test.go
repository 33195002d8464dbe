package embedding_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding/mock"
)

func newGenerator(t *testing.T, cfg embedding.Config, backend *mock.Backend) *embedding.Generator {
	t.Helper()
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "test-model"
	}
	return embedding.NewGenerator(cfg, map[string]embedding.Backend{cfg.DefaultModel: backend})
}

func TestGenerator_Embed_Normalizes(t *testing.T) {
	backend := &mock.Backend{EmbedResult: []float32{3, 4}, DimensionsValue: 2}
	g := newGenerator(t, embedding.Config{NormalizeVectors: true}, backend)

	vec, err := g.Embed(context.Background(), "hello", "", "tenant-a")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	norm := math.Sqrt(float64(vec[0])*float64(vec[0]) + float64(vec[1])*float64(vec[1]))
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm = %v, want ~1", norm)
	}
}

func TestGenerator_Embed_ZeroVectorNotDividedByZero(t *testing.T) {
	backend := &mock.Backend{EmbedResult: []float32{0, 0, 0}, DimensionsValue: 3}
	g := newGenerator(t, embedding.Config{NormalizeVectors: true}, backend)

	vec, err := g.Embed(context.Background(), "hello", "", "tenant-a")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Errorf("expected zero vector unchanged, got %v", vec)
		}
	}
}

func TestGenerator_Embed_Truncates(t *testing.T) {
	backend := &mock.Backend{EmbedResult: []float32{1}, DimensionsValue: 1}
	g := newGenerator(t, embedding.Config{MaxInputLength: 5}, backend)

	longText := strings.Repeat("a", 100)
	_, err := g.Embed(context.Background(), longText, "", "tenant-a")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(backend.EmbedCalls) != 1 {
		t.Fatalf("expected 1 embed call, got %d", len(backend.EmbedCalls))
	}
	if got := backend.EmbedCalls[0].Text; len(got) != 5 {
		t.Errorf("truncated text length = %d, want 5", len(got))
	}
}

func TestGenerator_EmbedBatch_SplitsIntoBatches(t *testing.T) {
	backend := &mock.Backend{DimensionsValue: 1}
	g := newGenerator(t, embedding.Config{MaxBatchSize: 2}, backend)

	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := g.EmbedBatch(context.Background(), texts, "", "tenant-a")
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("len(vecs) = %d, want %d", len(vecs), len(texts))
	}
	if len(backend.EmbedBatchCalls) != 3 {
		t.Fatalf("expected 3 batch calls (2+2+1), got %d", len(backend.EmbedBatchCalls))
	}
}

func TestGenerator_EmbedBatch_Empty(t *testing.T) {
	backend := &mock.Backend{}
	g := newGenerator(t, embedding.Config{}, backend)

	vecs, err := g.EmbedBatch(context.Background(), nil, "", "tenant-a")
	if err != nil {
		t.Fatalf("EmbedBatch(nil): %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil, got %v", vecs)
	}
}

func TestGenerator_RetriesTransientFailure(t *testing.T) {
	calls := 0
	backend := &failingThenSucceedingBackend{failTimes: 2, vec: []float32{1, 2}}
	g := embedding.NewGenerator(embedding.Config{DefaultModel: "m", RetryDelayMs: 1}, map[string]embedding.Backend{"m": backend})

	vec, err := g.Embed(context.Background(), "hi", "", "t")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	calls = backend.calls
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(vec) != 2 {
		t.Errorf("vec len = %d, want 2", len(vec))
	}
}

func TestGenerator_Dimension_UsesBackendValue(t *testing.T) {
	backend := &mock.Backend{DimensionsValue: 1536}
	g := newGenerator(t, embedding.Config{}, backend)

	d, err := g.Dimension(context.Background(), "")
	if err != nil {
		t.Fatalf("Dimension: %v", err)
	}
	if d != 1536 {
		t.Errorf("Dimension() = %d, want 1536", d)
	}
}

func TestGenerator_UnknownModel(t *testing.T) {
	backend := &mock.Backend{}
	g := newGenerator(t, embedding.Config{}, backend)

	_, err := g.Embed(context.Background(), "hi", "not-registered", "t")
	if err == nil {
		t.Fatal("expected error for unregistered model")
	}
}

// failingThenSucceedingBackend fails failTimes times before returning vec.
type failingThenSucceedingBackend struct {
	failTimes int
	vec       []float32
	calls     int
}

func (b *failingThenSucceedingBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	b.calls++
	if b.calls <= b.failTimes {
		return nil, errors.New("transient failure")
	}
	return b.vec, nil
}

func (b *failingThenSucceedingBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = b.vec
	}
	return out, nil
}

func (b *failingThenSucceedingBackend) Dimensions() int { return len(b.vec) }
func (b *failingThenSucceedingBackend) ModelID() string { return "m" }
