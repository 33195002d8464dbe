package ingest_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding"
	embmock "github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/embedding/mock"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/ingest"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex"
	vmock "github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex/mock"
)

func fixedVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		v[0] = 1
		out[i] = v
	}
	return out
}

func TestEmbedder_ProcessDocument_CreatesCollectionAndUpserts(t *testing.T) {
	ctx := context.Background()
	backend := &embmock.Backend{DimensionsValue: 4, ModelIDValue: "test-model"}
	gen := embedding.NewGenerator(embedding.Config{DefaultModel: "test-model"}, map[string]embedding.Backend{"test-model": backend})
	idx := vmock.New()
	emb := ingest.New(ingest.Config{DefaultCollection: "docs"}, gen, idx)

	text := "A short document that fits in a single chunk."
	backend.EmbedBatchResult = fixedVectors(1, 4)

	n, err := emb.ProcessDocument(ctx, "doc-1", text, "Title", map[string]any{"custom": "value"}, "tenant-a", "", "", 0, 0)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk stored, got %d", n)
	}

	exists, err := idx.CollectionExists(ctx, "docs")
	if err != nil || !exists {
		t.Fatalf("expected collection created, exists=%v err=%v", exists, err)
	}

	count, err := idx.Count(ctx, "docs", nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 point stored, got %d", count)
	}
}

func TestEmbedder_ProcessDocument_EmbeddingCountMismatchIsInternal(t *testing.T) {
	ctx := context.Background()
	backend := &embmock.Backend{DimensionsValue: 4, ModelIDValue: "test-model"}
	gen := embedding.NewGenerator(embedding.Config{DefaultModel: "test-model"}, map[string]embedding.Backend{"test-model": backend})
	idx := vmock.New()
	emb := ingest.New(ingest.Config{DefaultCollection: "docs"}, gen, idx)

	// Oversized text forces multiple chunks, but the mock backend returns a
	// single-vector batch regardless of input size, producing a mismatch.
	longText := strings.Repeat("Sentence number filler here to pad the document length out. ", 50)
	backend.EmbedBatchResult = fixedVectors(1, 4)

	_, err := emb.ProcessDocument(ctx, "doc-2", longText, "Title", nil, "tenant-a", "", "", 50, 10)
	if err == nil {
		t.Fatalf("expected error on embedding/chunk count mismatch")
	}
	if !coreerr.Is(err, coreerr.KindInternal) {
		t.Fatalf("expected KindInternal on embedding/chunk count mismatch, got %v", err)
	}
}

func TestEmbedder_SearchSimilar_MapsPayload(t *testing.T) {
	ctx := context.Background()
	backend := &embmock.Backend{DimensionsValue: 3, ModelIDValue: "test-model"}
	gen := embedding.NewGenerator(embedding.Config{DefaultModel: "test-model"}, map[string]embedding.Backend{"test-model": backend})
	idx := vmock.New()
	emb := ingest.New(ingest.Config{DefaultCollection: "docs"}, gen, idx)

	if err := idx.CreateCollection(ctx, "docs", 3); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	vec := []float32{1, 0, 0}
	if err := idx.Upsert(ctx, "docs", []vectorindex.Point{{
		ID:     "doc-1_0",
		Vector: vec,
		Payload: map[string]any{
			"text":        "hello world",
			"document_id": "doc-1",
			"tenant_id":   "tenant-a",
			"chunk_index": 0,
		},
	}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	backend.EmbedResult = vec
	results, err := emb.SearchSimilar(ctx, "hello", 5, "tenant-a", "", "")
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-1" || results[0].Text != "hello world" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestEmbedder_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	backend := &embmock.Backend{DimensionsValue: 2, ModelIDValue: "test-model"}
	gen := embedding.NewGenerator(embedding.Config{DefaultModel: "test-model"}, map[string]embedding.Backend{"test-model": backend})
	idx := vmock.New()
	emb := ingest.New(ingest.Config{DefaultCollection: "docs"}, gen, idx)

	_ = idx.CreateCollection(ctx, "docs", 2)
	_ = idx.Upsert(ctx, "docs", []vectorindex.Point{{
		ID:      "doc-1_0",
		Vector:  []float32{1, 0},
		Payload: map[string]any{"document_id": "doc-1", "tenant_id": "tenant-a"},
	}})

	if err := emb.DeleteDocument(ctx, "doc-1", "tenant-a", ""); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	n, err := idx.Count(ctx, "docs", nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 points after deletion, got %d", n)
	}
}
