package mock

import (
	"context"
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex"
)

func TestClient_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	c := New()
	if err := c.CreateCollection(ctx, "docs", 3); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	vec := []float32{1, 0, 0}
	err := c.Upsert(ctx, "docs", []vectorindex.Point{
		{ID: "a", Vector: vec, Payload: map[string]any{"text": "hello", vectorindex.PayloadTenantID: "tenantA"}},
		{ID: "b", Vector: vec, Payload: map[string]any{"text": "hello", vectorindex.PayloadTenantID: "tenantB"}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	resultsA, err := c.Search(ctx, "docs", vec, "tenantA", 10, 0, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resultsA) != 1 || resultsA[0].ID != "a" {
		t.Fatalf("expected only tenantA's point, got %+v", resultsA)
	}

	resultsB, err := c.Search(ctx, "docs", vec, "tenantB", 10, 0, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resultsB) != 1 || resultsB[0].ID != "b" {
		t.Fatalf("expected only tenantB's point, got %+v", resultsB)
	}
}

func TestClient_DimensionMismatchRejected(t *testing.T) {
	ctx := context.Background()
	c := New()
	if err := c.CreateCollection(ctx, "docs", 3); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	err := c.Upsert(ctx, "docs", []vectorindex.Point{{ID: "a", Vector: []float32{1, 2}}})
	if !coreerr.Is(err, coreerr.KindDimensionMismatch) {
		t.Fatalf("expected KindDimensionMismatch, got %v", err)
	}
}

func TestClient_CreateCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	c := New()
	if err := c.CreateCollection(ctx, "docs", 3); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := c.CreateCollection(ctx, "docs", 3); err != nil {
		t.Fatalf("CreateCollection (idempotent): %v", err)
	}
	if c.CreateCollectionCalls != 1 {
		t.Fatalf("expected exactly one real creation, got %d", c.CreateCollectionCalls)
	}
	err := c.CreateCollection(ctx, "docs", 5)
	if !coreerr.Is(err, coreerr.KindDimensionMismatch) {
		t.Fatalf("expected dimension mismatch on re-create with different dim, got %v", err)
	}
}

func TestClient_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	c := New()
	_ = c.CreateCollection(ctx, "docs", 2)
	_ = c.Upsert(ctx, "docs", []vectorindex.Point{
		{ID: "doc1_0", Vector: []float32{1, 0}, Payload: map[string]any{vectorindex.PayloadDocumentID: "doc1", vectorindex.PayloadTenantID: "t1"}},
		{ID: "doc1_1", Vector: []float32{0, 1}, Payload: map[string]any{vectorindex.PayloadDocumentID: "doc1", vectorindex.PayloadTenantID: "t1"}},
		{ID: "doc2_0", Vector: []float32{1, 1}, Payload: map[string]any{vectorindex.PayloadDocumentID: "doc2", vectorindex.PayloadTenantID: "t1"}},
	})

	if err := c.DeleteDocument(ctx, "docs", "doc1", "t1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	n, err := c.Count(ctx, "docs", nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining point, got %d", n)
	}
}
