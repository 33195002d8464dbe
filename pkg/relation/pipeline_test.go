package relation_test

import (
	"context"
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/relation"
)

func entities() []relation.Entity {
	return []relation.Entity{
		{ID: "e1", TenantID: "t1", Type: "Person", Name: "Alice"},
		{ID: "e2", TenantID: "t1", Type: "Org", Name: "Acme"},
	}
}

func TestPipeline_Process_ValidatesAndReturns(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "a", results: []relation.Relation{
		{TenantID: "t1", SourceEntityID: "e1", TargetEntityID: "e2", RelationType: relation.WorksFor, Confidence: 0.9},
	}})

	p := relation.NewPipeline(r, relation.Config{}, nil)
	rels, err := p.Process(context.Background(), "Alice works for Acme.", entities(), "doc1", "t1", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("len(rels) = %d, want 1", len(rels))
	}
}

func TestPipeline_Process_DropsLowConfidence(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "a", results: []relation.Relation{
		{TenantID: "t1", SourceEntityID: "e1", TargetEntityID: "e2", RelationType: relation.WorksFor, Confidence: 0.1},
	}})

	p := relation.NewPipeline(r, relation.Config{MinConfidenceThreshold: 0.5}, nil)
	rels, err := p.Process(context.Background(), "text", entities(), "doc1", "t1", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rels) != 0 {
		t.Fatalf("len(rels) = %d, want 0", len(rels))
	}
}

func TestPipeline_Process_DropsSelfRelationByDefault(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "a", results: []relation.Relation{
		{TenantID: "t1", SourceEntityID: "e1", TargetEntityID: "e1", RelationType: relation.AssociatedWith, Confidence: 0.9},
	}})

	p := relation.NewPipeline(r, relation.Config{AllowSelfRelations: false}, nil)
	rels, err := p.Process(context.Background(), "text", entities(), "doc1", "t1", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rels) != 0 {
		t.Fatalf("len(rels) = %d, want 0", len(rels))
	}
}

func TestPipeline_Process_DeduplicatesKeepingHighestConfidence(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "a", results: []relation.Relation{
		{TenantID: "t1", SourceEntityID: "e1", TargetEntityID: "e2", RelationType: relation.WorksFor, Confidence: 0.7},
		{TenantID: "t1", SourceEntityID: "e1", TargetEntityID: "e2", RelationType: relation.WorksFor, Confidence: 0.9},
	}})

	p := relation.NewPipeline(r, relation.Config{}, nil)
	rels, err := p.Process(context.Background(), "text", entities(), "doc1", "t1", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("len(rels) = %d, want 1", len(rels))
	}
	if rels[0].Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", rels[0].Confidence)
	}
}

func TestPipeline_Process_ExtractorFailureDoesNotAbort(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "broken", err: errBroken})
	r.Register(&stubExtractor{name: "ok", results: []relation.Relation{
		{TenantID: "t1", SourceEntityID: "e1", TargetEntityID: "e2", RelationType: relation.WorksFor, Confidence: 0.9},
	}})

	p := relation.NewPipeline(r, relation.Config{}, nil)
	rels, err := p.Process(context.Background(), "text", entities(), "doc1", "t1", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("len(rels) = %d, want 1", len(rels))
	}
}

func TestPipeline_Process_EmptyFilterFallsBackToAll(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "pattern", results: []relation.Relation{
		{TenantID: "t1", SourceEntityID: "e1", TargetEntityID: "e2", RelationType: relation.WorksFor, Confidence: 0.9},
	}})

	p := relation.NewPipeline(r, relation.Config{}, nil)
	rels, err := p.Process(context.Background(), "text", entities(), "doc1", "t1", []string{"nonexistent-token"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("fallback-to-all: len(rels) = %d, want 1", len(rels))
	}
}

func TestPipeline_Process_RejectsEmptyText(t *testing.T) {
	p := relation.NewPipeline(relation.NewRegistry(), relation.Config{}, nil)
	_, err := p.Process(context.Background(), "", entities(), "doc1", "t1", nil)
	if err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestPipeline_Process_RejectsEmptyTenant(t *testing.T) {
	p := relation.NewPipeline(relation.NewRegistry(), relation.Config{}, nil)
	_, err := p.Process(context.Background(), "text", entities(), "doc1", "", nil)
	if err == nil {
		t.Fatal("expected error for empty tenant")
	}
}

var errBroken = &stubError{"extractor exploded"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
