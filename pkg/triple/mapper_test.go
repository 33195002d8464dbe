package triple_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/relation"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
)

func TestPredicateURI_ClosedType(t *testing.T) {
	got := triple.PredicateURI(relation.WorksFor, "")
	want := triple.OntologyBase + "/worksFor"
	if got != want {
		t.Errorf("PredicateURI = %q, want %q", got, want)
	}
}

func TestPredicateURI_DomainSpecificPercentEncodes(t *testing.T) {
	got := triple.PredicateURI(relation.DomainSpecific, "supplies to")
	want := triple.OntologyBase + "/domain/" + url.PathEscape("supplies to")
	if got != want {
		t.Errorf("PredicateURI = %q, want %q", got, want)
	}
	if got != triple.OntologyBase+"/domain/supplies%20to" {
		t.Errorf("expected %%20 for space (percent-encoding), got %q", got)
	}
}

func TestMap_DirectionalProducesOneTriple(t *testing.T) {
	r := relation.Relation{
		ID: "r1", TenantID: "t1", SourceEntityID: "alice", TargetEntityID: "acme",
		RelationType: relation.WorksFor, IsDirectional: true, Confidence: 0.9,
	}
	triples := triple.Map(r, "")
	if len(triples) != 1 {
		t.Fatalf("len(triples) = %d, want 1", len(triples))
	}
}

func TestMap_NonDirectionalProducesInverse(t *testing.T) {
	r := relation.Relation{
		ID: "r1", TenantID: "t1", SourceEntityID: "alice", TargetEntityID: "bob",
		RelationType: relation.AssociatedWith, IsDirectional: false, Confidence: 0.9,
	}
	triples := triple.Map(r, "")
	if len(triples) != 2 {
		t.Fatalf("len(triples) = %d, want 2", len(triples))
	}
	if triples[1].ID != "r1#inverse" {
		t.Errorf("inverse ID = %q, want r1#inverse", triples[1].ID)
	}
	if triples[1].SubjectID != triples[0].ObjectID || triples[1].ObjectID != triples[0].SubjectID {
		t.Error("expected inverse to swap subject/object")
	}
}

func TestMap_DefaultsToTenantGraph(t *testing.T) {
	r := relation.Relation{TenantID: "t1", SourceEntityID: "a", TargetEntityID: "b", RelationType: relation.Uses, IsDirectional: true}
	triples := triple.Map(r, "")
	if triples[0].GraphURI != triple.DefaultGraphURI("t1") {
		t.Errorf("GraphURI = %q", triples[0].GraphURI)
	}
}

func TestMap_MergesUserAttributesIntoProvenance(t *testing.T) {
	r := relation.Relation{
		ID: "r1", TenantID: "t1", SourceEntityID: "alice", TargetEntityID: "acme",
		RelationType: relation.WorksFor, IsDirectional: true, Confidence: 0.9,
		Attributes: map[string]any{
			"department": "engineering",
			"relation_id": "should-not-overwrite-reserved-key",
		},
	}
	triples := triple.Map(r, "")
	if got := triples[0].Provenance["department"]; got != "engineering" {
		t.Errorf("Provenance[department] = %v, want engineering", got)
	}
	if got := triples[0].Provenance["relation_id"]; got != "r1" {
		t.Errorf("Provenance[relation_id] = %v, want r1 (reserved key must not be overwritten by Attributes)", got)
	}
}

func TestMapper_ConvertAndStore(t *testing.T) {
	store := triple.NewMemStore(nil)
	m := triple.NewMapper(store)

	err := m.ConvertAndStore(context.Background(), []relation.Relation{
		{ID: "r1", TenantID: "t1", SourceEntityID: "alice", TargetEntityID: "acme", RelationType: relation.WorksFor, IsDirectional: true, Confidence: 0.8},
	}, "t1", "")
	if err != nil {
		t.Fatalf("ConvertAndStore: %v", err)
	}

	res, err := store.Query(context.Background(), "t1", triple.StructuralQuery{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", res.TotalCount)
	}
}
