package triple_test

import (
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
)

func TestExecuteSPARQLOver_Construct(t *testing.T) {
	triples := []triple.Triple{
		{SubjectID: "http://alice", PredicateURI: "http://worksFor", ObjectID: "http://acme"},
	}
	res, err := triple.ExecuteSPARQLOver(
		"CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }", triples)
	if err != nil {
		t.Fatalf("ExecuteSPARQLOver: %v", err)
	}
	if len(res.Triples) != 1 {
		t.Fatalf("len(Triples) = %d, want 1", len(res.Triples))
	}
	if res.Triples[0].SubjectID != "http://alice" {
		t.Errorf("SubjectID = %q", res.Triples[0].SubjectID)
	}
}

func TestExecuteSPARQLOver_RejectsUnsupportedForm(t *testing.T) {
	_, err := triple.ExecuteSPARQLOver("DESCRIBE ?s", nil)
	if err == nil {
		t.Fatal("expected error for unsupported query form")
	}
}

func TestExecuteSPARQLOver_LimitIsHonored(t *testing.T) {
	triples := []triple.Triple{
		{SubjectID: "http://a", PredicateURI: "http://p", ObjectID: "http://1"},
		{SubjectID: "http://a", PredicateURI: "http://p", ObjectID: "http://2"},
	}
	res, err := triple.ExecuteSPARQLOver("SELECT ?o WHERE { <http://a> <http://p> ?o } LIMIT 1", triples)
	if err != nil {
		t.Fatalf("ExecuteSPARQLOver: %v", err)
	}
	if len(res.Bindings) != 1 {
		t.Fatalf("len(Bindings) = %d, want 1", len(res.Bindings))
	}
}
