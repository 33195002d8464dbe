package relation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/relation"
)

type stubExtractor struct {
	name    string
	results []relation.Relation
	err     error
}

func (s *stubExtractor) Name() string                   { return s.name }
func (s *stubExtractor) SupportedTypes() []relation.Type { return nil }
func (s *stubExtractor) Validate(source, target relation.Entity, relType relation.Type) bool {
	return true
}
func (s *stubExtractor) Extract(ctx context.Context, text string, entities []relation.Entity, sourceDocumentID, tenantID string) ([]relation.Relation, error) {
	return s.results, s.err
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := relation.NewRegistry()
	e := &stubExtractor{name: "pattern"}
	r.Register(e)

	got, err := r.Get("pattern")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name() != "pattern" {
		t.Errorf("Name() = %q", got.Name())
	}
}

func TestRegistry_GetUnregistered(t *testing.T) {
	r := relation.NewRegistry()
	_, err := r.Get("missing")
	if !errors.Is(err, relation.ErrExtractorNotRegistered) {
		t.Fatalf("err = %v, want ErrExtractorNotRegistered", err)
	}
}

func TestRegistry_AllPreservesRegistrationOrder(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "a"})
	r.Register(&stubExtractor{name: "b"})
	r.Register(&stubExtractor{name: "c"})

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("len(All()) = %d, want 3", len(all))
	}
	want := []string{"a", "b", "c"}
	for i, e := range all {
		if e.Name() != want[i] {
			t.Errorf("All()[%d].Name() = %q, want %q", i, e.Name(), want[i])
		}
	}
}

func TestRegistry_ReRegisterOverwritesButKeepsSlot(t *testing.T) {
	r := relation.NewRegistry()
	r.Register(&stubExtractor{name: "a", results: []relation.Relation{{SourceEntityID: "1"}}})
	r.Register(&stubExtractor{name: "b"})
	r.Register(&stubExtractor{name: "a", results: []relation.Relation{{SourceEntityID: "2"}}})

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("len(All()) = %d, want 2", len(all))
	}
	if all[0].Name() != "a" {
		t.Errorf("All()[0].Name() = %q, want a (slot preserved)", all[0].Name())
	}
}
