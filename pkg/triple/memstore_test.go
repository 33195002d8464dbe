package triple_test

import (
	"context"
	"testing"
	"time"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
)

func TestMemStore_AddTriple_AssignsIDAndNormalizesURIs(t *testing.T) {
	s := triple.NewMemStore(nil)
	got, err := s.AddTriple(context.Background(), "t1", triple.Triple{
		SubjectID:    "acme.com/alice",
		PredicateURI: "worksFor",
		ObjectID:     "acme.com",
	})
	if err != nil {
		t.Fatalf("AddTriple: %v", err)
	}
	if got.ID == "" {
		t.Fatal("expected generated ID")
	}
	if got.SubjectID != "http://acme.com/alice" {
		t.Errorf("SubjectID = %q", got.SubjectID)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
}

func TestMemStore_UpdateTriple_IncrementsVersion(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	t1, _ := s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "a", PredicateURI: "p", ObjectID: "b"})

	t1.ObjectID = "c"
	updated, err := s.UpdateTriple(ctx, "t1", t1)
	if err != nil {
		t.Fatalf("UpdateTriple: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}

	hist, err := s.History(ctx, "t1", t1.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("len(hist) = %d, want 2", len(hist))
	}
	if hist[0].ChangeType != triple.Update {
		t.Errorf("hist[0].ChangeType = %v, want Update (newest first)", hist[0].ChangeType)
	}
}

func TestMemStore_RemoveTriple_EmitsDeletionVersion(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	added, _ := s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "a", PredicateURI: "p", ObjectID: "b"})

	if err := s.RemoveTriple(ctx, "t1", added.ID); err != nil {
		t.Fatalf("RemoveTriple: %v", err)
	}
	res, err := s.Query(ctx, "t1", triple.StructuralQuery{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0", res.TotalCount)
	}
	hist, _ := s.History(ctx, "t1", added.ID, 0)
	if len(hist) != 2 || hist[0].ChangeType != triple.Deletion {
		t.Fatalf("expected Creation+Deletion history, got %+v", hist)
	}
}

func TestMemStore_TenantIsolation(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "a", PredicateURI: "p", ObjectID: "b"})
	s.AddTriple(ctx, "t2", triple.Triple{SubjectID: "x", PredicateURI: "p", ObjectID: "y"})

	res, err := s.Query(ctx, "t1", triple.StructuralQuery{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1 (tenant isolation)", res.TotalCount)
	}
}

func TestMemStore_VersionDiff_RequiresIncreasingRange(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	added, _ := s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "a", PredicateURI: "p", ObjectID: "b"})

	_, err := s.VersionDiff(ctx, "t1", added.ID, 2, 1)
	if err == nil {
		t.Fatal("expected InvalidArgument for from >= to")
	}

	added.ObjectID = "c"
	s.UpdateTriple(ctx, "t1", added)
	diff, err := s.VersionDiff(ctx, "t1", added.ID, 1, 2)
	if err != nil {
		t.Fatalf("VersionDiff: %v", err)
	}
	if !diff.Object.Changed {
		t.Error("expected Object.Changed = true")
	}
}

func TestMemStore_RestoreVersion(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	added, _ := s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "a", PredicateURI: "p", ObjectID: "b"})
	added.ObjectID = "c"
	s.UpdateTriple(ctx, "t1", added)

	restored, err := s.RestoreVersion(ctx, "t1", added.ID, 1, "user1", "rollback")
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.ObjectID != "http://b" {
		t.Errorf("ObjectID = %q, want restored value", restored.ObjectID)
	}
	if restored.Version != 3 {
		t.Errorf("Version = %d, want 3", restored.Version)
	}
	if restored.Provenance["RestoredByUser"] != "user1" {
		t.Error("expected RestoredByUser provenance key")
	}
}

func TestMemStore_QueryTemporal_AsOfDate(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	added, _ := s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "a", PredicateURI: "p", ObjectID: "b"})
	cutoff := time.Now().Add(time.Hour)

	res, err := s.QueryTemporal(ctx, "t1", triple.TemporalQuery{Mode: triple.TemporalAsOfDate, AsOfDate: cutoff})
	if err != nil {
		t.Fatalf("QueryTemporal: %v", err)
	}
	if len(res.Triples) != 1 || res.Triples[0].ID != added.ID {
		t.Fatalf("expected materialized triple, got %+v", res.Triples)
	}
}

func TestMemStore_Snapshot_CreateAndRestore(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "a", PredicateURI: "p", ObjectID: "b"})

	snap, err := s.CreateSnapshot(ctx, "t1", "before-wipe", nil)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if len(snap.FrozenTriples) != 1 {
		t.Fatalf("len(FrozenTriples) = %d, want 1", len(snap.FrozenTriples))
	}

	s.RemoveGraph(ctx, "t1", triple.DefaultGraphURI("t1"))
	res, _ := s.Query(ctx, "t1", triple.StructuralQuery{})
	if res.TotalCount != 0 {
		t.Fatalf("expected graph wiped, got %d triples", res.TotalCount)
	}

	if err := s.RestoreSnapshot(ctx, "t1", "before-wipe"); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
	res, _ = s.Query(ctx, "t1", triple.StructuralQuery{})
	if res.TotalCount != 1 {
		t.Fatalf("expected restored triple, got %d", res.TotalCount)
	}
}

func TestMemStore_Neighbors(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "alice", PredicateURI: "worksFor", ObjectID: "acme"})
	s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "acme", PredicateURI: "locatedIn", ObjectID: "ny"})

	direct, err := s.Neighbors(ctx, "t1", "alice", 1)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(direct) != 1 {
		t.Fatalf("depth 1: len = %d, want 1", len(direct))
	}

	twoHop, _ := s.Neighbors(ctx, "t1", "alice", 2)
	if len(twoHop) != 2 {
		t.Fatalf("depth 2: len = %d, want 2", len(twoHop))
	}
}

func TestMemStore_FindPath(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "alice", PredicateURI: "worksFor", ObjectID: "acme"})
	s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "acme", PredicateURI: "locatedIn", ObjectID: "ny"})

	path, err := s.FindPath(ctx, "t1", "alice", "ny", 3)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("len(path) = %d, want 2", len(path))
	}

	none, err := s.FindPath(ctx, "t1", "alice", "nowhere", 3)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty path, got %+v", none)
	}
}

func TestMemStore_ExecuteSPARQL_Select(t *testing.T) {
	s := triple.NewMemStore(nil)
	ctx := context.Background()
	s.AddTriple(ctx, "t1", triple.Triple{SubjectID: "alice", PredicateURI: "worksFor", ObjectID: "acme"})

	res, err := s.ExecuteSPARQL(ctx, "t1", "SELECT ?s ?o WHERE { ?s <http://worksFor> ?o }")
	if err != nil {
		t.Fatalf("ExecuteSPARQL: %v", err)
	}
	if len(res.Bindings) != 1 {
		t.Fatalf("len(Bindings) = %d, want 1", len(res.Bindings))
	}
	if res.Bindings[0]["?s"] != "http://alice" {
		t.Errorf("?s = %q", res.Bindings[0]["?s"])
	}
}
