// Package triple implements the Triple Mapper (C3) and the Versioned Triple
// Store (C4): subject-predicate-object statements with full version history,
// temporal queries, snapshots, and a minimal SPARQL SELECT/CONSTRUCT subset.
package triple

import "time"

// OntologyBase is the root namespace every fixed-mapping predicate URI is
// built from.
const OntologyBase = "http://smartinsight.com/ontology"

// ChangeType classifies a TripleVersion's mutation kind.
type ChangeType string

const (
	Creation    ChangeType = "Creation"
	Update      ChangeType = "Update"
	Deletion    ChangeType = "Deletion"
	Restoration ChangeType = "Restoration"
)

// Triple is an RDF-style statement carrying confidence, provenance, and
// versioning metadata. Identity is by ID within TenantID.
type Triple struct {
	ID               string
	TenantID         string
	SubjectID        string
	PredicateURI     string
	ObjectID         string
	IsLiteral        bool
	LiteralDataType  string
	LanguageTag      string
	GraphURI         string
	Confidence       float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SourceDocumentID string
	IsVerified       bool
	Version          int
	Provenance       map[string]any
}

// TripleVersion is a historical record carrying the same fields as a Triple
// at version VersionNumber, plus the metadata describing the change.
type TripleVersion struct {
	Triple
	TripleID        string
	VersionNumber   int
	ChangeType      ChangeType
	ChangedByUserID string
	ChangeComment   string
}

// Graph is a named container of triples identified by (TenantID, URI); the
// unit of snapshot and bulk removal.
type Graph struct {
	TenantID string
	URI      string
}

// Snapshot is an immutable frozen copy of a tenant's graphs at a point in
// time, identified by (TenantID, Name).
type Snapshot struct {
	Name          string
	TenantID      string
	CreatedAt     time.Time
	GraphURIs     []string // empty/nil means "all"
	FrozenTriples []Triple
}

// Statistics summarizes a tenant's triple store contents.
type Statistics struct {
	GraphCount           int
	TripleCount          int
	DistinctSubjects     int
	DistinctPredicates   int
	DistinctObjects      int
	LiteralCount         int
	VerifiedCount        int
	MeanConfidence       float64
	LastUpdated          time.Time
}
