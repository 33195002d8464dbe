package triple

import "context"

// Store is the Versioned Triple Store (C4) contract: durable or in-memory
// storage of Triples keyed by (tenant_id, id), graph-scoped access,
// structural/SPARQL/temporal query, snapshots, and per-triple version
// history.
type Store interface {
	AddTriple(ctx context.Context, tenantID string, t Triple) (Triple, error)
	AddTriples(ctx context.Context, tenantID string, ts []Triple) (int, error)
	UpdateTriple(ctx context.Context, tenantID string, t Triple) (Triple, error)
	RemoveTriple(ctx context.Context, tenantID, id string) error

	Query(ctx context.Context, tenantID string, q StructuralQuery) (QueryResult, error)
	ExecuteSPARQL(ctx context.Context, tenantID, query string) (SPARQLResult, error)

	CreateGraph(ctx context.Context, tenantID, uri string) error
	RemoveGraph(ctx context.Context, tenantID, uri string) error

	Statistics(ctx context.Context, tenantID string) (Statistics, error)

	History(ctx context.Context, tenantID, tripleID string, max int) ([]TripleVersion, error)
	Version(ctx context.Context, tenantID, tripleID string, n int) (TripleVersion, error)
	VersionDiff(ctx context.Context, tenantID, tripleID string, fromN, toN int) (Diff, error)
	RestoreVersion(ctx context.Context, tenantID, tripleID string, n int, user, comment string) (Triple, error)

	QueryTemporal(ctx context.Context, tenantID string, q TemporalQuery) (TemporalResult, error)

	CreateSnapshot(ctx context.Context, tenantID, name string, graphURIs []string) (Snapshot, error)
	RestoreSnapshot(ctx context.Context, tenantID, name string) error
	ListSnapshots(ctx context.Context, tenantID string) ([]Snapshot, error)

	// Neighbors and FindPath are supplemental graph-traversal operations not
	// named by the versioned-store contract itself but useful atop it.
	Neighbors(ctx context.Context, tenantID, entityID string, depth int) ([]Triple, error)
	FindPath(ctx context.Context, tenantID, fromID, toID string, maxDepth int) ([]Triple, error)
}
