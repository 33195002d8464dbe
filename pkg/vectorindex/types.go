// Package vectorindex implements the Vector Index Client contract (C7): a
// typed, tenant-isolated client over a remote vector index operating in
// units of points (id, vector, payload) grouped into collections.
package vectorindex

import "context"

// ReservedPayloadKeys are the payload field names the Document Embedder
// (C8) writes and that every Client backend must treat as reserved (spec
// §6.2): "text", "section", "document_id", "document_title", "chunk_index",
// "tenant_id", "created_at".
const (
	PayloadText           = "text"
	PayloadSection        = "section"
	PayloadDocumentID     = "document_id"
	PayloadDocumentTitle  = "document_title"
	PayloadChunkIndex     = "chunk_index"
	PayloadTenantID       = "tenant_id"
	PayloadCreatedAt      = "created_at"
)

// Point is a single vector index record: an identifier, its embedding
// vector, and an arbitrary payload. Payload should carry "tenant_id" when
// tenant isolation is desired (spec §4.5).
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is one ranked hit returned by Client.Search.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Condition is a single equality match clause. Conditions within a Filter
// are AND-combined (spec §4.5).
type Condition struct {
	Key   string
	Value any
}

// Filter is a conjunction of Conditions. Client.Search always injects a
// tenant_id condition in addition to any caller-supplied Filter.
type Filter struct {
	Must []Condition
}

// And returns a new Filter containing every condition of f plus extra,
// leaving both inputs unmodified.
func (f Filter) And(extra ...Condition) Filter {
	out := Filter{Must: make([]Condition, 0, len(f.Must)+len(extra))}
	out.Must = append(out.Must, f.Must...)
	out.Must = append(out.Must, extra...)
	return out
}

// CollectionInfo summarizes a collection's configuration and size.
type CollectionInfo struct {
	Name       string
	Dimension  int
	PointCount int
}

// Client is the typed contract over a remote vector index (spec §4.5, §6.2).
// Implementations must be safe for concurrent use and must serialize
// collection creation per (collection name).
type Client interface {
	// CollectionExists reports whether name has been created. Implementations
	// may cache a positive result for a short duration to avoid repeated
	// round trips (spec §4.5 concurrency: "a short membership cache").
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates name with cosine distance and the given
	// vector dimension, plus keyword payload indexes for "tenant_id" and
	// "document_id" (spec §6.2). Collection creation is serialized by a
	// mutex per implementation.
	CreateCollection(ctx context.Context, name string, dim int) error

	// Upsert writes points into collection. The qdrant backend sends them in
	// batches of its configured batch size (default 100); the pgvector
	// backend queues every point in a single pgx batch.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search finds the limit nearest points to vector in collection, always
	// AND-restricted to payload tenant_id == tenant, optionally further
	// restricted by extraFilter and a minimum score threshold.
	Search(ctx context.Context, collection string, vector []float32, tenant string, limit int, scoreThreshold float32, extraFilter *Filter) ([]SearchResult, error)

	// DeletePoints removes the given point ids from collection, restricted to
	// tenant when non-empty.
	DeletePoints(ctx context.Context, collection string, ids []string, tenant string) error

	// DeleteByFilter removes every point in collection matching filter.
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error

	// DeleteDocument removes every point belonging to documentID, restricted
	// to tenant when non-empty.
	DeleteDocument(ctx context.Context, collection, documentID, tenant string) error

	// Count reports how many points in collection match filter (all points
	// when filter is nil).
	Count(ctx context.Context, collection string, filter *Filter) (int, error)

	// ListCollections lists every known collection name.
	ListCollections(ctx context.Context) ([]string, error)

	// CollectionInfo reports name's configuration and size.
	CollectionInfo(ctx context.Context, name string) (CollectionInfo, error)
}
