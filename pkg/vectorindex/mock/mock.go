// Package mock provides an in-memory, fully functional vectorindex.Client
// test double, so that packages depending on C7 (the Document Embedder, the
// Relation Mapping Pipeline's auto-convert path's siblings) can be tested
// without a live Qdrant or Postgres instance.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex"
)

type collection struct {
	dim    int
	points map[string]vectorindex.Point
}

// Client is an in-memory vectorindex.Client. Zero value is ready to use.
type Client struct {
	mu          sync.Mutex
	collections map[string]*collection

	// CreateCollectionCalls counts how many times CreateCollection actually
	// created a new collection (idempotent re-creation does not count).
	CreateCollectionCalls int
}

var _ vectorindex.Client = (*Client)(nil)

// New constructs an empty Client.
func New() *Client {
	return &Client{collections: make(map[string]*collection)}
}

// CollectionExists implements vectorindex.Client.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.collections[name]
	return ok, nil
}

// CreateCollection implements vectorindex.Client, rejecting a dimension
// mismatch against an already-created collection (spec §3.2.7).
func (c *Client) CreateCollection(ctx context.Context, name string, dim int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.collections[name]; ok {
		if existing.dim != dim {
			return coreerr.New(coreerr.KindDimensionMismatch, "mock.CreateCollection", nil)
		}
		return nil
	}
	c.collections[name] = &collection{dim: dim, points: make(map[string]vectorindex.Point)}
	c.CreateCollectionCalls++
	return nil
}

func (c *Client) collectionLocked(name string) (*collection, error) {
	col, ok := c.collections[name]
	if !ok {
		return nil, coreerr.New(coreerr.KindNotFound, "mock", nil)
	}
	return col, nil
}

// Upsert implements vectorindex.Client, rejecting any point whose vector
// length does not match the collection's configured dimension.
func (c *Client) Upsert(ctx context.Context, collectionName string, points []vectorindex.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.collectionLocked(collectionName)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != col.dim {
			return coreerr.New(coreerr.KindDimensionMismatch, "mock.Upsert", nil)
		}
		col.points[p.ID] = p
	}
	return nil
}

func matchesFilter(p vectorindex.Point, f vectorindex.Filter) bool {
	for _, cond := range f.Must {
		v, ok := p.Payload[cond.Key]
		if !ok || v != cond.Value {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Search implements vectorindex.Client, always AND-restricting to
// payload["tenant_id"] == tenant regardless of extraFilter (spec §4.5, §8
// scenario 6).
func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, tenant string, limit int, scoreThreshold float32, extraFilter *vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.collectionLocked(collectionName)
	if err != nil {
		return nil, err
	}

	filter := vectorindex.Filter{Must: []vectorindex.Condition{{Key: vectorindex.PayloadTenantID, Value: tenant}}}
	if extraFilter != nil {
		filter = filter.And(extraFilter.Must...)
	}

	var results []vectorindex.SearchResult
	for _, p := range col.points {
		if !matchesFilter(p, filter) {
			continue
		}
		score := cosine(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, vectorindex.SearchResult{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeletePoints implements vectorindex.Client.
func (c *Client) DeletePoints(ctx context.Context, collectionName string, ids []string, tenant string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.collectionLocked(collectionName)
	if err != nil {
		return err
	}
	for _, id := range ids {
		p, ok := col.points[id]
		if !ok {
			continue
		}
		if tenant != "" && p.Payload[vectorindex.PayloadTenantID] != tenant {
			continue
		}
		delete(col.points, id)
	}
	return nil
}

// DeleteByFilter implements vectorindex.Client.
func (c *Client) DeleteByFilter(ctx context.Context, collectionName string, filter vectorindex.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.collectionLocked(collectionName)
	if err != nil {
		return err
	}
	for id, p := range col.points {
		if matchesFilter(p, filter) {
			delete(col.points, id)
		}
	}
	return nil
}

// DeleteDocument implements vectorindex.Client.
func (c *Client) DeleteDocument(ctx context.Context, collectionName, documentID, tenant string) error {
	filter := vectorindex.Filter{Must: []vectorindex.Condition{{Key: vectorindex.PayloadDocumentID, Value: documentID}}}
	if tenant != "" {
		filter = filter.And(vectorindex.Condition{Key: vectorindex.PayloadTenantID, Value: tenant})
	}
	return c.DeleteByFilter(ctx, collectionName, filter)
}

// Count implements vectorindex.Client.
func (c *Client) Count(ctx context.Context, collectionName string, filter *vectorindex.Filter) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.collectionLocked(collectionName)
	if err != nil {
		return 0, err
	}
	if filter == nil {
		return len(col.points), nil
	}
	n := 0
	for _, p := range col.points {
		if matchesFilter(p, *filter) {
			n++
		}
	}
	return n, nil
}

// ListCollections implements vectorindex.Client.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.collections))
	for name := range c.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// CollectionInfo implements vectorindex.Client.
func (c *Client) CollectionInfo(ctx context.Context, name string) (vectorindex.CollectionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.collectionLocked(name)
	if err != nil {
		return vectorindex.CollectionInfo{}, err
	}
	return vectorindex.CollectionInfo{Name: name, Dimension: col.dim, PointCount: len(col.points)}, nil
}
