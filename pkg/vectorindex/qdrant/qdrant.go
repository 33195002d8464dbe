// Package qdrant implements vectorindex.Client against a Qdrant server over
// its gRPC API.
package qdrant

import (
	"context"
	"fmt"
	"sync"
	"time"

	qc "github.com/qdrant/go-client/qdrant"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/observe"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/resilience"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex"
)

// Config configures a Backend's connection and retry behavior (spec §6.4
// "vector_index" section).
type Config struct {
	Host    string
	Port    int
	APIKey  string
	UseTLS  bool

	// MaxRetries bounds retry attempts for a single RPC. Default: 3.
	MaxRetries int
	// MaxRetryDelayMs caps the backoff delay between retries. Default: 5000.
	MaxRetryDelayMs int
	// BatchSize caps how many points are upserted per request. Default: 100.
	BatchSize int

	// existsCacheTTL is the short membership-cache lifetime (spec §4.5
	// "a short membership cache avoids repeated 'exists' calls").
	existsCacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxRetryDelayMs <= 0 {
		c.MaxRetryDelayMs = 5000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.existsCacheTTL <= 0 {
		c.existsCacheTTL = 30 * time.Second
	}
	return c
}

type cacheEntry struct {
	exists    bool
	expiresAt time.Time
}

// Backend implements vectorindex.Client against a Qdrant gRPC endpoint.
// Collection creation is serialized by createMu; collection-existence checks
// are served from a short-lived cache to avoid a round trip per call.
type Backend struct {
	client *qc.Client
	cfg    Config

	createMu sync.Mutex

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	breaker *resilience.CircuitBreaker

	metrics *observe.Metrics
}

var _ vectorindex.Client = (*Backend)(nil)

// New dials a Qdrant server per cfg.
func New(cfg Config) (*Backend, error) {
	cfg = cfg.withDefaults()
	client, err := qc.NewClient(&qc.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, coreerr.New(coreerr.KindTransient, "qdrant.New", err)
	}
	return &Backend{
		client:  client,
		cfg:     cfg,
		cache:   make(map[string]cacheEntry),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "vectorindex.qdrant"}),
		metrics: observe.DefaultMetrics(),
	}, nil
}

// retry runs fn through the retry/backoff policy, itself guarded by a
// circuit breaker so a persistently unreachable Qdrant server fails fast
// instead of every caller paying the full retry budget on each call.
func (b *Backend) retry(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := b.breaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			MaxAttempts: b.cfg.MaxRetries,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    time.Duration(b.cfg.MaxRetryDelayMs) * time.Millisecond,
		}, nil, fn)
	})
	b.metrics.VectorIndexDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.metrics.RecordCoreError(ctx, "vectorindex.qdrant", coreerr.KindTransient.String())
		return coreerr.New(coreerr.KindTransient, op, err)
	}
	return nil
}

// CollectionExists implements vectorindex.Client.
func (b *Backend) CollectionExists(ctx context.Context, name string) (bool, error) {
	b.cacheMu.Lock()
	if e, ok := b.cache[name]; ok && time.Now().Before(e.expiresAt) {
		b.cacheMu.Unlock()
		return e.exists, nil
	}
	b.cacheMu.Unlock()

	var exists bool
	err := b.retry(ctx, "qdrant.CollectionExists", func() error {
		var err error
		exists, err = b.client.CollectionExists(ctx, name)
		return err
	})
	if err != nil {
		return false, err
	}

	b.cacheMu.Lock()
	b.cache[name] = cacheEntry{exists: exists, expiresAt: time.Now().Add(b.cfg.existsCacheTTL)}
	b.cacheMu.Unlock()
	return exists, nil
}

// CreateCollection implements vectorindex.Client: cosine distance, plus
// keyword payload indexes on "tenant_id" and "document_id" (spec §6.2).
// Creation is serialized by createMu so concurrent callers racing to create
// the same collection do not double-create it.
func (b *Backend) CreateCollection(ctx context.Context, name string, dim int) error {
	b.createMu.Lock()
	defer b.createMu.Unlock()

	exists, err := b.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := b.retry(ctx, "qdrant.CreateCollection", func() error {
		return b.client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: name,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(dim),
				Distance: qc.Distance_Cosine,
			}),
		})
	}); err != nil {
		return err
	}

	for _, field := range []string{vectorindex.PayloadTenantID, vectorindex.PayloadDocumentID} {
		field := field
		if err := b.retry(ctx, "qdrant.CreateFieldIndex", func() error {
			_, err := b.client.CreateFieldIndex(ctx, &qc.CreateFieldIndexCollection{
				CollectionName: name,
				FieldName:      field,
				FieldType:      qc.FieldType_FieldTypeKeyword.Enum(),
			})
			return err
		}); err != nil {
			return err
		}
	}

	b.cacheMu.Lock()
	b.cache[name] = cacheEntry{exists: true, expiresAt: time.Now().Add(b.cfg.existsCacheTTL)}
	b.cacheMu.Unlock()
	return nil
}

// Upsert implements vectorindex.Client, writing points in batches of
// cfg.BatchSize.
func (b *Backend) Upsert(ctx context.Context, collection string, points []vectorindex.Point) error {
	for start := 0; start < len(points); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := toPointStructs(points[start:end])
		if err := b.retry(ctx, "qdrant.Upsert", func() error {
			_, err := b.client.Upsert(ctx, &qc.UpsertPoints{
				CollectionName: collection,
				Points:         batch,
			})
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func toPointStructs(points []vectorindex.Point) []*qc.PointStruct {
	out := make([]*qc.PointStruct, len(points))
	for i, p := range points {
		out[i] = &qc.PointStruct{
			Id:      qc.NewID(p.ID),
			Vectors: qc.NewVectors(p.Vector...),
			Payload: qc.NewValueMap(p.Payload),
		}
	}
	return out
}

func toConditions(filter vectorindex.Filter) []*qc.Condition {
	conds := make([]*qc.Condition, 0, len(filter.Must))
	for _, c := range filter.Must {
		conds = append(conds, matchCondition(c))
	}
	return conds
}

func matchCondition(c vectorindex.Condition) *qc.Condition {
	switch v := c.Value.(type) {
	case string:
		return qc.NewMatch(c.Key, v)
	default:
		return qc.NewMatch(c.Key, fmt.Sprint(v))
	}
}

// Search implements vectorindex.Client, always AND-combining a tenant_id
// match condition with any caller-supplied extraFilter (spec §4.5).
func (b *Backend) Search(ctx context.Context, collection string, vector []float32, tenant string, limit int, scoreThreshold float32, extraFilter *vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	filter := vectorindex.Filter{Must: []vectorindex.Condition{{Key: vectorindex.PayloadTenantID, Value: tenant}}}
	if extraFilter != nil {
		filter = filter.And(extraFilter.Must...)
	}

	limitU := uint64(limit)
	var threshold *float32
	if scoreThreshold > 0 {
		threshold = &scoreThreshold
	}

	var scored []*qc.ScoredPoint
	if err := b.retry(ctx, "qdrant.Search", func() error {
		var err error
		scored, err = b.client.Query(ctx, &qc.QueryPoints{
			CollectionName: collection,
			Query:          qc.NewQuery(vector...),
			Filter:         &qc.Filter{Must: toConditions(filter)},
			Limit:          &limitU,
			ScoreThreshold: threshold,
			WithPayload:    qc.NewWithPayload(true),
		})
		return err
	}); err != nil {
		return nil, err
	}

	out := make([]vectorindex.SearchResult, len(scored))
	for i, sp := range scored {
		out[i] = vectorindex.SearchResult{
			ID:      pointIDString(sp.GetId()),
			Score:   sp.GetScore(),
			Payload: fromValueMap(sp.GetPayload()),
		}
	}
	return out, nil
}

// DeletePoints implements vectorindex.Client. When tenant is non-empty, the
// delete is expressed as a filter combining a HasId condition with the
// tenant_id match so a caller can never delete another tenant's point merely
// by guessing its id.
func (b *Backend) DeletePoints(ctx context.Context, collection string, ids []string, tenant string) error {
	pointIDs := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qc.NewID(id)
	}

	if tenant == "" {
		selector := qc.NewPointsSelectorIDs(pointIDs)
		return b.retry(ctx, "qdrant.Delete", func() error {
			_, err := b.client.Delete(ctx, &qc.DeletePoints{
				CollectionName: collection,
				Points:         selector,
			})
			return err
		})
	}

	filter := &qc.Filter{
		Must: []*qc.Condition{
			qc.NewHasID(pointIDs...),
			qc.NewMatch(vectorindex.PayloadTenantID, tenant),
		},
	}
	return b.retry(ctx, "qdrant.Delete", func() error {
		_, err := b.client.Delete(ctx, &qc.DeletePoints{
			CollectionName: collection,
			Points:         qc.NewPointsSelectorFilter(filter),
		})
		return err
	})
}

// DeleteByFilter implements vectorindex.Client.
func (b *Backend) DeleteByFilter(ctx context.Context, collection string, filter vectorindex.Filter) error {
	selector := qc.NewPointsSelectorFilter(&qc.Filter{Must: toConditions(filter)})
	return b.retry(ctx, "qdrant.Delete", func() error {
		_, err := b.client.Delete(ctx, &qc.DeletePoints{
			CollectionName: collection,
			Points:         selector,
		})
		return err
	})
}

// DeleteDocument implements vectorindex.Client.
func (b *Backend) DeleteDocument(ctx context.Context, collection, documentID, tenant string) error {
	filter := vectorindex.Filter{Must: []vectorindex.Condition{{Key: vectorindex.PayloadDocumentID, Value: documentID}}}
	if tenant != "" {
		filter = filter.And(vectorindex.Condition{Key: vectorindex.PayloadTenantID, Value: tenant})
	}
	return b.DeleteByFilter(ctx, collection, filter)
}

// Count implements vectorindex.Client.
func (b *Backend) Count(ctx context.Context, collection string, filter *vectorindex.Filter) (int, error) {
	var qf *qc.Filter
	if filter != nil {
		qf = &qc.Filter{Must: toConditions(*filter)}
	}
	var n uint64
	err := b.retry(ctx, "qdrant.Count", func() error {
		var err error
		n, err = b.client.Count(ctx, &qc.CountPoints{CollectionName: collection, Filter: qf})
		return err
	})
	return int(n), err
}

// ListCollections implements vectorindex.Client.
func (b *Backend) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := b.retry(ctx, "qdrant.ListCollections", func() error {
		var err error
		names, err = b.client.ListCollections(ctx)
		return err
	})
	return names, err
}

// CollectionInfo implements vectorindex.Client.
func (b *Backend) CollectionInfo(ctx context.Context, name string) (vectorindex.CollectionInfo, error) {
	var info *qc.CollectionInfo
	err := b.retry(ctx, "qdrant.GetCollectionInfo", func() error {
		var err error
		info, err = b.client.GetCollectionInfo(ctx, name)
		return err
	})
	if err != nil {
		return vectorindex.CollectionInfo{}, err
	}
	dim := 0
	if params := info.GetConfig().GetParams(); params != nil {
		if vp := params.GetVectorsConfig().GetParams(); vp != nil {
			dim = int(vp.GetSize())
		}
	}
	return vectorindex.CollectionInfo{
		Name:       name,
		Dimension:  dim,
		PointCount: int(info.GetPointsCount()),
	}, nil
}

func pointIDString(id *qc.PointId) string {
	if id == nil {
		return ""
	}
	if s := id.GetUuid(); s != "" {
		return s
	}
	return fmt.Sprint(id.GetNum())
}

func fromValueMap(payload map[string]*qc.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qc.Value) any {
	if v == nil {
		return nil
	}
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetIntegerValue() != 0:
		return v.GetIntegerValue()
	case v.GetDoubleValue() != 0:
		return v.GetDoubleValue()
	case v.GetBoolValue():
		return v.GetBoolValue()
	default:
		return nil
	}
}
