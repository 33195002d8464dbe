// Package pgvector implements vectorindex.Client atop PostgreSQL with the
// pgvector extension, for deployments without a standalone Qdrant instance.
// A "collection" maps to one table, named pgvcol_<collection>, so that
// distinct collections (and their distinct vector dimensions) coexist in one
// database.
package pgvector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/observe"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/vectorindex"
)

// Backend implements vectorindex.Client over a pgxpool.Pool. Collection
// creation (table DDL) is serialized by createMu, matching the concurrency
// requirement in spec §4.5.
type Backend struct {
	pool *pgxpool.Pool

	createMu sync.Mutex
	mu       sync.RWMutex
	known    map[string]bool // collection -> table created

	metrics *observe.Metrics
}

var _ vectorindex.Client = (*Backend)(nil)

// New wraps an already-connected pool.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool, known: make(map[string]bool), metrics: observe.DefaultMetrics()}
}

var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func tableName(collection string) (string, error) {
	if !validName.MatchString(collection) {
		return "", coreerr.New(coreerr.KindInvalidArgument, "pgvector", fmt.Errorf("invalid collection name %q", collection))
	}
	return "pgvcol_" + collection, nil
}

func (b *Backend) record(ctx context.Context, op string, start time.Time, err error) error {
	b.metrics.VectorIndexDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.metrics.RecordCoreError(ctx, "vectorindex.pgvector", coreerr.KindTransient.String())
		return coreerr.New(coreerr.KindTransient, op, err)
	}
	return nil
}

// CollectionExists implements vectorindex.Client.
func (b *Backend) CollectionExists(ctx context.Context, name string) (bool, error) {
	b.mu.RLock()
	if b.known[name] {
		b.mu.RUnlock()
		return true, nil
	}
	b.mu.RUnlock()

	table, err := tableName(name)
	if err != nil {
		return false, err
	}
	var exists bool
	start := time.Now()
	err = b.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
	if err := b.record(ctx, "pgvector.CollectionExists", start, err); err != nil {
		return false, err
	}
	if exists {
		b.mu.Lock()
		b.known[name] = true
		b.mu.Unlock()
	}
	return exists, nil
}

// CreateCollection implements vectorindex.Client: a table with a fixed-width
// pgvector column, an HNSW cosine index, and btree indexes on the reserved
// tenant_id/document_id payload keys (spec §6.2 payload indexes, expressed
// here as real SQL columns for efficient filtering).
func (b *Backend) CreateCollection(ctx context.Context, name string, dim int) error {
	b.createMu.Lock()
	defer b.createMu.Unlock()

	table, err := tableName(name)
	if err != nil {
		return err
	}
	if exists, err := b.CollectionExists(ctx, name); err != nil || exists {
		return err
	}

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
    id          TEXT         PRIMARY KEY,
    embedding   vector(%[2]d) NOT NULL,
    tenant_id   TEXT         NOT NULL DEFAULT '',
    document_id TEXT         NOT NULL DEFAULT '',
    payload     JSONB        NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_%[1]s_tenant_id ON %[1]s (tenant_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_document_id ON %[1]s (document_id);
`, table, dim)

	start := time.Now()
	_, err = b.pool.Exec(ctx, ddl)
	if err := b.record(ctx, "pgvector.CreateCollection", start, err); err != nil {
		return err
	}
	b.mu.Lock()
	b.known[name] = true
	b.mu.Unlock()
	return nil
}

// Upsert implements vectorindex.Client.
func (b *Backend) Upsert(ctx context.Context, collection string, points []vectorindex.Point) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, tenant_id, document_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    embedding   = EXCLUDED.embedding,
		    tenant_id   = EXCLUDED.tenant_id,
		    document_id = EXCLUDED.document_id,
		    payload     = EXCLUDED.payload`, table)

	start := time.Now()
	batch := &pgx.Batch{}
	for _, p := range points {
		tenant, _ := p.Payload[vectorindex.PayloadTenantID].(string)
		docID, _ := p.Payload[vectorindex.PayloadDocumentID].(string)
		batch.Queue(q, p.ID, pgv.NewVector(p.Vector), tenant, docID, p.Payload)
	}
	br := b.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return b.record(ctx, "pgvector.Upsert", start, err)
		}
	}
	return b.record(ctx, "pgvector.Upsert", start, nil)
}

// argBuilder mirrors the donor's positional-placeholder idiom.
type argBuilder struct{ args []any }

func (a *argBuilder) next(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func whereFromFilter(ab *argBuilder, filter vectorindex.Filter) string {
	if len(filter.Must) == 0 {
		return ""
	}
	var conds []string
	for _, c := range filter.Must {
		if c.Key == vectorindex.PayloadTenantID || c.Key == vectorindex.PayloadDocumentID {
			conds = append(conds, c.Key+" = "+ab.next(c.Value))
			continue
		}
		conds = append(conds, "payload->>"+quoteLiteral(c.Key)+" = "+ab.next(fmt.Sprint(c.Value)))
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Search implements vectorindex.Client: nearest neighbors by cosine distance
// (pgvector's <=> operator), always AND-restricted to tenant_id = tenant.
func (b *Backend) Search(ctx context.Context, collection string, vector []float32, tenant string, limit int, scoreThreshold float32, extraFilter *vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}

	filter := vectorindex.Filter{Must: []vectorindex.Condition{{Key: vectorindex.PayloadTenantID, Value: tenant}}}
	if extraFilter != nil {
		filter = filter.And(extraFilter.Must...)
	}

	ab := &argBuilder{}
	queryVecArg := ab.next(pgv.NewVector(vector))
	where := whereFromFilter(ab, filter)
	limitArg := ab.next(limit)

	q := fmt.Sprintf(`
		SELECT id, payload, 1 - (embedding <=> %s) AS score
		FROM   %s
		%s
		ORDER  BY embedding <=> %s
		LIMIT  %s`, queryVecArg, table, where, queryVecArg, limitArg)

	start := time.Now()
	rows, err := b.pool.Query(ctx, q, ab.args...)
	if err := b.record(ctx, "pgvector.Search", start, err); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vectorindex.SearchResult
	for rows.Next() {
		var (
			id      string
			payload map[string]any
			score   float32
		)
		if err := rows.Scan(&id, &payload, &score); err != nil {
			return nil, coreerr.New(coreerr.KindInternal, "pgvector.Search", err)
		}
		if score < scoreThreshold {
			continue
		}
		out = append(out, vectorindex.SearchResult{ID: id, Score: score, Payload: payload})
	}
	return out, rows.Err()
}

// DeletePoints implements vectorindex.Client.
func (b *Backend) DeletePoints(ctx context.Context, collection string, ids []string, tenant string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	ab := &argBuilder{}
	idsArg := ab.next(ids)
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ANY(%s)", table, idsArg)
	if tenant != "" {
		q += " AND tenant_id = " + ab.next(tenant)
	}
	start := time.Now()
	_, err = b.pool.Exec(ctx, q, ab.args...)
	return b.record(ctx, "pgvector.DeletePoints", start, err)
}

// DeleteByFilter implements vectorindex.Client.
func (b *Backend) DeleteByFilter(ctx context.Context, collection string, filter vectorindex.Filter) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	ab := &argBuilder{}
	where := whereFromFilter(ab, filter)
	q := fmt.Sprintf("DELETE FROM %s %s", table, where)
	start := time.Now()
	_, err = b.pool.Exec(ctx, q, ab.args...)
	return b.record(ctx, "pgvector.DeleteByFilter", start, err)
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
	table, err := tableName(collection)
	if err != nil {
		return 0, err
	}
	ab := &argBuilder{}
	where := ""
	if filter != nil {
		where = whereFromFilter(ab, *filter)
	}
	q := fmt.Sprintf("SELECT count(*) FROM %s %s", table, where)
	var n int
	start := time.Now()
	err = b.pool.QueryRow(ctx, q, ab.args...).Scan(&n)
	return n, b.record(ctx, "pgvector.Count", start, err)
}

// ListCollections implements vectorindex.Client.
func (b *Backend) ListCollections(ctx context.Context) ([]string, error) {
	start := time.Now()
	rows, err := b.pool.Query(ctx, `SELECT table_name FROM information_schema.tables WHERE table_name LIKE 'pgvcol_%'`)
	if err := b.record(ctx, "pgvector.ListCollections", start, err); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, coreerr.New(coreerr.KindInternal, "pgvector.ListCollections", err)
		}
		out = append(out, strings.TrimPrefix(table, "pgvcol_"))
	}
	return out, rows.Err()
}

// CollectionInfo implements vectorindex.Client.
func (b *Backend) CollectionInfo(ctx context.Context, name string) (vectorindex.CollectionInfo, error) {
	table, err := tableName(name)
	if err != nil {
		return vectorindex.CollectionInfo{}, err
	}

	var count int
	start := time.Now()
	err = b.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count)
	if err := b.record(ctx, "pgvector.CollectionInfo", start, err); err != nil {
		return vectorindex.CollectionInfo{}, err
	}

	var dim int
	err = b.pool.QueryRow(ctx, `
		SELECT atttypmod
		FROM   pg_attribute
		WHERE  attrelid = $1::regclass AND attname = 'embedding'`, table).Scan(&dim)
	if err != nil {
		dim = 0
	}

	return vectorindex.CollectionInfo{Name: name, Dimension: dim, PointCount: count}, nil
}
