package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
)

const tripleColumns = `subject_id, predicate_uri, object_id, is_literal, literal_data_type,
	       language_tag, graph_uri, confidence, created_at, updated_at,
	       source_document_id, is_verified, version, provenance`

// scanner is satisfied by both pgx.Row (QueryRow) and pgx.CollectableRow
// (pgx.CollectRows), so the tripleColumns scan logic is written once and
// reused from either call style.
type scanner interface {
	Scan(dest ...any) error
}

func scanTripleRow(row scanner) (triple.Triple, error) {
	var t triple.Triple
	var provJSON []byte
	if err := row.Scan(
		&t.SubjectID, &t.PredicateURI, &t.ObjectID, &t.IsLiteral, &t.LiteralDataType,
		&t.LanguageTag, &t.GraphURI, &t.Confidence, &t.CreatedAt, &t.UpdatedAt,
		&t.SourceDocumentID, &t.IsVerified, &t.Version, &provJSON,
	); err != nil {
		return triple.Triple{}, err
	}
	if len(provJSON) > 0 {
		_ = json.Unmarshal(provJSON, &t.Provenance)
	}
	if t.Provenance == nil {
		t.Provenance = map[string]any{}
	}
	return t, nil
}

func scanTriple(row pgx.CollectableRow) (triple.Triple, error) {
	return scanTripleRow(row)
}

// AddTriple implements triple.Store. The insert and its version-1 record are
// written in the same transaction: a version-insert failure rolls back the
// triple insert too.
func (s *Store) AddTriple(ctx context.Context, tenantID string, t triple.Triple) (triple.Triple, error) {
	if tenantID == "" {
		return triple.Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.AddTriple", errEmptyTenant)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.AddTriple", err)
	}
	defer tx.Rollback(ctx)

	if t.ID == "" {
		id, err := generateID()
		if err != nil {
			return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.AddTriple", err)
		}
		t.ID = id
	}
	t.TenantID = tenantID
	if t.GraphURI == "" {
		t.GraphURI = triple.DefaultGraphURI(tenantID)
	}
	if !t.IsLiteral {
		t.SubjectID = triple.NormalizeURI(t.SubjectID)
		t.ObjectID = triple.NormalizeURI(t.ObjectID)
	}
	t.PredicateURI = triple.NormalizeURI(t.PredicateURI)
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Version = 1

	if err := insertTriple(ctx, tx, t); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.AddTriple", err)
	}
	if err := upsertGraph(ctx, tx, tenantID, t.GraphURI); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.AddTriple", err)
	}
	if err := insertVersion(ctx, tx, t, triple.Creation, "", ""); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.AddTriple", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.AddTriple", err)
	}
	s.metrics.RecordTripleWritten(ctx, string(triple.Creation))
	return t, nil
}

// AddTriples implements triple.Store, each element in its own transaction;
// a single element's failure does not abort the batch.
func (s *Store) AddTriples(ctx context.Context, tenantID string, ts []triple.Triple) (int, error) {
	if tenantID == "" {
		return 0, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.AddTriples", errEmptyTenant)
	}
	var firstErr error
	count := 0
	for _, t := range ts {
		if _, err := s.AddTriple(ctx, tenantID, t); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		count++
	}
	return count, firstErr
}

// UpdateTriple implements triple.Store.
func (s *Store) UpdateTriple(ctx context.Context, tenantID string, t triple.Triple) (triple.Triple, error) {
	if tenantID == "" {
		return triple.Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.UpdateTriple", errEmptyTenant)
	}
	if t.ID == "" {
		return triple.Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.UpdateTriple", errEmptyID)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.UpdateTriple", err)
	}
	defer tx.Rollback(ctx)

	prev, err := fetchTripleForUpdate(ctx, tx, tenantID, t.ID)
	if err != nil {
		return triple.Triple{}, err
	}

	t.TenantID = tenantID
	if t.GraphURI == "" {
		t.GraphURI = prev.GraphURI
	}
	if !t.IsLiteral {
		t.SubjectID = triple.NormalizeURI(t.SubjectID)
		t.ObjectID = triple.NormalizeURI(t.ObjectID)
	}
	t.PredicateURI = triple.NormalizeURI(t.PredicateURI)
	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = time.Now()
	t.Version = prev.Version + 1

	if err := updateTripleRow(ctx, tx, tenantID, t); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.UpdateTriple", err)
	}
	if err := upsertGraph(ctx, tx, tenantID, t.GraphURI); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.UpdateTriple", err)
	}
	if err := insertVersion(ctx, tx, t, triple.Update, "", ""); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.UpdateTriple", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.UpdateTriple", err)
	}
	s.metrics.RecordTripleWritten(ctx, string(triple.Update))
	return t, nil
}

// RemoveTriple implements triple.Store.
func (s *Store) RemoveTriple(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.RemoveTriple", errEmptyTenant)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveTriple", err)
	}
	defer tx.Rollback(ctx)

	prev, err := fetchTripleForUpdate(ctx, tx, tenantID, id)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM triples WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveTriple", err)
	}

	deleted := prev
	deleted.Version = prev.Version + 1
	deleted.UpdatedAt = time.Now()
	if err := insertVersion(ctx, tx, deleted, triple.Deletion, "", ""); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveTriple", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveTriple", err)
	}
	s.metrics.RecordTripleWritten(ctx, string(triple.Deletion))
	return nil
}

// Query implements triple.Store.
func (s *Store) Query(ctx context.Context, tenantID string, q triple.StructuralQuery) (triple.QueryResult, error) {
	start := time.Now()
	if tenantID == "" {
		return triple.QueryResult{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.Query", errEmptyTenant)
	}

	where, args := structuralWhere(tenantID, q)

	countSQL := "SELECT count(*) FROM triples WHERE " + where
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return triple.QueryResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.Query", err)
	}

	order := orderByClause(q.SortBy, q.SortAscending)
	pageSQL := fmt.Sprintf("SELECT id, tenant_id, %s FROM triples WHERE %s %s", tripleColumns, where, order)
	pageArgs := append([]any{}, args...)
	if q.Limit > 0 {
		pageArgs = append(pageArgs, q.Limit)
		pageSQL += fmt.Sprintf(" LIMIT $%d", len(pageArgs))
	}
	if q.Offset > 0 {
		pageArgs = append(pageArgs, q.Offset)
		pageSQL += fmt.Sprintf(" OFFSET $%d", len(pageArgs))
	}

	rows, err := s.pool.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return triple.QueryResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.Query", err)
	}
	triples, err := pgx.CollectRows(rows, scanTripleWithIDs)
	if err != nil {
		return triple.QueryResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.Query", err)
	}

	return triple.QueryResult{
		Triples:     triples,
		TotalCount:  total,
		HasMore:     q.Offset+len(triples) < total,
		QueryTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

func scanTripleWithIDs(row pgx.CollectableRow) (triple.Triple, error) {
	var t triple.Triple
	var provJSON []byte
	if err := row.Scan(
		&t.ID, &t.TenantID,
		&t.SubjectID, &t.PredicateURI, &t.ObjectID, &t.IsLiteral, &t.LiteralDataType,
		&t.LanguageTag, &t.GraphURI, &t.Confidence, &t.CreatedAt, &t.UpdatedAt,
		&t.SourceDocumentID, &t.IsVerified, &t.Version, &provJSON,
	); err != nil {
		return triple.Triple{}, err
	}
	if len(provJSON) > 0 {
		_ = json.Unmarshal(provJSON, &t.Provenance)
	}
	if t.Provenance == nil {
		t.Provenance = map[string]any{}
	}
	return t, nil
}

// structuralWhere builds the WHERE clause (without the "WHERE" keyword) and
// positional args for q, always anchored on tenant_id.
func structuralWhere(tenantID string, q triple.StructuralQuery) (string, []any) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	conditions := []string{"tenant_id = " + next(tenantID)}
	if q.SubjectID != "" {
		conditions = append(conditions, "subject_id = "+next(q.SubjectID))
	}
	if q.PredicateURI != "" {
		conditions = append(conditions, "predicate_uri = "+next(q.PredicateURI))
	}
	if q.ObjectID != "" {
		conditions = append(conditions, "object_id = "+next(q.ObjectID))
	}
	if q.GraphURI != "" {
		conditions = append(conditions, "graph_uri = "+next(q.GraphURI))
	}
	if q.HasMinConfidence {
		conditions = append(conditions, "confidence >= "+next(q.MinConfidence))
	}
	if q.IsVerified != nil {
		conditions = append(conditions, "is_verified = "+next(*q.IsVerified))
	}
	if q.SourceDocumentID != "" {
		conditions = append(conditions, "source_document_id = "+next(q.SourceDocumentID))
	}
	if q.CreatedAfter != nil {
		conditions = append(conditions, "created_at > "+next(*q.CreatedAfter))
	}
	if q.CreatedBefore != nil {
		conditions = append(conditions, "created_at < "+next(*q.CreatedBefore))
	}
	return strings.Join(conditions, " AND "), args
}

func orderByClause(by triple.SortField, ascending bool) string {
	col := "created_at"
	switch by {
	case triple.SortUpdatedAt:
		col = "updated_at"
	case triple.SortConfidence:
		col = "confidence"
	case triple.SortSubjectID:
		col = "subject_id"
	case triple.SortPredicateURI:
		col = "predicate_uri"
	case triple.SortObjectID:
		col = "object_id"
	case triple.SortID:
		col = "id"
	case triple.SortVersion:
		col = "version"
	}
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s", col, dir)
}

// ExecuteSPARQL implements triple.Store. As with MemStore, the tenant filter
// is enforced structurally: the query text is only evaluated against
// tenantID's own rows, fetched from the database up front.
func (s *Store) ExecuteSPARQL(ctx context.Context, tenantID, query string) (triple.SPARQLResult, error) {
	if tenantID == "" {
		return triple.SPARQLResult{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.ExecuteSPARQL", errEmptyTenant)
	}
	sqlq := fmt.Sprintf("SELECT id, tenant_id, %s FROM triples WHERE tenant_id = $1", tripleColumns)
	rows, err := s.pool.Query(ctx, sqlq, tenantID)
	if err != nil {
		return triple.SPARQLResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.ExecuteSPARQL", err)
	}
	candidates, err := pgx.CollectRows(rows, scanTripleWithIDs)
	if err != nil {
		return triple.SPARQLResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.ExecuteSPARQL", err)
	}
	return triple.ExecuteSPARQLOver(query, candidates)
}

// Statistics implements triple.Store.
func (s *Store) Statistics(ctx context.Context, tenantID string) (triple.Statistics, error) {
	if tenantID == "" {
		return triple.Statistics{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.Statistics", errEmptyTenant)
	}
	const q = `
		SELECT count(*),
		       count(DISTINCT subject_id),
		       count(DISTINCT predicate_uri),
		       count(DISTINCT object_id),
		       count(*) FILTER (WHERE is_literal),
		       count(*) FILTER (WHERE is_verified),
		       COALESCE(avg(confidence), 0),
		       COALESCE(max(updated_at), to_timestamp(0))
		FROM   triples
		WHERE  tenant_id = $1`

	var stats triple.Statistics
	if err := s.pool.QueryRow(ctx, q, tenantID).Scan(
		&stats.TripleCount, &stats.DistinctSubjects, &stats.DistinctPredicates,
		&stats.DistinctObjects, &stats.LiteralCount, &stats.VerifiedCount,
		&stats.MeanConfidence, &stats.LastUpdated,
	); err != nil {
		return triple.Statistics{}, coreerr.New(coreerr.KindInternal, "triple.postgres.Statistics", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM triple_graphs WHERE tenant_id = $1`, tenantID).Scan(&stats.GraphCount); err != nil {
		return triple.Statistics{}, coreerr.New(coreerr.KindInternal, "triple.postgres.Statistics", err)
	}
	return stats, nil
}

func insertTriple(ctx context.Context, tx pgx.Tx, t triple.Triple) error {
	provJSON, err := json.Marshal(t.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	const q = `
		INSERT INTO triples
		    (tenant_id, id, subject_id, predicate_uri, object_id, is_literal,
		     literal_data_type, language_tag, graph_uri, confidence,
		     created_at, updated_at, source_document_id, is_verified, version, provenance)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err = tx.Exec(ctx, q,
		t.TenantID, t.ID, t.SubjectID, t.PredicateURI, t.ObjectID, t.IsLiteral,
		t.LiteralDataType, t.LanguageTag, t.GraphURI, t.Confidence,
		t.CreatedAt, t.UpdatedAt, t.SourceDocumentID, t.IsVerified, t.Version, provJSON,
	)
	return err
}

func updateTripleRow(ctx context.Context, tx pgx.Tx, tenantID string, t triple.Triple) error {
	provJSON, err := json.Marshal(t.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	const q = `
		UPDATE triples SET
		    subject_id = $3, predicate_uri = $4, object_id = $5, is_literal = $6,
		    literal_data_type = $7, language_tag = $8, graph_uri = $9, confidence = $10,
		    updated_at = $11, source_document_id = $12, is_verified = $13,
		    version = $14, provenance = $15
		WHERE tenant_id = $1 AND id = $2`
	_, err = tx.Exec(ctx, q,
		tenantID, t.ID, t.SubjectID, t.PredicateURI, t.ObjectID, t.IsLiteral,
		t.LiteralDataType, t.LanguageTag, t.GraphURI, t.Confidence,
		t.UpdatedAt, t.SourceDocumentID, t.IsVerified, t.Version, provJSON,
	)
	return err
}

func fetchTripleForUpdate(ctx context.Context, tx pgx.Tx, tenantID, id string) (triple.Triple, error) {
	q := fmt.Sprintf("SELECT %s FROM triples WHERE tenant_id = $1 AND id = $2 FOR UPDATE", tripleColumns)
	row := tx.QueryRow(ctx, q, tenantID, id)
	t, err := scanTripleRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return triple.Triple{}, coreerr.New(coreerr.KindNotFound, "triple.postgres", triple.ErrNotFound)
		}
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres", err)
	}
	t.TenantID = tenantID
	t.ID = id
	return t, nil
}

func insertVersion(ctx context.Context, tx pgx.Tx, t triple.Triple, changeType triple.ChangeType, user, comment string) error {
	provJSON, err := json.Marshal(t.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	const q = `
		INSERT INTO triple_versions
		    (tenant_id, triple_id, version_number, change_type, changed_by_user_id, change_comment,
		     subject_id, predicate_uri, object_id, is_literal, literal_data_type, language_tag,
		     graph_uri, confidence, created_at, updated_at, source_document_id, is_verified, provenance)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	_, err = tx.Exec(ctx, q,
		t.TenantID, t.ID, t.Version, string(changeType), user, comment,
		t.SubjectID, t.PredicateURI, t.ObjectID, t.IsLiteral, t.LiteralDataType, t.LanguageTag,
		t.GraphURI, t.Confidence, t.CreatedAt, t.UpdatedAt, t.SourceDocumentID, t.IsVerified, provJSON,
	)
	return err
}

func upsertGraph(ctx context.Context, tx pgx.Tx, tenantID, uri string) error {
	const q = `
		INSERT INTO triple_graphs (tenant_id, uri) VALUES ($1, $2)
		ON CONFLICT (tenant_id, uri) DO NOTHING`
	_, err := tx.Exec(ctx, q, tenantID, uri)
	return err
}
