package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
)

// CreateGraph implements triple.Store. Idempotent.
func (s *Store) CreateGraph(ctx context.Context, tenantID, uri string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.CreateGraph", errEmptyTenant)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.CreateGraph", err)
	}
	defer tx.Rollback(ctx)
	if err := upsertGraph(ctx, tx, tenantID, uri); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.CreateGraph", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.CreateGraph", err)
	}
	return nil
}

// RemoveGraph implements triple.Store, cascading to every triple in that
// graph inside a single transaction so the graph row, every triple row, and
// every Deletion version record either all land or none do.
func (s *Store) RemoveGraph(ctx context.Context, tenantID, uri string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.RemoveGraph", errEmptyTenant)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveGraph", err)
	}
	defer tx.Rollback(ctx)

	q := fmt.Sprintf("SELECT id, tenant_id, %s FROM triples WHERE tenant_id = $1 AND graph_uri = $2", tripleColumns)
	rows, err := tx.Query(ctx, q, tenantID, uri)
	if err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveGraph", err)
	}
	affected, err := pgx.CollectRows(rows, scanTripleWithIDs)
	if err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveGraph", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM triples WHERE tenant_id = $1 AND graph_uri = $2`, tenantID, uri); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveGraph", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM triple_graphs WHERE tenant_id = $1 AND uri = $2`, tenantID, uri); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveGraph", err)
	}
	for _, t := range affected {
		deleted := t
		deleted.Version = t.Version + 1
		if err := insertVersion(ctx, tx, deleted, triple.Deletion, "", ""); err != nil {
			return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveGraph", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RemoveGraph", err)
	}
	return nil
}

// Neighbors implements triple.Store via a recursive CTE walking the triples
// table as an undirected edge list (subject_id <-> object_id), mirroring the
// donor knowledge graph's Neighbors query adapted to triples. It returns
// every triple with at least one endpoint among the nodes reachable from
// entityID within depth hops.
func (s *Store) Neighbors(ctx context.Context, tenantID, entityID string, depth int) ([]triple.Triple, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.Neighbors", errEmptyTenant)
	}
	start := triple.NormalizeURI(entityID)

	const q = `
		WITH RECURSIVE reachable AS (
		    SELECT $2::text AS node, ARRAY[$2::text] AS visited, 0 AS depth

		    UNION ALL

		    SELECT CASE WHEN t.subject_id = r.node THEN t.object_id ELSE t.subject_id END,
		           r.visited || (CASE WHEN t.subject_id = r.node THEN t.object_id ELSE t.subject_id END),
		           r.depth + 1
		    FROM   reachable r
		    JOIN   triples t ON t.tenant_id = $1
		                    AND (t.subject_id = r.node OR t.object_id = r.node)
		    WHERE  r.depth < $3
		      AND  NOT ((CASE WHEN t.subject_id = r.node THEN t.object_id ELSE t.subject_id END) = ANY(r.visited))
		)
		SELECT DISTINCT id, tenant_id, ` + tripleColumns + `
		FROM   triples t
		WHERE  t.tenant_id = $1
		  AND  (t.subject_id IN (SELECT node FROM reachable) OR t.object_id IN (SELECT node FROM reachable))
		  AND  NOT (t.subject_id = $2 AND t.object_id = $2)`

	rows, err := s.pool.Query(ctx, q, tenantID, start, depth)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.Neighbors", err)
	}
	result, err := pgx.CollectRows(rows, scanTripleWithIDs)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.Neighbors", err)
	}
	return result, nil
}

// FindPath implements triple.Store: shortest directed-or-undirected path
// search via a recursive CTE over the triples table, returning the edge
// triples from fromID to toID or an empty (non-nil) slice when unreachable
// within maxDepth hops.
func (s *Store) FindPath(ctx context.Context, tenantID, fromID, toID string, maxDepth int) ([]triple.Triple, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.FindPath", errEmptyTenant)
	}
	from, to := triple.NormalizeURI(fromID), triple.NormalizeURI(toID)
	if from == to {
		return []triple.Triple{}, nil
	}

	const q = `
		WITH RECURSIVE path_search AS (
		    SELECT $2::text AS node, ARRAY[$2::text] AS visited, ARRAY[]::text[] AS edge_ids, 0 AS depth

		    UNION ALL

		    SELECT edge.other, ps.visited || edge.other, ps.edge_ids || t.id, ps.depth + 1
		    FROM   path_search ps
		    JOIN   triples t ON t.tenant_id = $1
		                    AND (t.subject_id = ps.node OR t.object_id = ps.node)
		    CROSS JOIN LATERAL (
		        SELECT CASE WHEN t.subject_id = ps.node THEN t.object_id ELSE t.subject_id END AS other
		    ) edge
		    WHERE  ps.depth < $3
		      AND  NOT (edge.other = ANY(ps.visited))
		)
		SELECT edge_ids
		FROM   path_search
		WHERE  node = $4
		ORDER  BY depth
		LIMIT  1`

	row := s.pool.QueryRow(ctx, q, tenantID, from, maxDepth, to)
	var edgeIDs []string
	if err := row.Scan(&edgeIDs); err != nil {
		if err == pgx.ErrNoRows {
			return []triple.Triple{}, nil
		}
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.FindPath", err)
	}
	if len(edgeIDs) == 0 {
		return []triple.Triple{}, nil
	}

	fetchQ := fmt.Sprintf("SELECT id, tenant_id, %s FROM triples WHERE tenant_id = $1 AND id = ANY($2::text[])", tripleColumns)
	rows, err := s.pool.Query(ctx, fetchQ, tenantID, edgeIDs)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.FindPath", err)
	}
	fetched, err := pgx.CollectRows(rows, scanTripleWithIDs)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.FindPath", err)
	}

	byID := make(map[string]triple.Triple, len(fetched))
	for _, t := range fetched {
		byID[t.ID] = t
	}
	ordered := make([]triple.Triple, 0, len(edgeIDs))
	for _, id := range edgeIDs {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}
