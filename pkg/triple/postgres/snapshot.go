package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
)

// CreateSnapshot implements triple.Store, freezing the current rows
// (optionally scoped to graphURIs) as a JSON blob.
func (s *Store) CreateSnapshot(ctx context.Context, tenantID, name string, graphURIs []string) (triple.Snapshot, error) {
	if tenantID == "" {
		return triple.Snapshot{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.CreateSnapshot", errEmptyTenant)
	}

	q := fmt.Sprintf("SELECT id, tenant_id, %s FROM triples WHERE tenant_id = $1", tripleColumns)
	args := []any{tenantID}
	if len(graphURIs) > 0 {
		q += " AND graph_uri = ANY($2::text[])"
		args = append(args, graphURIs)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return triple.Snapshot{}, coreerr.New(coreerr.KindInternal, "triple.postgres.CreateSnapshot", err)
	}
	frozen, err := pgx.CollectRows(rows, scanTripleWithIDs)
	if err != nil {
		return triple.Snapshot{}, coreerr.New(coreerr.KindInternal, "triple.postgres.CreateSnapshot", err)
	}

	snap := triple.Snapshot{
		Name:          name,
		TenantID:      tenantID,
		CreatedAt:     time.Now(),
		GraphURIs:     graphURIs,
		FrozenTriples: frozen,
	}

	frozenJSON, err := json.Marshal(frozen)
	if err != nil {
		return triple.Snapshot{}, coreerr.New(coreerr.KindInternal, "triple.postgres.CreateSnapshot", err)
	}
	const ins = `
		INSERT INTO triple_snapshots (tenant_id, name, created_at, graph_uris, frozen_triples)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (tenant_id, name) DO UPDATE SET
		    created_at = EXCLUDED.created_at, graph_uris = EXCLUDED.graph_uris, frozen_triples = EXCLUDED.frozen_triples`
	if _, err := s.pool.Exec(ctx, ins, tenantID, name, snap.CreatedAt, graphURIs, frozenJSON); err != nil {
		return triple.Snapshot{}, coreerr.New(coreerr.KindInternal, "triple.postgres.CreateSnapshot", err)
	}
	return snap, nil
}

// RestoreSnapshot implements triple.Store: every affected live row is
// deleted, then every frozen triple is re-added via AddTriple (each insert
// plus its version record in its own transaction), and that version record
// is then retagged as a Restoration in a separate statement.
func (s *Store) RestoreSnapshot(ctx context.Context, tenantID, name string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.RestoreSnapshot", errEmptyTenant)
	}

	const q = `SELECT graph_uris, frozen_triples FROM triple_snapshots WHERE tenant_id = $1 AND name = $2`
	var graphURIs []string
	var frozenJSON []byte
	if err := s.pool.QueryRow(ctx, q, tenantID, name).Scan(&graphURIs, &frozenJSON); err != nil {
		if err == pgx.ErrNoRows {
			return coreerr.New(coreerr.KindNotFound, "triple.postgres.RestoreSnapshot", triple.ErrNotFound)
		}
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreSnapshot", err)
	}
	var frozen []triple.Triple
	if err := json.Unmarshal(frozenJSON, &frozen); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreSnapshot", err)
	}

	del := "DELETE FROM triples WHERE tenant_id = $1"
	args := []any{tenantID}
	if len(graphURIs) > 0 {
		del += " AND graph_uri = ANY($2::text[])"
		args = append(args, graphURIs)
	}
	if _, err := s.pool.Exec(ctx, del, args...); err != nil {
		return coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreSnapshot", err)
	}

	comment := fmt.Sprintf("Restored from snapshot '%s'", name)
	for _, t := range frozen {
		t.TenantID = ""
		restored, err := s.AddTriple(ctx, tenantID, t)
		if err != nil {
			continue
		}
		// Retag the version just written as a Restoration rather than a
		// Creation, matching MemStore's semantics.
		if _, err := s.pool.Exec(ctx,
			`UPDATE triple_versions SET change_type = $1, change_comment = $2
			 WHERE tenant_id = $3 AND triple_id = $4 AND version_number = $5`,
			string(triple.Restoration), comment, tenantID, restored.ID, restored.Version,
		); err != nil {
			return coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreSnapshot", err)
		}
	}
	return nil
}

// ListSnapshots implements triple.Store, omitting frozen triples.
func (s *Store) ListSnapshots(ctx context.Context, tenantID string) ([]triple.Snapshot, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.ListSnapshots", errEmptyTenant)
	}
	rows, err := s.pool.Query(ctx, `SELECT name, created_at, graph_uris FROM triple_snapshots WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.ListSnapshots", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (triple.Snapshot, error) {
		var snap triple.Snapshot
		snap.TenantID = tenantID
		if err := row.Scan(&snap.Name, &snap.CreatedAt, &snap.GraphURIs); err != nil {
			return triple.Snapshot{}, err
		}
		return snap, nil
	})
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.ListSnapshots", err)
	}
	return out, nil
}
