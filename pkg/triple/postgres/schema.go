// Package postgres provides a PostgreSQL-backed implementation of the
// Versioned Triple Store (C4), durable counterpart to triple.MemStore.
//
// AddTriple, UpdateTriple, RemoveTriple, RemoveGraph and RestoreVersion
// write their version record in the same transaction as the structural
// change, so a version-insert failure rolls back the whole mutation: a
// stricter, transactional analogue of MemStore's
// availability-over-auditability policy. RestoreSnapshot is not one
// transaction: it deletes the affected rows in a single statement, re-adds
// each frozen triple through AddTriple (one transaction per triple) and then
// retags that version as a Restoration in a separate statement, so a failure
// partway leaves the earlier steps in place.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTriples = `
CREATE TABLE IF NOT EXISTS triples (
    tenant_id           TEXT         NOT NULL,
    id                  TEXT         NOT NULL,
    subject_id          TEXT         NOT NULL,
    predicate_uri       TEXT         NOT NULL,
    object_id           TEXT         NOT NULL,
    is_literal          BOOLEAN      NOT NULL DEFAULT false,
    literal_data_type   TEXT         NOT NULL DEFAULT '',
    language_tag        TEXT         NOT NULL DEFAULT '',
    graph_uri           TEXT         NOT NULL,
    confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    source_document_id  TEXT         NOT NULL DEFAULT '',
    is_verified         BOOLEAN      NOT NULL DEFAULT false,
    version             INT          NOT NULL DEFAULT 1,
    provenance          JSONB        NOT NULL DEFAULT '{}',
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_triples_subject   ON triples (tenant_id, subject_id);
CREATE INDEX IF NOT EXISTS idx_triples_predicate ON triples (tenant_id, predicate_uri);
CREATE INDEX IF NOT EXISTS idx_triples_object    ON triples (tenant_id, object_id);
CREATE INDEX IF NOT EXISTS idx_triples_graph     ON triples (tenant_id, graph_uri);
CREATE INDEX IF NOT EXISTS idx_triples_source    ON triples (tenant_id, source_document_id);

CREATE TABLE IF NOT EXISTS triple_versions (
    tenant_id           TEXT         NOT NULL,
    triple_id           TEXT         NOT NULL,
    version_number      INT          NOT NULL,
    change_type         TEXT         NOT NULL,
    changed_by_user_id  TEXT         NOT NULL DEFAULT '',
    change_comment      TEXT         NOT NULL DEFAULT '',
    subject_id          TEXT         NOT NULL,
    predicate_uri       TEXT         NOT NULL,
    object_id           TEXT         NOT NULL,
    is_literal          BOOLEAN      NOT NULL DEFAULT false,
    literal_data_type   TEXT         NOT NULL DEFAULT '',
    language_tag        TEXT         NOT NULL DEFAULT '',
    graph_uri           TEXT         NOT NULL,
    confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    source_document_id  TEXT         NOT NULL DEFAULT '',
    is_verified         BOOLEAN      NOT NULL DEFAULT false,
    provenance          JSONB        NOT NULL DEFAULT '{}',
    PRIMARY KEY (tenant_id, triple_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_versions_triple ON triple_versions (tenant_id, triple_id);

CREATE TABLE IF NOT EXISTS triple_graphs (
    tenant_id   TEXT        NOT NULL,
    uri         TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (tenant_id, uri)
);

CREATE TABLE IF NOT EXISTS triple_snapshots (
    tenant_id       TEXT        NOT NULL,
    name            TEXT        NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    graph_uris      TEXT[]      NOT NULL DEFAULT '{}',
    frozen_triples  JSONB       NOT NULL DEFAULT '[]',
    PRIMARY KEY (tenant_id, name)
);
`

// Migrate creates every table this Store needs, idempotently. Safe to call
// on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTriples); err != nil {
		return fmt.Errorf("triple postgres migrate: %w", err)
	}
	return nil
}
