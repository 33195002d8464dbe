package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/triple"
)

const versionColumns = `version_number, change_type, changed_by_user_id, change_comment,
	       subject_id, predicate_uri, object_id, is_literal, literal_data_type, language_tag,
	       graph_uri, confidence, created_at, updated_at, source_document_id, is_verified, provenance`

func scanVersionRow(row scanner) (triple.TripleVersion, error) {
	var v triple.TripleVersion
	var changeType string
	var provJSON []byte
	if err := row.Scan(
		&v.VersionNumber, &changeType, &v.ChangedByUserID, &v.ChangeComment,
		&v.SubjectID, &v.PredicateURI, &v.ObjectID, &v.IsLiteral, &v.LiteralDataType, &v.LanguageTag,
		&v.GraphURI, &v.Confidence, &v.CreatedAt, &v.UpdatedAt, &v.SourceDocumentID, &v.IsVerified, &provJSON,
	); err != nil {
		return triple.TripleVersion{}, err
	}
	v.ChangeType = triple.ChangeType(changeType)
	if len(provJSON) > 0 {
		_ = json.Unmarshal(provJSON, &v.Provenance)
	}
	if v.Provenance == nil {
		v.Provenance = map[string]any{}
	}
	v.Version = v.VersionNumber
	return v, nil
}

func scanVersion(row pgx.CollectableRow) (triple.TripleVersion, error) {
	return scanVersionRow(row)
}

// History implements triple.Store, newest first.
func (s *Store) History(ctx context.Context, tenantID, tripleID string, max int) ([]triple.TripleVersion, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.History", errEmptyTenant)
	}
	q := fmt.Sprintf("SELECT %s FROM triple_versions WHERE tenant_id = $1 AND triple_id = $2 ORDER BY version_number DESC", versionColumns)
	if max > 0 {
		q += fmt.Sprintf(" LIMIT %d", max)
	}
	rows, err := s.pool.Query(ctx, q, tenantID, tripleID)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.History", err)
	}
	versions, err := pgx.CollectRows(rows, scanVersion)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInternal, "triple.postgres.History", err)
	}
	for i := range versions {
		versions[i].TripleID = tripleID
		versions[i].TenantID = tenantID
	}
	return versions, nil
}

// Version implements triple.Store.
func (s *Store) Version(ctx context.Context, tenantID, tripleID string, n int) (triple.TripleVersion, error) {
	if tenantID == "" {
		return triple.TripleVersion{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.Version", errEmptyTenant)
	}
	q := fmt.Sprintf("SELECT %s FROM triple_versions WHERE tenant_id = $1 AND triple_id = $2 AND version_number = $3", versionColumns)
	row := s.pool.QueryRow(ctx, q, tenantID, tripleID, n)
	v, err := scanVersionRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return triple.TripleVersion{}, coreerr.New(coreerr.KindNotFound, "triple.postgres.Version", triple.ErrNotFound)
		}
		return triple.TripleVersion{}, coreerr.New(coreerr.KindInternal, "triple.postgres.Version", err)
	}
	v.TripleID = tripleID
	v.TenantID = tenantID
	return v, nil
}

// VersionDiff implements triple.Store.
func (s *Store) VersionDiff(ctx context.Context, tenantID, tripleID string, fromN, toN int) (triple.Diff, error) {
	if fromN >= toN {
		return triple.Diff{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.VersionDiff", errBadVersionRange)
	}
	from, err := s.Version(ctx, tenantID, tripleID, fromN)
	if err != nil {
		return triple.Diff{}, err
	}
	to, err := s.Version(ctx, tenantID, tripleID, toN)
	if err != nil {
		return triple.Diff{}, err
	}
	return diffVersions(from, to), nil
}

func propChangeStr(field, before, after string) triple.PropertyChange[string] {
	return triple.PropertyChange[string]{Field: field, Before: before, After: after, Changed: before != after}
}

func propChangeBool(field string, before, after bool) triple.PropertyChange[bool] {
	return triple.PropertyChange[bool]{Field: field, Before: before, After: after, Changed: before != after}
}

func propChangeFloat(field string, before, after float64) triple.PropertyChange[float64] {
	return triple.PropertyChange[float64]{Field: field, Before: before, After: after, Changed: before != after}
}

func diffVersions(from, to triple.TripleVersion) triple.Diff {
	return triple.Diff{
		TripleID:        to.TripleID,
		FromVersion:     from.VersionNumber,
		ToVersion:       to.VersionNumber,
		Subject:         propChangeStr("subject_id", from.SubjectID, to.SubjectID),
		Predicate:       propChangeStr("predicate_uri", from.PredicateURI, to.PredicateURI),
		Object:          propChangeStr("object_id", from.ObjectID, to.ObjectID),
		IsLiteral:       propChangeBool("is_literal", from.IsLiteral, to.IsLiteral),
		LiteralDataType: propChangeStr("literal_data_type", from.LiteralDataType, to.LiteralDataType),
		LanguageTag:     propChangeStr("language_tag", from.LanguageTag, to.LanguageTag),
		GraphURI:        propChangeStr("graph_uri", from.GraphURI, to.GraphURI),
		Confidence:      propChangeFloat("confidence", from.Confidence, to.Confidence),
		SourceDocument:  propChangeStr("source_document_id", from.SourceDocumentID, to.SourceDocumentID),
		IsVerified:      propChangeBool("is_verified", from.IsVerified, to.IsVerified),
	}
}

// RestoreVersion implements triple.Store. The restored row and its new
// version record are written in the same transaction.
func (s *Store) RestoreVersion(ctx context.Context, tenantID, tripleID string, n int, user, comment string) (triple.Triple, error) {
	if tenantID == "" {
		return triple.Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.RestoreVersion", errEmptyTenant)
	}
	target, err := s.Version(ctx, tenantID, tripleID, n)
	if err != nil {
		return triple.Triple{}, err
	}

	var latest int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(max(version_number), 0) FROM triple_versions WHERE tenant_id = $1 AND triple_id = $2`, tenantID, tripleID).Scan(&latest); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreVersion", err)
	}

	restored := target.Triple
	restored.TenantID = tenantID
	restored.ID = tripleID
	restored.Version = latest + 1
	restored.UpdatedAt = time.Now()
	if restored.Provenance == nil {
		restored.Provenance = map[string]any{}
	}
	restored.Provenance["RestoredFromVersion"] = n
	restored.Provenance["RestorationTime"] = restored.UpdatedAt
	restored.Provenance["RestoredByUser"] = user

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreVersion", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO triples
		    (tenant_id, id, subject_id, predicate_uri, object_id, is_literal,
		     literal_data_type, language_tag, graph_uri, confidence,
		     created_at, updated_at, source_document_id, is_verified, version, provenance)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
		    subject_id = EXCLUDED.subject_id, predicate_uri = EXCLUDED.predicate_uri,
		    object_id = EXCLUDED.object_id, is_literal = EXCLUDED.is_literal,
		    literal_data_type = EXCLUDED.literal_data_type, language_tag = EXCLUDED.language_tag,
		    graph_uri = EXCLUDED.graph_uri, confidence = EXCLUDED.confidence,
		    updated_at = EXCLUDED.updated_at, source_document_id = EXCLUDED.source_document_id,
		    is_verified = EXCLUDED.is_verified, version = EXCLUDED.version, provenance = EXCLUDED.provenance`
	provJSON, err := json.Marshal(restored.Provenance)
	if err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreVersion", err)
	}
	if _, err := tx.Exec(ctx, upsert,
		restored.TenantID, restored.ID, restored.SubjectID, restored.PredicateURI, restored.ObjectID, restored.IsLiteral,
		restored.LiteralDataType, restored.LanguageTag, restored.GraphURI, restored.Confidence,
		restored.CreatedAt, restored.UpdatedAt, restored.SourceDocumentID, restored.IsVerified, restored.Version, provJSON,
	); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreVersion", err)
	}
	if err := insertVersion(ctx, tx, restored, triple.Restoration, user, comment); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreVersion", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return triple.Triple{}, coreerr.New(coreerr.KindInternal, "triple.postgres.RestoreVersion", err)
	}
	return restored, nil
}

// QueryTemporal implements triple.Store. Unlike the structural and SPARQL
// paths, the temporal selectors (as-of, range, diffs) are cheapest to apply
// over the full version history in Go rather than as a dynamic SQL
// generator per mode, so versions are fetched per structural-matching
// candidate and then shaped exactly as MemStore shapes them.
func (s *Store) QueryTemporal(ctx context.Context, tenantID string, q triple.TemporalQuery) (triple.TemporalResult, error) {
	if tenantID == "" {
		return triple.TemporalResult{}, coreerr.New(coreerr.KindInvalidArgument, "triple.postgres.QueryTemporal", errEmptyTenant)
	}

	where, args := structuralWhere(tenantID, q.Structural)
	liveIDsSQL := "SELECT id FROM triples WHERE " + where
	rows, err := s.pool.Query(ctx, liveIDsSQL, args...)
	if err != nil {
		return triple.TemporalResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.QueryTemporal", err)
	}
	candidateIDs := map[string]bool{}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return triple.TemporalResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.QueryTemporal", err)
	}
	for _, id := range ids {
		candidateIDs[id] = true
	}

	// Also include triple IDs that have versions but no longer have a live
	// row (deleted triples), mirroring MemStore's approximation.
	allIDsRows, err := s.pool.Query(ctx, `SELECT DISTINCT triple_id FROM triple_versions WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return triple.TemporalResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.QueryTemporal", err)
	}
	allIDs, err := pgx.CollectRows(allIDsRows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return triple.TemporalResult{}, coreerr.New(coreerr.KindInternal, "triple.postgres.QueryTemporal", err)
	}
	liveSet := map[string]bool{}
	for _, id := range ids {
		liveSet[id] = true
	}
	for _, id := range allIDs {
		if !liveSet[id] {
			candidateIDs[id] = true
		}
	}

	var selected []triple.TripleVersion
	var materialized []triple.Triple
	for id := range candidateIDs {
		versions, err := s.History(ctx, tenantID, id, 0)
		if err != nil {
			return triple.TemporalResult{}, err
		}
		// History returns newest-first; restore chronological order for the
		// selection logic below.
		vs := make([]triple.TripleVersion, len(versions))
		for i, v := range versions {
			vs[len(versions)-1-i] = v
		}

		switch q.Mode {
		case triple.TemporalVersionNumber:
			for _, v := range vs {
				if v.VersionNumber == q.VersionNumber {
					selected = append(selected, v)
				}
			}
		case triple.TemporalAsOfDate:
			var latest *triple.TripleVersion
			for i := range vs {
				if vs[i].CreatedAt.After(q.AsOfDate) {
					continue
				}
				if latest == nil || vs[i].VersionNumber > latest.VersionNumber {
					latest = &vs[i]
				}
			}
			if latest == nil {
				continue
			}
			if latest.ChangeType == triple.Deletion && !q.IncludeDeleted {
				continue
			}
			selected = append(selected, *latest)
			materialized = append(materialized, latest.Triple)
		case triple.TemporalRange:
			var inRange []triple.TripleVersion
			for _, v := range vs {
				if !v.CreatedAt.Before(q.FromDate) && !v.CreatedAt.After(q.ToDate) {
					inRange = append(inRange, v)
				}
			}
			if !q.IncludeAllVersions {
				var latest *triple.TripleVersion
				for i := range inRange {
					if latest == nil || inRange[i].VersionNumber > latest.VersionNumber {
						latest = &inRange[i]
					}
				}
				if latest != nil {
					inRange = []triple.TripleVersion{*latest}
				}
			}
			selected = append(selected, inRange...)
		case triple.TemporalCurrent:
			var latest *triple.TripleVersion
			for i := range vs {
				if latest == nil || vs[i].VersionNumber > latest.VersionNumber {
					latest = &vs[i]
				}
			}
			if latest == nil {
				continue
			}
			if latest.ChangeType == triple.Deletion && !q.IncludeDeleted {
				continue
			}
			selected = append(selected, *latest)
		}
	}

	selected = filterByUserAndChangeTypes(selected, q.ChangedByUserID, q.ChangeTypes)
	if q.MaxVersionsPerTriple > 0 && q.IncludeAllVersions {
		selected = capPerTriple(selected, q.MaxVersionsPerTriple)
	}

	var diffs []triple.Diff
	if q.DiffOnly && q.IncludeAllVersions {
		diffs = consecutiveDiffs(selected)
	}

	return triple.TemporalResult{Triples: materialized, Versions: selected, Diffs: diffs}, nil
}

func filterByUserAndChangeTypes(vs []triple.TripleVersion, user string, types []triple.ChangeType) []triple.TripleVersion {
	if user == "" && len(types) == 0 {
		return vs
	}
	allowed := map[triple.ChangeType]bool{}
	for _, t := range types {
		allowed[t] = true
	}
	var out []triple.TripleVersion
	for _, v := range vs {
		if user != "" && v.ChangedByUserID != user {
			continue
		}
		if len(types) > 0 && !allowed[v.ChangeType] {
			continue
		}
		out = append(out, v)
	}
	return out
}

func capPerTriple(vs []triple.TripleVersion, max int) []triple.TripleVersion {
	byTriple := map[string][]triple.TripleVersion{}
	var order []string
	for _, v := range vs {
		if _, ok := byTriple[v.TripleID]; !ok {
			order = append(order, v.TripleID)
		}
		byTriple[v.TripleID] = append(byTriple[v.TripleID], v)
	}
	var out []triple.TripleVersion
	for _, id := range order {
		group := byTriple[id]
		sort.Slice(group, func(i, j int) bool { return group[i].VersionNumber > group[j].VersionNumber })
		if len(group) > max {
			group = group[:max]
		}
		out = append(out, group...)
	}
	return out
}

func consecutiveDiffs(vs []triple.TripleVersion) []triple.Diff {
	byTriple := map[string][]triple.TripleVersion{}
	var order []string
	for _, v := range vs {
		if _, ok := byTriple[v.TripleID]; !ok {
			order = append(order, v.TripleID)
		}
		byTriple[v.TripleID] = append(byTriple[v.TripleID], v)
	}
	var diffs []triple.Diff
	for _, id := range order {
		group := byTriple[id]
		sort.Slice(group, func(i, j int) bool { return group[i].VersionNumber < group[j].VersionNumber })
		for i := 1; i < len(group); i++ {
			diffs = append(diffs, diffVersions(group[i-1], group[i]))
		}
	}
	return diffs
}
