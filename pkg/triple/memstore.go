package triple

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/internal/observe"
	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/coreerr"
)

// MemStore is an in-memory Store, the availability-over-auditability
// variant: a successful structural mutation always stands even if emitting
// its version record fails, trading perfect version history for uptime
// (there is effectively nothing in-process that can fail the version
// append, but the code path is kept so the postgres Store's stricter,
// transactional behavior is a drop-in replacement rather than a rewrite).
type MemStore struct {
	mu        sync.RWMutex
	metrics   *observe.Metrics
	triples   map[string]map[string]Triple          // tenant -> id -> live triple
	versions  map[string]map[string][]TripleVersion // tenant -> triple id -> versions, oldest first
	graphs    map[string]map[string]bool            // tenant -> graph uri -> exists
	snapshots map[string]map[string]Snapshot        // tenant -> name -> snapshot

	// initMu guards lazy first-seen-tenant inserts into the four maps above.
	// Those inserts happen from tenantTriples/tenantVersions/tenantGraphs,
	// which are called from both s.mu-RLock'd read paths and s.mu-Lock'd
	// write paths; a plain map write under only a read lock would race
	// against another goroutine's read-locked first-seen insert for a
	// different tenant, so the outer-map write itself needs its own,
	// always-exclusive lock regardless of what s.mu is held as.
	initMu sync.Mutex
}

var _ Store = (*MemStore)(nil)

// NewMemStore constructs an empty in-memory Store.
func NewMemStore(metrics *observe.Metrics) *MemStore {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &MemStore{
		metrics:   metrics,
		triples:   map[string]map[string]Triple{},
		versions:  map[string]map[string][]TripleVersion{},
		graphs:    map[string]map[string]bool{},
		snapshots: map[string]map[string]Snapshot{},
	}
}

func generateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *MemStore) tenantTriples(tenantID string) map[string]Triple {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	m, ok := s.triples[tenantID]
	if !ok {
		m = map[string]Triple{}
		s.triples[tenantID] = m
	}
	return m
}

func (s *MemStore) tenantVersions(tenantID string) map[string][]TripleVersion {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	m, ok := s.versions[tenantID]
	if !ok {
		m = map[string][]TripleVersion{}
		s.versions[tenantID] = m
	}
	return m
}

func (s *MemStore) tenantGraphs(tenantID string) map[string]bool {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	m, ok := s.graphs[tenantID]
	if !ok {
		m = map[string]bool{}
		s.graphs[tenantID] = m
	}
	return m
}

// tenantSnapshots returns (lazily creating) the snapshot map for tenantID,
// using the same always-exclusive lock as the other tenant-map accessors.
func (s *MemStore) tenantSnapshots(tenantID string) map[string]Snapshot {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	m, ok := s.snapshots[tenantID]
	if !ok {
		m = map[string]Snapshot{}
		s.snapshots[tenantID] = m
	}
	return m
}

// appendVersion records a version entry, logging and swallowing any failure
// per the availability-over-auditability policy (§9 open question #1).
func (s *MemStore) appendVersion(ctx context.Context, tenantID string, v TripleVersion) {
	defer func() {
		if r := recover(); r != nil {
			observe.Logger(ctx).Warn("triple: versioning failed, mutation stands", "triple_id", v.TripleID, "recover", r)
		}
	}()
	vs := s.tenantVersions(tenantID)
	vs[v.TripleID] = append(vs[v.TripleID], v)
	s.metrics.RecordTripleWritten(ctx, string(v.ChangeType))
}

// AddTriple implements Store.
func (s *MemStore) AddTriple(ctx context.Context, tenantID string, t Triple) (Triple, error) {
	if tenantID == "" {
		return Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.AddTriple", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTripleLocked(ctx, tenantID, t)
}

func (s *MemStore) addTripleLocked(ctx context.Context, tenantID string, t Triple) (Triple, error) {
	if t.ID == "" {
		id, err := generateID()
		if err != nil {
			return Triple{}, coreerr.New(coreerr.KindInternal, "triple.AddTriple", err)
		}
		t.ID = id
	}
	t.TenantID = tenantID
	if t.GraphURI == "" {
		t.GraphURI = DefaultGraphURI(tenantID)
	}
	if !t.IsLiteral {
		t.SubjectID = NormalizeURI(t.SubjectID)
		t.ObjectID = NormalizeURI(t.ObjectID)
	}
	t.PredicateURI = NormalizeURI(t.PredicateURI)
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Version = 1

	s.tenantGraphs(tenantID)[t.GraphURI] = true
	s.tenantTriples(tenantID)[t.ID] = t
	s.appendVersion(ctx, tenantID, TripleVersion{
		Triple:        t,
		TripleID:      t.ID,
		VersionNumber: 1,
		ChangeType:    Creation,
	})
	return t, nil
}

// AddTriples implements Store. Per-element failures do not abort the batch;
// the count of successes is returned alongside the first error seen, if any.
func (s *MemStore) AddTriples(ctx context.Context, tenantID string, ts []Triple) (int, error) {
	if tenantID == "" {
		return 0, coreerr.New(coreerr.KindInvalidArgument, "triple.AddTriples", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	count := 0
	for _, t := range ts {
		if _, err := s.addTripleLocked(ctx, tenantID, t); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		count++
	}
	return count, firstErr
}

// UpdateTriple implements Store.
func (s *MemStore) UpdateTriple(ctx context.Context, tenantID string, t Triple) (Triple, error) {
	if tenantID == "" {
		return Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.UpdateTriple", errEmptyTenant)
	}
	if t.ID == "" {
		return Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.UpdateTriple", errEmptyID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.tenantTriples(tenantID)
	prev, ok := live[t.ID]
	if !ok {
		return Triple{}, coreerr.New(coreerr.KindNotFound, "triple.UpdateTriple", ErrNotFound)
	}

	t.TenantID = tenantID
	if t.GraphURI == "" {
		t.GraphURI = prev.GraphURI
	}
	if !t.IsLiteral {
		t.SubjectID = NormalizeURI(t.SubjectID)
		t.ObjectID = NormalizeURI(t.ObjectID)
	}
	t.PredicateURI = NormalizeURI(t.PredicateURI)
	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = time.Now()
	t.Version = prev.Version + 1

	s.tenantGraphs(tenantID)[t.GraphURI] = true
	live[t.ID] = t
	s.appendVersion(ctx, tenantID, TripleVersion{
		Triple:        t,
		TripleID:      t.ID,
		VersionNumber: t.Version,
		ChangeType:    Update,
	})
	return t, nil
}

// RemoveTriple implements Store.
func (s *MemStore) RemoveTriple(ctx context.Context, tenantID, id string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.RemoveTriple", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.tenantTriples(tenantID)
	prev, ok := live[id]
	if !ok {
		return coreerr.New(coreerr.KindNotFound, "triple.RemoveTriple", ErrNotFound)
	}
	delete(live, id)

	deleted := prev
	deleted.Version = prev.Version + 1
	deleted.UpdatedAt = time.Now()
	s.appendVersion(ctx, tenantID, TripleVersion{
		Triple:        deleted,
		TripleID:      id,
		VersionNumber: deleted.Version,
		ChangeType:    Deletion,
	})
	return nil
}

// Query implements Store.
func (s *MemStore) Query(ctx context.Context, tenantID string, q StructuralQuery) (QueryResult, error) {
	start := time.Now()
	if tenantID == "" {
		return QueryResult{}, coreerr.New(coreerr.KindInvalidArgument, "triple.Query", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Triple
	for _, t := range s.tenantTriples(tenantID) {
		if matchesStructural(t, q) {
			matched = append(matched, t)
		}
	}
	sortTriples(matched, q.SortBy, q.SortAscending)

	total := len(matched)
	offset := q.Offset
	if offset > total {
		offset = total
	}
	limit := q.Limit
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := append([]Triple{}, matched[offset:end]...)

	return QueryResult{
		Triples:     page,
		TotalCount:  total,
		HasMore:     end < total,
		QueryTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

func matchesStructural(t Triple, q StructuralQuery) bool {
	if q.SubjectID != "" && t.SubjectID != q.SubjectID {
		return false
	}
	if q.PredicateURI != "" && t.PredicateURI != q.PredicateURI {
		return false
	}
	if q.ObjectID != "" && t.ObjectID != q.ObjectID {
		return false
	}
	if q.GraphURI != "" && t.GraphURI != q.GraphURI {
		return false
	}
	if q.HasMinConfidence && t.Confidence < q.MinConfidence {
		return false
	}
	if q.IsVerified != nil && t.IsVerified != *q.IsVerified {
		return false
	}
	if q.SourceDocumentID != "" && t.SourceDocumentID != q.SourceDocumentID {
		return false
	}
	if q.CreatedAfter != nil && t.CreatedAt.Before(*q.CreatedAfter) {
		return false
	}
	if q.CreatedBefore != nil && t.CreatedAt.After(*q.CreatedBefore) {
		return false
	}
	return true
}

func sortTriples(ts []Triple, by SortField, ascending bool) {
	if by == "" {
		by = SortCreatedAt
	}
	less := func(i, j int) bool {
		a, b := ts[i], ts[j]
		switch by {
		case SortUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		case SortConfidence:
			return a.Confidence < b.Confidence
		case SortSubjectID:
			return a.SubjectID < b.SubjectID
		case SortPredicateURI:
			return a.PredicateURI < b.PredicateURI
		case SortObjectID:
			return a.ObjectID < b.ObjectID
		case SortID:
			return a.ID < b.ID
		case SortVersion:
			return a.Version < b.Version
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	if ascending {
		sort.Slice(ts, less)
	} else {
		sort.Slice(ts, func(i, j int) bool { return less(j, i) })
	}
}

// ExecuteSPARQL implements Store. The tenant filter is enforced structurally
// by restricting the candidate set to tenantID's own triples before any
// query text is interpreted, so no parsed query can reach another tenant's
// graphs.
func (s *MemStore) ExecuteSPARQL(ctx context.Context, tenantID, query string) (SPARQLResult, error) {
	if tenantID == "" {
		return SPARQLResult{}, coreerr.New(coreerr.KindInvalidArgument, "triple.ExecuteSPARQL", errEmptyTenant)
	}
	s.mu.RLock()
	live := s.tenantTriples(tenantID)
	candidates := make([]Triple, 0, len(live))
	for _, t := range live {
		candidates = append(candidates, t)
	}
	s.mu.RUnlock()

	return ExecuteSPARQLOver(query, candidates)
}

// CreateGraph implements Store. Idempotent.
func (s *MemStore) CreateGraph(ctx context.Context, tenantID, uri string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.CreateGraph", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantGraphs(tenantID)[uri] = true
	return nil
}

// RemoveGraph implements Store, cascading to every triple in that graph.
func (s *MemStore) RemoveGraph(ctx context.Context, tenantID, uri string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.RemoveGraph", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tenantGraphs(tenantID), uri)
	live := s.tenantTriples(tenantID)
	for id, t := range live {
		if t.GraphURI != uri {
			continue
		}
		delete(live, id)
		deleted := t
		deleted.Version = t.Version + 1
		s.appendVersion(ctx, tenantID, TripleVersion{
			Triple:        deleted,
			TripleID:      id,
			VersionNumber: deleted.Version,
			ChangeType:    Deletion,
		})
	}
	return nil
}

// Statistics implements Store.
func (s *MemStore) Statistics(ctx context.Context, tenantID string) (Statistics, error) {
	if tenantID == "" {
		return Statistics{}, coreerr.New(coreerr.KindInvalidArgument, "triple.Statistics", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects, predicates, objects := map[string]bool{}, map[string]bool{}, map[string]bool{}
	var stats Statistics
	var confidenceSum float64
	for _, t := range s.tenantTriples(tenantID) {
		stats.TripleCount++
		subjects[t.SubjectID] = true
		predicates[t.PredicateURI] = true
		objects[t.ObjectID] = true
		if t.IsLiteral {
			stats.LiteralCount++
		}
		if t.IsVerified {
			stats.VerifiedCount++
		}
		confidenceSum += t.Confidence
		if t.UpdatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = t.UpdatedAt
		}
	}
	stats.GraphCount = len(s.tenantGraphs(tenantID))
	stats.DistinctSubjects = len(subjects)
	stats.DistinctPredicates = len(predicates)
	stats.DistinctObjects = len(objects)
	if stats.TripleCount > 0 {
		stats.MeanConfidence = confidenceSum / float64(stats.TripleCount)
	}
	return stats, nil
}

// History implements Store, returning the max newest versions (all when
// max <= 0), newest first.
func (s *MemStore) History(ctx context.Context, tenantID, tripleID string, max int) ([]TripleVersion, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.History", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs := s.tenantVersions(tenantID)[tripleID]
	out := make([]TripleVersion, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// Version implements Store.
func (s *MemStore) Version(ctx context.Context, tenantID, tripleID string, n int) (TripleVersion, error) {
	if tenantID == "" {
		return TripleVersion{}, coreerr.New(coreerr.KindInvalidArgument, "triple.Version", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.tenantVersions(tenantID)[tripleID] {
		if v.VersionNumber == n {
			return v, nil
		}
	}
	return TripleVersion{}, coreerr.New(coreerr.KindNotFound, "triple.Version", ErrNotFound)
}

// VersionDiff implements Store.
func (s *MemStore) VersionDiff(ctx context.Context, tenantID, tripleID string, fromN, toN int) (Diff, error) {
	if fromN >= toN {
		return Diff{}, coreerr.New(coreerr.KindInvalidArgument, "triple.VersionDiff", errBadVersionRange)
	}
	from, err := s.Version(ctx, tenantID, tripleID, fromN)
	if err != nil {
		return Diff{}, err
	}
	to, err := s.Version(ctx, tenantID, tripleID, toN)
	if err != nil {
		return Diff{}, err
	}
	return diffVersions(from, to), nil
}

func diffVersions(from, to TripleVersion) Diff {
	return Diff{
		TripleID:        to.TripleID,
		FromVersion:     from.VersionNumber,
		ToVersion:       to.VersionNumber,
		Subject:         change("subject_id", from.SubjectID, to.SubjectID),
		Predicate:       change("predicate_uri", from.PredicateURI, to.PredicateURI),
		Object:          change("object_id", from.ObjectID, to.ObjectID),
		IsLiteral:       change("is_literal", from.IsLiteral, to.IsLiteral),
		LiteralDataType: change("literal_data_type", from.LiteralDataType, to.LiteralDataType),
		LanguageTag:     change("language_tag", from.LanguageTag, to.LanguageTag),
		GraphURI:        change("graph_uri", from.GraphURI, to.GraphURI),
		Confidence:      change("confidence", from.Confidence, to.Confidence),
		SourceDocument:  change("source_document_id", from.SourceDocumentID, to.SourceDocumentID),
		IsVerified:      change("is_verified", from.IsVerified, to.IsVerified),
	}
}

// RestoreVersion implements Store.
func (s *MemStore) RestoreVersion(ctx context.Context, tenantID, tripleID string, n int, user, comment string) (Triple, error) {
	if tenantID == "" {
		return Triple{}, coreerr.New(coreerr.KindInvalidArgument, "triple.RestoreVersion", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.tenantVersions(tenantID)[tripleID]
	var target *TripleVersion
	latest := 0
	for i := range vs {
		if vs[i].VersionNumber == n {
			target = &vs[i]
		}
		if vs[i].VersionNumber > latest {
			latest = vs[i].VersionNumber
		}
	}
	if target == nil {
		return Triple{}, coreerr.New(coreerr.KindNotFound, "triple.RestoreVersion", ErrNotFound)
	}

	restored := target.Triple
	restored.Version = latest + 1
	restored.UpdatedAt = time.Now()
	if restored.Provenance == nil {
		restored.Provenance = map[string]any{}
	}
	restored.Provenance["RestoredFromVersion"] = n
	restored.Provenance["RestorationTime"] = restored.UpdatedAt
	restored.Provenance["RestoredByUser"] = user

	s.tenantTriples(tenantID)[tripleID] = restored
	s.appendVersion(ctx, tenantID, TripleVersion{
		Triple:          restored,
		TripleID:        tripleID,
		VersionNumber:   restored.Version,
		ChangeType:      Restoration,
		ChangedByUserID: user,
		ChangeComment:   comment,
	})
	return restored, nil
}

// QueryTemporal implements Store.
func (s *MemStore) QueryTemporal(ctx context.Context, tenantID string, q TemporalQuery) (TemporalResult, error) {
	if tenantID == "" {
		return TemporalResult{}, coreerr.New(coreerr.KindInvalidArgument, "triple.QueryTemporal", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidateIDs := map[string]bool{}
	for _, t := range s.tenantTriples(tenantID) {
		if matchesStructural(t, q.Structural) {
			candidateIDs[t.ID] = true
		}
	}
	for id := range s.tenantVersions(tenantID) {
		if _, ok := s.tenantTriples(tenantID)[id]; !ok {
			// deleted triple: still a candidate if its last live snapshot
			// (last Creation/Update version before deletion) matched; we
			// approximate by testing every version below.
			candidateIDs[id] = true
		}
	}

	allVersions := s.tenantVersions(tenantID)
	var selected []TripleVersion
	var materialized []Triple

	for id := range candidateIDs {
		vs := allVersions[id]
		switch q.Mode {
		case TemporalVersionNumber:
			for _, v := range vs {
				if v.VersionNumber == q.VersionNumber {
					selected = append(selected, v)
				}
			}
		case TemporalAsOfDate:
			var latest *TripleVersion
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
			if latest.ChangeType == Deletion && !q.IncludeDeleted {
				continue
			}
			selected = append(selected, *latest)
			materialized = append(materialized, latest.Triple)
		case TemporalRange:
			var inRange []TripleVersion
			for _, v := range vs {
				if !v.CreatedAt.Before(q.FromDate) && !v.CreatedAt.After(q.ToDate) {
					inRange = append(inRange, v)
				}
			}
			if !q.IncludeAllVersions {
				var latest *TripleVersion
				for i := range inRange {
					if latest == nil || inRange[i].VersionNumber > latest.VersionNumber {
						latest = &inRange[i]
					}
				}
				if latest != nil {
					inRange = []TripleVersion{*latest}
				}
			}
			selected = append(selected, inRange...)
		case TemporalCurrent:
			var latest *TripleVersion
			for i := range vs {
				if latest == nil || vs[i].VersionNumber > latest.VersionNumber {
					latest = &vs[i]
				}
			}
			if latest == nil {
				continue
			}
			if latest.ChangeType == Deletion && !q.IncludeDeleted {
				continue
			}
			selected = append(selected, *latest)
		}
	}

	selected = filterByUserAndChangeTypes(selected, q.ChangedByUserID, q.ChangeTypes)

	if q.MaxVersionsPerTriple > 0 && q.IncludeAllVersions {
		selected = capPerTriple(selected, q.MaxVersionsPerTriple)
	}

	var diffs []Diff
	if q.DiffOnly && q.IncludeAllVersions {
		diffs = consecutiveDiffs(selected)
	}

	return TemporalResult{Triples: materialized, Versions: selected, Diffs: diffs}, nil
}

func filterByUserAndChangeTypes(vs []TripleVersion, user string, types []ChangeType) []TripleVersion {
	if user == "" && len(types) == 0 {
		return vs
	}
	allowed := map[ChangeType]bool{}
	for _, t := range types {
		allowed[t] = true
	}
	var out []TripleVersion
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

func capPerTriple(vs []TripleVersion, max int) []TripleVersion {
	byTriple := map[string][]TripleVersion{}
	var order []string
	for _, v := range vs {
		if _, ok := byTriple[v.TripleID]; !ok {
			order = append(order, v.TripleID)
		}
		byTriple[v.TripleID] = append(byTriple[v.TripleID], v)
	}
	var out []TripleVersion
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

func consecutiveDiffs(vs []TripleVersion) []Diff {
	byTriple := map[string][]TripleVersion{}
	var order []string
	for _, v := range vs {
		if _, ok := byTriple[v.TripleID]; !ok {
			order = append(order, v.TripleID)
		}
		byTriple[v.TripleID] = append(byTriple[v.TripleID], v)
	}
	var diffs []Diff
	for _, id := range order {
		group := byTriple[id]
		sort.Slice(group, func(i, j int) bool { return group[i].VersionNumber < group[j].VersionNumber })
		for i := 1; i < len(group); i++ {
			diffs = append(diffs, diffVersions(group[i-1], group[i]))
		}
	}
	return diffs
}

// CreateSnapshot implements Store.
func (s *MemStore) CreateSnapshot(ctx context.Context, tenantID, name string, graphURIs []string) (Snapshot, error) {
	if tenantID == "" {
		return Snapshot{}, coreerr.New(coreerr.KindInvalidArgument, "triple.CreateSnapshot", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := map[string]bool{}
	for _, g := range graphURIs {
		wanted[g] = true
	}
	var frozen []Triple
	for _, t := range s.tenantTriples(tenantID) {
		if len(wanted) == 0 || wanted[t.GraphURI] {
			frozen = append(frozen, t)
		}
	}

	snap := Snapshot{
		Name:          name,
		TenantID:      tenantID,
		CreatedAt:     time.Now(),
		GraphURIs:     graphURIs,
		FrozenTriples: frozen,
	}
	snaps := s.tenantSnapshots(tenantID)
	snaps[name] = snap
	return snap, nil
}

// RestoreSnapshot implements Store.
func (s *MemStore) RestoreSnapshot(ctx context.Context, tenantID, name string) error {
	if tenantID == "" {
		return coreerr.New(coreerr.KindInvalidArgument, "triple.RestoreSnapshot", errEmptyTenant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tenantID][name]
	if !ok {
		return coreerr.New(coreerr.KindNotFound, "triple.RestoreSnapshot", ErrNotFound)
	}

	affected := map[string]bool{}
	for _, g := range snap.GraphURIs {
		affected[g] = true
	}
	live := s.tenantTriples(tenantID)
	for id, t := range live {
		if len(affected) > 0 && !affected[t.GraphURI] {
			continue
		}
		delete(live, id)
	}

	comment := fmt.Sprintf("Restored from snapshot '%s'", name)
	for _, frozen := range snap.FrozenTriples {
		restored, err := s.addTripleLocked(ctx, tenantID, frozen)
		if err != nil {
			continue
		}
		vs := s.tenantVersions(tenantID)
		group := vs[restored.ID]
		group[len(group)-1].ChangeType = Restoration
		group[len(group)-1].ChangeComment = comment
	}
	return nil
}

// ListSnapshots implements Store, omitting frozen triples.
func (s *MemStore) ListSnapshots(ctx context.Context, tenantID string) ([]Snapshot, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.ListSnapshots", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Snapshot
	for _, snap := range s.snapshots[tenantID] {
		meta := snap
		meta.FrozenTriples = nil
		out = append(out, meta)
	}
	return out, nil
}

// Neighbors implements Store: breadth-first traversal outward from entityID
// along both subject->object and object->subject edges, up to depth hops.
func (s *MemStore) Neighbors(ctx context.Context, tenantID, entityID string, depth int) ([]Triple, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.Neighbors", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := NormalizeURI(entityID)
	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []Triple
	seen := map[string]bool{}

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, t := range s.tenantTriples(tenantID) {
			var other string
			switch {
			case contains(frontier, t.SubjectID):
				other = t.ObjectID
			case contains(frontier, t.ObjectID):
				other = t.SubjectID
			default:
				continue
			}
			if !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, t)
			}
			if !visited[other] {
				visited[other] = true
				next = append(next, other)
			}
		}
		frontier = next
	}
	return out, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// FindPath implements Store: breadth-first shortest-path search returning
// the edge triples from fromID to toID, or an empty slice (not an error)
// when no path exists within maxDepth hops.
func (s *MemStore) FindPath(ctx context.Context, tenantID, fromID, toID string, maxDepth int) ([]Triple, error) {
	if tenantID == "" {
		return nil, coreerr.New(coreerr.KindInvalidArgument, "triple.FindPath", errEmptyTenant)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := NormalizeURI(fromID), NormalizeURI(toID)
	if from == to {
		return []Triple{}, nil
	}

	all := make([]Triple, 0)
	for _, t := range s.tenantTriples(tenantID) {
		all = append(all, t)
	}

	type step struct {
		node string
		path []Triple
	}
	visited := map[string]bool{from: true}
	queue := []step{{node: from}}

	for depth := 0; len(queue) > 0 && depth <= maxDepth; depth++ {
		var nextQueue []step
		for _, cur := range queue {
			for _, t := range all {
				var other string
				switch cur.node {
				case t.SubjectID:
					other = t.ObjectID
				case t.ObjectID:
					other = t.SubjectID
				default:
					continue
				}
				if visited[other] {
					continue
				}
				path := append(append([]Triple{}, cur.path...), t)
				if other == to {
					return path, nil
				}
				visited[other] = true
				nextQueue = append(nextQueue, step{node: other, path: path})
			}
		}
		queue = nextQueue
	}
	return []Triple{}, nil
}
