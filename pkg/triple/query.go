package triple

import "time"

// SortField enumerates the columns a structural query may sort by.
type SortField string

const (
	SortCreatedAt    SortField = "created_at"
	SortUpdatedAt    SortField = "updated_at"
	SortConfidence   SortField = "confidence"
	SortSubjectID    SortField = "subject_id"
	SortPredicateURI SortField = "predicate_uri"
	SortObjectID     SortField = "object_id"
	SortID           SortField = "id"
	SortVersion      SortField = "version"
)

// StructuralQuery is the filter/sort/page input to Store.Query.
type StructuralQuery struct {
	SubjectID        string
	PredicateURI     string
	ObjectID         string
	GraphURI         string
	MinConfidence    float64
	HasMinConfidence bool
	IsVerified       *bool
	SourceDocumentID string
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
	SortBy           SortField
	SortAscending    bool
	Offset           int
	Limit            int
}

// QueryResult is the output of Store.Query.
type QueryResult struct {
	Triples     []Triple
	TotalCount  int
	HasMore     bool
	QueryTimeMs float64
}

// TemporalMode selects which of the four mutually-exclusive temporal
// selectors a TemporalQuery uses.
type TemporalMode string

const (
	TemporalVersionNumber TemporalMode = "version_number"
	TemporalAsOfDate      TemporalMode = "as_of_date"
	TemporalRange         TemporalMode = "range"
	TemporalCurrent       TemporalMode = "current"
)

// TemporalQuery combines a structural sub-query with a time selector and
// version-history filters.
type TemporalQuery struct {
	Structural StructuralQuery

	Mode          TemporalMode
	VersionNumber int
	AsOfDate      time.Time
	FromDate      time.Time
	ToDate        time.Time

	ChangedByUserID      string
	ChangeTypes          []ChangeType
	IncludeDeleted       bool
	IncludeAllVersions   bool
	MaxVersionsPerTriple int
	DiffOnly             bool
}

// TemporalResult is the output of Store.QueryTemporal: a mix of materialized
// live Triples (when AsOfDate is set), Version records, and Diffs (when
// DiffOnly is requested).
type TemporalResult struct {
	Triples  []Triple
	Versions []TripleVersion
	Diffs    []Diff
}

// PropertyChange describes a single field's before/after value in a Diff.
type PropertyChange[T any] struct {
	Field    string
	Before   T
	After    T
	Changed  bool
}

// Diff is the field-by-field comparison between two versions of a triple.
type Diff struct {
	TripleID        string
	FromVersion     int
	ToVersion       int
	Subject         PropertyChange[string]
	Predicate       PropertyChange[string]
	Object          PropertyChange[string]
	IsLiteral       PropertyChange[bool]
	LiteralDataType PropertyChange[string]
	LanguageTag     PropertyChange[string]
	GraphURI        PropertyChange[string]
	Confidence      PropertyChange[float64]
	SourceDocument  PropertyChange[string]
	IsVerified      PropertyChange[bool]
}

// change is a small helper building a PropertyChange[T] for comparable T.
func change[T comparable](field string, before, after T) PropertyChange[T] {
	return PropertyChange[T]{Field: field, Before: before, After: after, Changed: before != after}
}
