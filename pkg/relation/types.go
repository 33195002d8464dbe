// Package relation implements the Relation Extractor Registry (C1) and
// Relation Mapping Pipeline (C2): pluggable extraction of typed relations
// between entities, followed by validation and deduplication.
package relation

import "time"

// Type is the closed enumeration of relation kinds a Relation may carry.
type Type string

// Recognized relation types. DomainSpecific is the only type that consults
// Relation.RelationName; Other is the fallback when no closed type fits.
const (
	AssociatedWith    Type = "AssociatedWith"
	WorksFor          Type = "WorksFor"
	LocatedIn         Type = "LocatedIn"
	HeadquarteredIn   Type = "HeadquarteredIn"
	HasTitle          Type = "HasTitle"
	HasSkill          Type = "HasSkill"
	Created           Type = "Created"
	PartOf            Type = "PartOf"
	Owns              Type = "Owns"
	SubsidiaryOf      Type = "SubsidiaryOf"
	AuthorOf          Type = "AuthorOf"
	Leads             Type = "Leads"
	ParticipatesIn    Type = "ParticipatesIn"
	OccurredBefore    Type = "OccurredBefore"
	OccurredAfter     Type = "OccurredAfter"
	DomainSpecific    Type = "DomainSpecific"
	Uses              Type = "Uses"
	DependsOn         Type = "DependsOn"
	SimilarTo         Type = "SimilarTo"
	References        Type = "References"
	SynonymOf         Type = "SynonymOf"
	ParentCategoryOf  Type = "ParentCategoryOf"
	SubcategoryOf     Type = "SubcategoryOf"
	ColumnOf          Type = "ColumnOf"
	TableOf           Type = "TableOf"
	HasAttribute      Type = "HasAttribute"
	Other             Type = "Other"
)

// Entity is an external input to the core: a named thing extracted from a
// source document, identified by (TenantID, ID).
type Entity struct {
	ID               string
	TenantID         string
	Type             string
	Name             string
	SourceDocumentID string
	Attributes       map[string]any
}

// Relation is an entity-to-entity assertion awaiting mapping to one or two
// triples by the Triple Mapper (C3).
type Relation struct {
	ID               string
	TenantID         string
	SourceEntityID   string
	TargetEntityID   string
	RelationType     Type
	RelationName     string // only meaningful when RelationType == DomainSpecific
	Confidence       float64
	IsDirectional    bool
	SourceDocumentID string
	SourceContext    string
	ExtractionMethod string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	IsVerified       bool
	Version          int
	Attributes       map[string]any
}

// key returns the deduplication key (source_entity_id, target_entity_id,
// relation_type) used by the pipeline's Deduplicate step.
func (r Relation) key() dedupKey {
	return dedupKey{source: r.SourceEntityID, target: r.TargetEntityID, relType: r.RelationType}
}

type dedupKey struct {
	source  string
	target  string
	relType Type
}
