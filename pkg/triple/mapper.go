package triple

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/Elias-fluent/Elias-fluent-SmartInsight-M004-sub004/pkg/relation"
)

// predicateSuffix maps the closed relation.Type set to its fixed URI suffix
// under OntologyBase.
var predicateSuffix = map[relation.Type]string{
	relation.AssociatedWith:   "associatedWith",
	relation.WorksFor:         "worksFor",
	relation.LocatedIn:        "locatedIn",
	relation.HeadquarteredIn:  "headquarteredIn",
	relation.HasTitle:         "hasTitle",
	relation.HasSkill:         "hasSkill",
	relation.Created:          "created",
	relation.PartOf:           "partOf",
	relation.Owns:             "owns",
	relation.SubsidiaryOf:     "subsidiaryOf",
	relation.AuthorOf:         "authorOf",
	relation.Leads:            "leads",
	relation.ParticipatesIn:   "participatesIn",
	relation.OccurredBefore:   "occurredBefore",
	relation.OccurredAfter:    "occurredAfter",
	relation.Uses:             "uses",
	relation.DependsOn:        "dependsOn",
	relation.SimilarTo:        "similarTo",
	relation.References:       "references",
	relation.SynonymOf:        "synonymOf",
	relation.ParentCategoryOf: "parentCategoryOf",
	relation.SubcategoryOf:    "subcategoryOf",
	relation.ColumnOf:         "columnOf",
	relation.TableOf:          "tableOf",
	relation.HasAttribute:     "hasAttribute",
	relation.Other:            "hasRelation",
}

// PredicateURI computes the predicate URI for a relation type, per the fixed
// mapping table for closed types and `{base}/domain/{percent-encoded name}`
// for DomainSpecific.
func PredicateURI(relType relation.Type, relationName string) string {
	if relType == relation.DomainSpecific {
		return OntologyBase + "/domain/" + url.PathEscape(relationName)
	}
	if suffix, ok := predicateSuffix[relType]; ok {
		return OntologyBase + "/" + suffix
	}
	return OntologyBase + "/" + predicateSuffix[relation.Other]
}

// DefaultGraphURI returns the per-tenant default graph URI.
func DefaultGraphURI(tenantID string) string {
	return OntologyBase + "/graph/tenant/" + tenantID
}

// NormalizeURI applies the URI normalization rule: prefix bare identifiers
// with http:// unless they already carry a recognized scheme. Literals are
// never passed through this function.
func NormalizeURI(id string) string {
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") || strings.HasPrefix(id, "urn:") {
		return id
	}
	return "http://" + id
}

// inverseSuffix marks a mapped inverse triple's ID, appended to the
// originating triple's ID.
const inverseSuffix = "#inverse"

// Map converts a single relation into one triple, or two when the relation
// is non-directional (the second being the subject/object-swapped inverse,
// sharing the predicate and carrying ID {original}#inverse).
func Map(r relation.Relation, graphURI string) []Triple {
	if graphURI == "" {
		graphURI = DefaultGraphURI(r.TenantID)
	}
	predicate := PredicateURI(r.RelationType, r.RelationName)

	base := Triple{
		ID:               r.ID,
		TenantID:         r.TenantID,
		SubjectID:        NormalizeURI(r.SourceEntityID),
		PredicateURI:     predicate,
		ObjectID:         NormalizeURI(r.TargetEntityID),
		IsLiteral:        false,
		GraphURI:         graphURI,
		Confidence:       r.Confidence,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		SourceDocumentID: r.SourceDocumentID,
		IsVerified:       r.IsVerified,
		Version:          1,
		Provenance: map[string]any{
			"source_context":    r.SourceContext,
			"extraction_method": r.ExtractionMethod,
			"relation_id":       r.ID,
		},
	}
	for k, v := range r.Attributes {
		if _, reserved := base.Provenance[k]; reserved {
			continue
		}
		base.Provenance[k] = v
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = time.Now()
		base.UpdatedAt = base.CreatedAt
	}

	triples := []Triple{base}
	if !r.IsDirectional {
		inverse := base
		inverse.ID = base.ID + inverseSuffix
		inverse.SubjectID = base.ObjectID
		inverse.ObjectID = base.SubjectID
		triples = append(triples, inverse)
	}
	return triples
}

// Mapper converts validated relations into triples and writes them through
// to a Store, implementing relation.Converter so the extraction pipeline can
// auto-convert its surviving output.
type Mapper struct {
	store Store
}

// NewMapper constructs a Mapper that writes through to store.
func NewMapper(store Store) *Mapper {
	return &Mapper{store: store}
}

var _ relation.Converter = (*Mapper)(nil)

// ConvertAndStore implements relation.Converter: it maps each relation to
// its triple(s), defaulting graphURI to the tenant's default graph when
// empty, and adds them to the store. A failure on one relation does not
// abort the remainder; the first error encountered is returned after all
// relations have been attempted.
func (m *Mapper) ConvertAndStore(ctx context.Context, relations []relation.Relation, tenantID, graphURI string) error {
	var all []Triple
	for _, r := range relations {
		all = append(all, Map(r, graphURI)...)
	}
	if len(all) == 0 {
		return nil
	}
	_, err := m.store.AddTriples(ctx, tenantID, all)
	return err
}
