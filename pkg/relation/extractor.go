package relation

import "context"

// Extractor declares the relation types it can emit and extracts candidate
// Relations from a body of text and its known entities. Implementations
// must be stateless or internally synchronized: the pipeline invokes
// registered extractors concurrently.
type Extractor interface {
	// Name identifies the extractor for filtering and logging.
	Name() string

	// SupportedTypes lists the RelationTypes this extractor may emit.
	SupportedTypes() []Type

	// Validate reports whether relType is a plausible relation between
	// source and target, given their declared entity types. Consulted by
	// the pipeline only when validate_entity_types is enabled.
	Validate(source, target Entity, relType Type) bool

	// Extract returns candidate Relations found in text given the known
	// entities. Errors are recoverable: the pipeline logs them and
	// continues with the remaining extractors.
	Extract(ctx context.Context, text string, entities []Entity, sourceDocumentID, tenantID string) ([]Relation, error)
}
