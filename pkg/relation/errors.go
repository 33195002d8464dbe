package relation

import "errors"

var (
	errEmptyText   = errors.New("relation: text must not be empty")
	errNilEntities = errors.New("relation: entities must not be nil")
	errEmptyTenant = errors.New("relation: tenant_id must not be empty")
)
