package triple

import "errors"

var (
	// ErrNotFound is returned when a triple, graph, or snapshot does not
	// exist for the requesting tenant.
	ErrNotFound = errors.New("triple: not found")
	// ErrTenantMismatch is returned when a record exists but is owned by a
	// different tenant. Store implementations must treat this identically
	// to ErrNotFound at the wire level so existence never leaks cross-tenant.
	ErrTenantMismatch = errors.New("triple: tenant mismatch")

	errEmptyTenant = errors.New("triple: tenant_id must not be empty")
	errEmptyID     = errors.New("triple: id must not be empty")
	errBadVersionRange = errors.New("triple: from_version must be less than to_version")
)
