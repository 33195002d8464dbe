// Package coreerr defines the closed set of error kinds shared by every
// component of the knowledge platform core, so that callers can branch on
// failure semantics without depending on a specific component's package.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of the ways an operation can fail.
type Kind int

const (
	// KindInvalidArgument means the caller supplied a malformed or missing
	// required input (nil text, empty tenant, from_version >= to_version, ...).
	KindInvalidArgument Kind = iota
	// KindNotFound means the referenced triple, graph, or snapshot does not
	// exist for the caller's tenant.
	KindNotFound
	// KindTenantMismatch means a lookup found a record owned by a different
	// tenant. Callers should treat this identically to KindNotFound —
	// existence must never leak across tenants.
	KindTenantMismatch
	// KindDimensionMismatch means a vector's length does not match the
	// target collection's configured dimension.
	KindDimensionMismatch
	// KindTransient means a retryable network/timeout/5xx failure occurred
	// against the vector index or embedding backend.
	KindTransient
	// KindInternal means an invariant was violated (e.g. embedding count
	// != chunk count) and is only surfaced after retries are exhausted.
	KindInternal
	// KindCanceled means the operation's context was canceled or its
	// deadline was exceeded.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindTenantMismatch:
		return "tenant_mismatch"
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindTransient:
		return "transient"
	case KindInternal:
		return "internal"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// CoreError is the concrete error type returned by every component. Op names
// the failing operation (e.g. "triple.AddTriple"); Err is the wrapped cause,
// which may be nil when Kind alone is descriptive enough.
type CoreError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *CoreError) Unwrap() error { return e.Err }

// New constructs a CoreError with the given kind, operation name, and
// optional wrapped cause.
func New(kind Kind, op string, err error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a CoreError of the given kind (or wraps one).
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, defaulting to KindInternal when
// err is not a CoreError.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}
