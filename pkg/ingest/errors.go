package ingest

import "errors"

var errMissingRequiredField = errors.New("ingest: document_id, text, and tenant_id must be non-empty")
