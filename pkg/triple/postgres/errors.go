package postgres

import (
	"errors"

	"github.com/google/uuid"
)

var (
	errEmptyTenant     = errors.New("triple: tenant_id must not be empty")
	errEmptyID         = errors.New("triple: id must not be empty")
	errBadVersionRange = errors.New("triple: from_version must be less than to_version")
)

func generateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
