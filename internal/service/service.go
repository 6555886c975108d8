// Package service contains the business logic layer of the application.
//
// The layers are:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so tests inject the
// in-memory fakes from the _test files. They return apperror values and know
// nothing about status codes: the handler package maps errors to HTTP.
//
// Ownership checks live here. A resource is always resolved by id first and
// the owner compared afterwards, so "does not exist" (404) and "not yours"
// (403) stay distinct.
package service

import (
	"errors"

	"github.com/sakif/content-hub/internal/apperror"
)

// List clamping shared by the paginated listings.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// writeFailed passes domain errors (conflicts, missing references) through
// unchanged and turns anything else into a storage error whose cause is
// echoed to the client.
func writeFailed(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Storage(op, err)
}

// isNotFound reports whether err is a repository miss.
func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}

// clampPage normalizes a limit/offset pair. A zero limit means "everything".
func clampPage(limit, offset int) (int, int) {
	if limit < 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}
