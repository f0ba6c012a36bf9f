package store

import "github.com/synapsed/synapse/internal/apperr"

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = apperr.New(apperr.NotFound, "not found")

// ErrConflict is returned when a unique constraint rejects a write.
var ErrConflict = apperr.New(apperr.Conflict, "conflict")
