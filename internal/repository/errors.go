// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to operate on a reservation owned by someone else, while
// ErrConflict signals that a version-checked write lost a race with a
// concurrent writer and nothing was changed.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a compare-and-swap update matched no row,
// meaning another transaction mutated the row first, or when a
// conditional insert found conflicting state. Callers either retry with
// fresh state or treat the loss as a benign no-op, depending on the
// operation.
var ErrConflict = errors.New("conflict")
