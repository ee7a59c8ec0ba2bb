package store

import (
	"errors"

	domainerrors "github.com/ilbumi/satin/internal/errors"
)

// Sentinel errors returned by backends and collections. They share codes
// with the domain errors so handlers can map them without knowing the store.
var (
	ErrNotFound      = domainerrors.NotFound("document not found")
	ErrAlreadyExists = domainerrors.AlreadyExists("document already exists")

	// ErrWriteConflict is returned when a read-modify-write keeps losing
	// to concurrent writers.
	ErrWriteConflict = domainerrors.Conflict("too many concurrent writes, retry later")
)

// Tag hierarchy errors reported by TagRepository.MoveTag.
var (
	ErrTagNotFound = domainerrors.NotFound("tag not found")
	ErrTagCycle    = domainerrors.Conflict("tag cannot be moved under itself or one of its descendants")
)

// ErrInvalidTransition is returned when a status change is not allowed from
// the document's current status.
var ErrInvalidTransition = domainerrors.Conflict("status transition not allowed")

// IsNotFound reports whether err is a missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
