// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrOutOfRange = errors.New("line out of range")
	ErrReadOnly   = errors.New("document is read-only")
)
