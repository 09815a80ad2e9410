// Package sentinel holds the storage-level errors stores return. Services
// translate them into domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound means the key has no record.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a version check failed or the key already exists.
	ErrConflict = errors.New("conflict")
	// ErrInsufficient means a compare-and-reserve found less than requested.
	ErrInsufficient = errors.New("insufficient")
)
