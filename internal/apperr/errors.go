// Package apperr holds the error sentinels shared across packages.
// Wrap them with %w and test with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrConnection means the remote store is unreachable or refused the
	// credentials. Fatal to the triggering operation.
	ErrConnection = errors.New("remote connection failed")

	// ErrNotConnected is returned when an operation needs a remote and none
	// is configured.
	ErrNotConnected = errors.New("remote not connected")

	// ErrPrecondition covers inputs the operation cannot proceed with: a
	// missing book body while offline, a duplicate import, a mismatched
	// annotation export.
	ErrPrecondition = errors.New("precondition failed")

	// ErrPartialSync marks a sync run whose pull phase succeeded but whose
	// push phase did not. Re-running the sync resolves it.
	ErrPartialSync = errors.New("sync to remote failed, run sync again")
)

// Connection wraps err as a connection failure.
func Connection(err error) error {
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

// Precondition builds a precondition failure with a formatted reason.
func Precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// PartialSync wraps err as a failed push phase.
func PartialSync(err error) error {
	return fmt.Errorf("%w: %w", ErrPartialSync, err)
}
