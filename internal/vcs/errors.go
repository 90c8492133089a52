// Package vcs implements the version history and temporal reconstruction
// engine: content hashing, per-file version chains, textual diffs, and
// point-in-time repository state queries. All durable state lives in an
// external store passed in explicitly; the engine itself is stateless
// between calls and performs no authorization.
package vcs

import (
	"errors"
)

var (
	// ErrNotFound indicates the referenced repository, file, or version
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or missing required input.
	ErrValidation = errors.New("invalid input")

	// ErrConflict indicates a version-number allocation race was lost.
	// Writers retry the read-head/append sequence; callers never see it.
	ErrConflict = errors.New("version number conflict")

	// ErrIntegrity indicates a stored version's hash does not match its
	// content. This is fatal store corruption and is never swallowed.
	ErrIntegrity = errors.New("content hash mismatch")
)
