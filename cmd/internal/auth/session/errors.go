package session

import "errors"

var (
	// ErrNotFound is returned when no usable row matches a lookup. Missing,
	// revoked, and expired rows are indistinguishable to callers.
	ErrNotFound = errors.New("session not found")

	// ErrSecretConflict is returned when an insert collides on the unique
	// secret hash. Recovery is well-defined: regenerate the secret and retry
	// the write, up to a bound.
	ErrSecretConflict = errors.New("refresh secret hash conflict")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
