package password

import "errors"

var (
	// ErrInvalidHash is returned for malformed or unsupported encoded hashes.
	ErrInvalidHash = errors.New("password: invalid hash")

	// ErrPolicy is returned when a password violates the configured policy.
	ErrPolicy = errors.New("password: policy violation")
)
