package tokens

import "errors"

var (
	// ErrInvalidToken is returned when an access token fails verification.
	// Structural errors, bad signatures, expiry, and blacklisted ids all
	// collapse into this one error; callers must not learn which check failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid codec configuration.
	ErrConfig = errors.New("invalid token config")
)
