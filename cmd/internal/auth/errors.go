package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown accounts and wrong passwords. The
	// two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is returned while the failed-login window is over
	// threshold.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrInvalidRefreshToken covers malformed, unknown, expired, revoked, and
	// already-rotated refresh tokens. A holder of a stale token learns
	// nothing beyond "log in again".
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidAccessToken is returned for tokens that fail validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
)
