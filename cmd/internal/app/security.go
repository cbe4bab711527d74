package app

import (
	"errors"

	"github.com/lsteen89/steenauth/cmd/security/token"
)

// ValidateSecurityConfig checks the runtime security policy before anything
// connects. With STEEN_REQUIRE_TOKEN_HMAC=true, refresh-secret hashing must
// be keyed: the HMAC key must be present, at least 32 bytes, and the hasher
// must actually be in HMAC mode.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("STEEN_REQUIRE_TOKEN_HMAC=true but STEEN_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("STEEN_REQUIRE_TOKEN_HMAC=true but STEEN_TOKEN_HMAC_KEY is shorter than 32 bytes")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("STEEN_REQUIRE_TOKEN_HMAC=true but the secret hasher is not in HMAC mode")
	}
	return nil
}
