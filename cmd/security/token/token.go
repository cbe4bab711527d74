package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// HMACEnvKey names the env var holding the refresh-secret HMAC key.
// #nosec G101 -- an env var name, not a credential.
const HMACEnvKey = "STEEN_TOKEN_HMAC_KEY"

// HashRefreshSecretHex is the storage hash for refresh secrets: keyed
// HMAC-SHA256 when STEEN_TOKEN_HMAC_KEY is set, plain SHA-256 otherwise.
// The fallback exists for dev setups; production sets STEEN_REQUIRE_TOKEN_HMAC
// and the app refuses to start without a key.
func HashRefreshSecretHex(secret string) string {
	if key := envKey(); key != "" {
		return HashHMACSHA256Hex(secret, []byte(key))
	}
	return HashSHA256Hex(secret)
}

// HashRefreshSecretHexRequireHMAC hashes with no SHA fallback: a missing or
// short key is an error.
func HashRefreshSecretHexRequireHMAC(secret string, minBytes int) (string, error) {
	key, err := HMACKeyFromEnv(minBytes)
	if err != nil {
		return "", err
	}
	return HashHMACSHA256Hex(secret, key), nil
}

// HMACKeyFromEnv returns the configured key, enforcing a minimum byte length.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := envKey()
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	if minBytes > 0 && len(raw) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return []byte(raw), nil
}

// HMACEnabled reports whether a key is configured. It does not check length;
// policy checks go through HMACKeyFromEnv.
func HMACEnabled() bool { return envKey() != "" }

// HashSHA256Hex returns hex(SHA-256(s)).
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns hex(HMAC-SHA256(s, key)).
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

func envKey() string {
	return strings.TrimSpace(os.Getenv(HMACEnvKey))
}
