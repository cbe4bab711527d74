package identity

import (
	"github.com/lsteen89/steenauth/cmd/security/password"
)

// HashPassword hashes a plaintext password with the configured Argon2id parameters.
func HashPassword(plain string) (string, error) {
	return password.FromEnv().Hash(plain)
}

// VerifyPassword checks a plaintext password against a stored PHC hash.
// Malformed hashes verify as false with an error; mismatches are (false, nil).
func VerifyPassword(plain, encodedHash string) (bool, error) {
	return password.FromEnv().Verify(encodedHash, plain)
}
