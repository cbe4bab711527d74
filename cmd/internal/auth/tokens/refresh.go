package tokens

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/lsteen89/steenauth/cmd/security/token"
)

// NewRefreshSecret generates an opaque refresh secret and its storage hash.
//
// The plaintext goes to the client and is never persisted or logged; only the
// hex hash is stored. nBytes must provide at least 128 bits of entropy; the
// config floor is 16 bytes.
func NewRefreshSecret(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding.
	plain = base64.RawURLEncoding.EncodeToString(b)

	hashHex = token.HashRefreshSecretHex(plain) // 64 hex chars

	return plain, hashHex, nil
}

// HashRefreshSecret returns the storage hash for a client-presented secret.
func HashRefreshSecret(plain string) string {
	return token.HashRefreshSecretHex(plain)
}
