package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Encoded form: $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
// (PHC string, raw std base64).

// Hash applies the policy, derives an Argon2id key with a fresh salt, and
// returns the PHC-encoded hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	key := c.Params.derive(password, salt, c.Params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		c.Params.MemoryKiB, c.Params.Iterations, c.Params.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. (false, nil) means a
// clean mismatch; ErrInvalidHash covers malformed or unsupported hashes and
// hashes whose cost parameters exceed the configured ceiling, so an
// attacker-supplied hash string cannot force pathological work.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	params, salt, want, err := decode(encodedHash)
	if err != nil {
		return false, err
	}
	if exceedsCostCeiling(params, c.Params) {
		return false, ErrInvalidHash
	}

	got := params.derive(password, salt, uint32(len(want))) // #nosec G115 -- length bounded by decode
	if subtle.ConstantTimeCompare(got, want) == 1 {
		return true, nil
	}
	return false, nil
}

func (p Argon2idParams) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
}

// Hashes created under older, cheaper settings still verify; anything far
// above the configured costs is refused.
func exceedsCostCeiling(got, limit Argon2idParams) bool {
	return got.MemoryKiB > limit.MemoryKiB*2 ||
		got.Iterations > limit.Iterations*2 ||
		got.Parallelism > limit.Parallelism*2 ||
		got.SaltLength < 8 || got.SaltLength > 64 ||
		got.KeyLength < 16 || got.KeyLength > 128
}

func decode(encoded string) (Argon2idParams, []byte, []byte, error) {
	fail := func() (Argon2idParams, []byte, []byte, error) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v=19" {
		return fail()
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return fail()
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return fail()
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return fail()
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return fail()
	}

	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}
