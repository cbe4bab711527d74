package password

import (
	"os"
	"strconv"
	"strings"
)

// Argon2idParams defines the Argon2id cost parameters.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Config holds hashing parameters and password policy.
type Config struct {
	Params Argon2idParams

	// MinLength is the minimum accepted password length in runes.
	MinLength int
}

// DefaultConfig returns parameters suitable for interactive logins.
func DefaultConfig() Config {
	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		MinLength: 8,
	}
}

// FromEnv returns the default configuration with optional env overrides:
//
//	STEEN_PASSWORD_MEMORY_KIB, STEEN_PASSWORD_ITERATIONS,
//	STEEN_PASSWORD_PARALLELISM, STEEN_PASSWORD_MIN_LENGTH
//
// Invalid values fall back to defaults rather than failing startup.
func FromEnv() Config {
	cfg := DefaultConfig()

	if v := envUint32("STEEN_PASSWORD_MEMORY_KIB"); v > 0 {
		cfg.Params.MemoryKiB = v
	}
	if v := envUint32("STEEN_PASSWORD_ITERATIONS"); v > 0 {
		cfg.Params.Iterations = v
	}
	if v := envUint32("STEEN_PASSWORD_PARALLELISM"); v > 0 && v <= 255 {
		cfg.Params.Parallelism = uint8(v)
	}
	if v := envUint32("STEEN_PASSWORD_MIN_LENGTH"); v >= 8 {
		cfg.MinLength = int(v)
	}

	return cfg
}

// Validate applies the password policy.
func (c Config) Validate(password string) error {
	if len([]rune(password)) < c.MinLength {
		return ErrPolicy
	}
	return nil
}

func envUint32(key string) uint32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
