package tokens

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for access-token issuance.
//
// It is environment-driven so production deployments can tune lifetimes and
// identity values without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// Audience is the value set in the "aud" claim. Consumers validate it exactly.
	Audience string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// ClockSkew is the leeway applied to time-based claims during verification.
	ClockSkew time.Duration

	// RefreshSecretBytes defines the number of random bytes used to generate
	// opaque refresh secrets. 32 bytes = 256 bits of entropy.
	RefreshSecretBytes int

	// Ed25519SeedHex is the hex-encoded Ed25519 seed used to sign access tokens.
	Ed25519SeedHex string
}

// DefaultConfig returns a secure default configuration suitable for development.
func DefaultConfig() Config {
	return Config{
		Issuer:             "steenauth",
		Audience:           "steenbudget",
		AccessTokenTTL:     15 * time.Minute,
		ClockSkew:          30 * time.Second,
		RefreshSecretBytes: 32,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - STEEN_JWT_ED25519_SEED_HEX
//
// Optional:
//   - STEEN_JWT_ISSUER
//   - STEEN_JWT_AUDIENCE
//   - STEEN_AUTH_ACCESS_TTL
//   - STEEN_AUTH_CLOCK_SKEW
//   - STEEN_AUTH_REFRESH_SECRET_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("STEEN_JWT_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("STEEN_JWT_AUDIENCE"); v != "" {
		cfg.Audience = v
	}

	if v := os.Getenv("STEEN_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("STEEN_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("STEEN_AUTH_REFRESH_SECRET_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshSecretBytes = n
	}

	cfg.Ed25519SeedHex = os.Getenv("STEEN_JWT_ED25519_SEED_HEX")
	if cfg.Ed25519SeedHex == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
