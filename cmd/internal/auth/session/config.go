package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines the two expiry horizons and the collision-retry bound for
// refresh-token rows.
type Config struct {
	// RollingTTL is the window added to "now" on every successful rotation,
	// clamped to the absolute ceiling.
	RollingTTL time.Duration

	// AbsoluteTTL bounds a session's total lifetime. The ceiling is fixed at
	// creation and never recomputed.
	AbsoluteTTL time.Duration

	// SecretRetryMax bounds how many times an insert is retried with a fresh
	// secret after a hash collision before surfacing a fatal error.
	SecretRetryMax int
}

// DefaultConfig returns defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		RollingTTL:     30 * 24 * time.Hour,
		AbsoluteTTL:    90 * 24 * time.Hour,
		SecretRetryMax: 3,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables:
//
//	STEEN_AUTH_REFRESH_ROLLING_TTL
//	STEEN_AUTH_REFRESH_ABSOLUTE_TTL
//	STEEN_AUTH_SECRET_RETRY_MAX
//
// Returns ErrConfig if a value is invalid or the rolling window exceeds the
// absolute ceiling.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("STEEN_AUTH_REFRESH_ROLLING_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RollingTTL = d
	}

	if v := os.Getenv("STEEN_AUTH_REFRESH_ABSOLUTE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AbsoluteTTL = d
	}

	if v := os.Getenv("STEEN_AUTH_SECRET_RETRY_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			return Config{}, ErrConfig
		}
		cfg.SecretRetryMax = n
	}

	if cfg.RollingTTL > cfg.AbsoluteTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

// ClampRolling computes the rolling expiry for a rotation at "now":
// min(now+rolling, absolute). The absolute ceiling always wins.
func ClampRolling(now time.Time, rolling time.Duration, absolute time.Time) time.Time {
	next := now.Add(rolling)
	if next.After(absolute) {
		return absolute
	}
	return next
}
