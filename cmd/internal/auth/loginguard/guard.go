package loginguard

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid loginguard config")

// Config bounds the failure window.
type Config struct {
	// Threshold is the failure count at which logins lock out.
	Threshold int
	// Window is how far back failures count.
	Window time.Duration
}

// DefaultConfig returns the default lockout policy: 5 failures in 15 minutes.
func DefaultConfig() Config {
	return Config{Threshold: 5, Window: 15 * time.Minute}
}

// LoadConfigFromEnv reads STEEN_AUTH_LOCKOUT_THRESHOLD and
// STEEN_AUTH_LOCKOUT_WINDOW, falling back to DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("STEEN_AUTH_LOCKOUT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, ErrConfig
		}
		cfg.Threshold = n
	}
	if v := os.Getenv("STEEN_AUTH_LOCKOUT_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Window = d
	}
	return cfg, nil
}

// Guard is the lockout check consulted before every credential verification.
type Guard interface {
	// IsLockedOut reports whether the account has reached the failure
	// threshold inside the window ending at "now".
	IsLockedOut(ctx context.Context, userID string, now time.Time) (bool, error)

	// RecordFailure appends one failed attempt at "now".
	RecordFailure(ctx context.Context, userID string, now time.Time) error

	// Reset clears the account's failure window after a successful login.
	Reset(ctx context.Context, userID string) error
}
