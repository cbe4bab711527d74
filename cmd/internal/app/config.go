package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// If true, /readyz returns 503 unless Redis is configured and reachable.
	// The database is always required for readiness.
	ReadinessRequireRedis bool

	// Security policy: if true, STEEN_TOKEN_HMAC_KEY MUST be set (>= 32
	// bytes) and refresh-secret hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("STEEN_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("STEEN_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("STEEN_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("STEEN_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("STEEN_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("STEEN_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("STEEN_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("STEEN_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("STEEN_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("STEEN_DB_MIN_CONNS", 0),

		RedisAddr:     EnvString("STEEN_REDIS_ADDR", ""),
		RedisPassword: EnvString("STEEN_REDIS_PASSWORD", ""),
		RedisDB:       envIntAllowZero("STEEN_REDIS_DB", 0),

		ReadinessRequireRedis: EnvBool("STEEN_READINESS_REQUIRE_REDIS", false),

		RequireTokenHMAC: EnvBool("STEEN_REQUIRE_TOKEN_HMAC", false),
	}
}

// envIntAllowZero accepts an explicit zero, which EnvInt treats as unset.
func envIntAllowZero(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
