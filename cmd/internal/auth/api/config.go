package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	MaxBodyBytes int64

	WebRefreshCookieEnabled bool
	RefreshCookieName       string
	CSRFCookieName          string
	CSRFHeaderName          string
	CookiePath              string
	CookieDomain            string
	CookieSecure            bool
	CookieSameSite          http.SameSite
}

// LoadConfigFromEnv loads API config from environment variables with safe
// defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:            envInt64("STEEN_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		WebRefreshCookieEnabled: envBool("STEEN_AUTH_WEB_COOKIES", true),
		RefreshCookieName:       envString("STEEN_AUTH_REFRESH_COOKIE", "steen_refresh"),
		CSRFCookieName:          envString("STEEN_AUTH_CSRF_COOKIE", "steen_csrf"),
		CSRFHeaderName:          envString("STEEN_AUTH_CSRF_HEADER", "X-CSRF-Token"),
		CookiePath:              envString("STEEN_AUTH_COOKIE_PATH", "/auth"),
		CookieDomain:            strings.TrimSpace(os.Getenv("STEEN_AUTH_COOKIE_DOMAIN")),
		CookieSecure:            envBool("STEEN_AUTH_COOKIE_SECURE", true),
		CookieSameSite:          parseSameSite(os.Getenv("STEEN_AUTH_COOKIE_SAMESITE")),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "", "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteStrictMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
