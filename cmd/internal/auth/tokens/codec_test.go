package tokens

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

const testSeedHex = "4242424242424242424242424242424242424242424242424242424242424242"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Ed25519SeedHex = testSeedHex
	return cfg
}

func mustCodec(t *testing.T, cfg Config) *Codec {
	t.Helper()
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCodec_IssueParseRoundTrip(t *testing.T) {
	c := mustCodec(t, testConfig())
	now := time.Now()

	tok, jti, exp, err := c.Issue("user-1", "sess-1", []string{"admin"}, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if jti == "" {
		t.Fatalf("empty token id")
	}
	if want := now.Add(15 * time.Minute); !exp.Equal(want) {
		t.Fatalf("exp = %v, want %v", exp, want)
	}

	claims, err := c.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "sess-1" || claims.TokenID != jti {
		t.Fatalf("claims = %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Fatalf("roles = %v", claims.Roles)
	}
	if claims.Issuer != "steenauth" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestCodec_UniqueTokenIDs(t *testing.T) {
	c := mustCodec(t, testConfig())
	now := time.Now()

	_, a, _, err := c.Issue("user-1", "sess-1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, b, _, err := c.Issue("user-1", "sess-1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if a == b {
		t.Fatalf("token ids must be unique, got %q twice", a)
	}
}

func TestCodec_ParseRejections(t *testing.T) {
	cfg := testConfig()
	c := mustCodec(t, cfg)
	now := time.Now()

	expired, _, _, err := c.Issue("user-1", "sess-1", nil, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	otherSeed := strings.Repeat("17", 32)
	otherCfg := cfg
	otherCfg.Ed25519SeedHex = otherSeed
	forged, _, _, err := mustCodec(t, otherCfg).Issue("user-1", "sess-1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wrongAud := cfg
	wrongAud.Audience = "someone-else"
	badAud, _, _, err := mustCodec(t, wrongAud).Issue("user-1", "sess-1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wrongIss := cfg
	wrongIss.Issuer = "impostor"
	badIss, _, _, err := mustCodec(t, wrongIss).Issue("user-1", "sess-1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	good, _, _, err := c.Issue("user-1", "sess-1", nil, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tampered := good[:len(good)-4] + "AAAA"

	cases := map[string]string{
		"expired":         expired,
		"wrong key":       forged,
		"wrong audience":  badAud,
		"wrong issuer":    badIss,
		"tampered":        tampered,
		"garbage":         "not.a.token",
		"empty":           "",
		"header only":     "eyJhbGciOiJFZERTQSJ9",
		"none alg header": "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1c2VyLTEifQ.",
	}
	for name, tok := range cases {
		if _, err := c.Parse(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestCodec_ClockSkewLeeway(t *testing.T) {
	cfg := testConfig()
	cfg.ClockSkew = time.Minute
	c := mustCodec(t, cfg)

	// Issued slightly in the future; leeway must absorb it.
	tok, _, _, err := c.Issue("user-1", "sess-1", nil, time.Now().Add(30*time.Second))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Parse(tok); err != nil {
		t.Fatalf("Parse with skew: %v", err)
	}
}

type staticBlacklist struct {
	listed map[string]bool
	err    error
}

func (b *staticBlacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	return b.listed[tokenID], nil
}

func TestValidator_RejectsBlacklisted(t *testing.T) {
	c := mustCodec(t, testConfig())
	tok, jti, _, err := c.Issue("user-1", "sess-1", nil, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	v := NewValidator(c, &staticBlacklist{listed: map[string]bool{jti: true}})
	if _, err := v.Validate(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidator_FailsClosedOnBackendError(t *testing.T) {
	c := mustCodec(t, testConfig())
	tok, _, _, err := c.Issue("user-1", "sess-1", nil, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	v := NewValidator(c, &staticBlacklist{err: errors.New("redis down")})
	if _, err := v.Validate(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on backend failure, got %v", err)
	}
}

func TestValidator_NilBlacklistPassesThrough(t *testing.T) {
	c := mustCodec(t, testConfig())
	tok, _, _, err := c.Issue("user-1", "sess-1", nil, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	v := NewValidator(c, nil)
	claims, err := v.Validate(context.Background(), tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestNewCodec_BadSeed(t *testing.T) {
	for _, seed := range []string{"", "zz", "abcd"} {
		cfg := testConfig()
		cfg.Ed25519SeedHex = seed
		if _, err := NewCodec(cfg); !errors.Is(err, ErrConfig) {
			t.Fatalf("seed %q: expected ErrConfig, got %v", seed, err)
		}
	}
}

func TestNewRefreshSecret(t *testing.T) {
	plain, hashHex, err := NewRefreshSecret(32)
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	if plain == "" || len(hashHex) != 64 {
		t.Fatalf("plain=%q hash=%q", plain, hashHex)
	}
	if strings.ContainsAny(plain, "+/=") {
		t.Fatalf("secret must be URL-safe without padding: %q", plain)
	}
	if HashRefreshSecret(plain) != hashHex {
		t.Fatalf("presented-secret hash must match the stored hash")
	}

	other, _, err := NewRefreshSecret(32)
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	if other == plain {
		t.Fatalf("secrets must not repeat")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STEEN_JWT_ED25519_SEED_HEX", testSeedHex)
	t.Setenv("STEEN_JWT_ISSUER", "authsvc")
	t.Setenv("STEEN_AUTH_ACCESS_TTL", "5m")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "authsvc" || cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("STEEN_AUTH_ACCESS_TTL", "never")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}

	t.Setenv("STEEN_AUTH_ACCESS_TTL", "5m")
	t.Setenv("STEEN_JWT_ED25519_SEED_HEX", "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig without a seed, got %v", err)
	}
}
