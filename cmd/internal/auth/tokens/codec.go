package tokens

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the identity envelope propagated across HTTP/WS.
type AccessClaims struct {
	UserID    string
	SessionID string
	Roles     []string
	TokenID   string // "jti"; the blacklist key for early revocation.
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

type wireClaims struct {
	SessionID string   `json:"sid"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Codec creates and parses access tokens. It is stateless and safe for
// concurrent use.
type Codec struct {
	cfg    Config
	signer ed25519.PrivateKey
	public ed25519.PublicKey
	now    func() time.Time
}

// NewCodec builds a Codec from configuration. The Ed25519 seed must be a
// 32-byte hex string.
func NewCodec(cfg Config) (*Codec, error) {
	seed, err := hex.DecodeString(cfg.Ed25519SeedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, ErrConfig
	}
	if cfg.Issuer == "" || cfg.Audience == "" || cfg.AccessTokenTTL <= 0 {
		return nil, ErrConfig
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Codec{
		cfg:    cfg,
		signer: priv,
		public: priv.Public().(ed25519.PublicKey),
		now:    time.Now,
	}, nil
}

// WithClock overrides the validation time source, for tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Issue signs a new access token for (userID, sessionID) with a freshly
// generated unique id, so the token can later be blacklisted independently.
func (c *Codec) Issue(userID, sessionID string, roles []string, now time.Time) (token string, tokenID string, exp time.Time, err error) {
	exp = now.Add(c.cfg.AccessTokenTTL)
	tokenID = uuid.NewString()

	claims := wireClaims{
		SessionID: sessionID,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := tok.SignedString(c.signer)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, tokenID, exp, nil
}

// Parse verifies signature, structure, issuer, audience, and time claims.
// It performs no I/O; blacklist checks are composed by Validator.
// All failures collapse into ErrInvalidToken.
func (c *Codec) Parse(token string) (AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.cfg.ClockSkew),
		jwt.WithTimeFunc(c.now),
	)

	parsed, err := parser.ParseWithClaims(token, &wireClaims{}, func(t *jwt.Token) (any, error) {
		return c.public, nil
	})
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}

	wc, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, ErrInvalidToken
	}
	if wc.Subject == "" || wc.SessionID == "" || wc.ID == "" {
		return AccessClaims{}, ErrInvalidToken
	}

	out := AccessClaims{
		UserID:    wc.Subject,
		SessionID: wc.SessionID,
		Roles:     wc.Roles,
		TokenID:   wc.ID,
		Issuer:    wc.Issuer,
	}
	if wc.IssuedAt != nil {
		out.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		out.ExpiresAt = wc.ExpiresAt.Time
	}
	return out, nil
}

// Blacklist is the read side of the revoked-token set consulted on every
// validation.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// Validator composes pure token parsing with the blacklist lookup.
type Validator struct {
	codec *Codec
	bl    Blacklist
}

// NewValidator builds a Validator. bl may be nil only in tests that
// explicitly exercise the pure path.
func NewValidator(codec *Codec, bl Blacklist) *Validator {
	return &Validator{codec: codec, bl: bl}
}

// Validate verifies an access token end to end. Fails closed: a blacklist
// backend error rejects the token rather than admitting it.
func (v *Validator) Validate(ctx context.Context, token string) (AccessClaims, error) {
	claims, err := v.codec.Parse(token)
	if err != nil {
		return AccessClaims{}, err
	}
	if v.bl != nil {
		listed, err := v.bl.IsBlacklisted(ctx, claims.TokenID)
		if err != nil || listed {
			return AccessClaims{}, ErrInvalidToken
		}
	}
	return claims, nil
}
