package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lsteen89/steenauth/cmd/identity"
	"github.com/lsteen89/steenauth/cmd/internal/auth/loginguard"
	"github.com/lsteen89/steenauth/cmd/internal/auth/session"
	"github.com/lsteen89/steenauth/cmd/internal/auth/tokens"
	"github.com/lsteen89/steenauth/cmd/internal/metrics"
)

// BlacklistStore is the revoked access-token set the orchestrator writes to
// on revocation and the validator reads from on every check.
type BlacklistStore interface {
	Add(ctx context.Context, tokenID string, expiresAt time.Time, now time.Time) error
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// SessionPusher notifies live sockets about session death. Pushes are
// best-effort; revocation never depends on them.
type SessionPusher interface {
	ForceLogout(userID, sessionID, reason string, now time.Time)
	ForceLogoutAll(userID, reason string, now time.Time)
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	UserID           string
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Roles            []string
}

// LoginInput carries one credential presentation plus device context.
type LoginInput struct {
	Email     string
	Password  string
	DeviceID  string
	UserAgent string
}

// Orchestrator drives the session lifecycle end to end.
type Orchestrator struct {
	log        *slog.Logger
	users      identity.Store
	sessions   session.Store
	sessionCfg session.Config
	codec      *tokens.Codec
	tokenCfg   tokens.Config
	blacklist  BlacklistStore
	guard      loginguard.Guard
	pusher     SessionPusher
	metrics    *metrics.Metrics

	now func() time.Time
}

// NewOrchestrator wires the lifecycle dependencies. pusher and m may be nil.
func NewOrchestrator(
	log *slog.Logger,
	users identity.Store,
	sessions session.Store,
	sessionCfg session.Config,
	codec *tokens.Codec,
	tokenCfg tokens.Config,
	bl BlacklistStore,
	guard loginguard.Guard,
	pusher SessionPusher,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		log:        log,
		users:      users,
		sessions:   sessions,
		sessionCfg: sessionCfg,
		codec:      codec,
		tokenCfg:   tokenCfg,
		blacklist:  bl,
		guard:      guard,
		pusher:     pusher,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests. The codec's validation
// clock follows, so tokens issued under the injected clock parse under it too.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	if o.codec != nil {
		o.codec.WithClock(now)
	}
	return o
}

// Login verifies credentials under the lockout guard and opens a new device
// session.
func (o *Orchestrator) Login(ctx context.Context, in LoginInput) (TokenPair, error) {
	now := o.now()
	email := identity.NormalizeEmail(in.Email)

	ua, err := o.users.GetUserAuthByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			o.countLogin("fail")
			o.log.Info("auth.login.fail", "reason", "unknown_email")
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("login lookup: %w", err)
	}
	user := ua.User

	locked, err := o.guard.IsLockedOut(ctx, user.ID, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("lockout check: %w", err)
	}
	if locked {
		o.countLockout()
		o.log.Info("auth.login.locked", "user_id", user.ID)
		return TokenPair{}, ErrAccountLocked
	}

	ok, err := identity.VerifyPassword(in.Password, ua.PasswordHash)
	if err != nil || !ok {
		if gerr := o.guard.RecordFailure(ctx, user.ID, now); gerr != nil {
			o.log.Error("auth.login.guard_record.fail", "user_id", user.ID, "err", gerr)
		}
		o.countLogin("fail")
		o.log.Info("auth.login.fail", "user_id", user.ID, "reason", "bad_password")
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := o.guard.Reset(ctx, user.ID); err != nil {
		// A stale failure window is a nuisance, not a reason to fail a
		// correct login.
		o.log.Error("auth.login.guard_reset.fail", "user_id", user.ID, "err", err)
	}

	sessionID := ulid.Make().String()

	accessToken, tokenID, accessExp, err := o.codec.Issue(user.ID, sessionID, user.Roles, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	rec, plainSecret, err := o.createSessionRow(ctx, now, user.ID, sessionID, tokenID, in)
	if err != nil {
		return TokenPair{}, err
	}

	o.countLogin("success")
	o.log.Info("auth.login.ok", "user_id", user.ID, "session_id", sessionID)

	return TokenPair{
		UserID:           user.ID,
		SessionID:        sessionID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     encodeRefreshToken(sessionID, plainSecret),
		RefreshExpiresAt: rec.ExpiresRollingAt,
		Roles:            user.Roles,
	}, nil
}

// createSessionRow inserts the refresh-token row, regenerating the secret on
// a hash collision up to the configured bound.
func (o *Orchestrator) createSessionRow(ctx context.Context, now time.Time, userID, sessionID, accessTokenID string, in LoginInput) (session.Record, string, error) {
	absolute := now.Add(o.sessionCfg.AbsoluteTTL)
	rolling := session.ClampRolling(now, o.sessionCfg.RollingTTL, absolute)

	var lastErr error
	for attempt := 0; attempt < o.sessionCfg.SecretRetryMax; attempt++ {
		plain, hash, err := tokens.NewRefreshSecret(o.tokenCfg.RefreshSecretBytes)
		if err != nil {
			return session.Record{}, "", fmt.Errorf("refresh secret: %w", err)
		}

		rec, _, err := o.sessions.Create(ctx, now, session.NewRecord{
			UserID:            userID,
			SessionID:         sessionID,
			HashedSecret:      hash,
			AccessTokenID:     accessTokenID,
			ExpiresRollingAt:  rolling,
			ExpiresAbsoluteAt: absolute,
			DeviceID:          in.DeviceID,
			UserAgent:         in.UserAgent,
		})
		if errors.Is(err, session.ErrSecretConflict) {
			lastErr = err
			o.log.Warn("auth.session.secret_conflict", "user_id", userID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return session.Record{}, "", fmt.Errorf("create session: %w", err)
		}
		return rec, plain, nil
	}
	return session.Record{}, "", fmt.Errorf("create session: retries exhausted: %w", lastErr)
}

// RefreshToken rotates the presented refresh token. At most one concurrent
// presenter of the same token wins; everyone else gets
// ErrInvalidRefreshToken and must log in again.
func (o *Orchestrator) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	now := o.now()

	sessionID, secret, ok := decodeRefreshToken(refreshToken)
	if !ok {
		o.countRefreshRejected()
		return TokenPair{}, ErrInvalidRefreshToken
	}
	presentedHash := tokens.HashRefreshSecret(secret)

	var lastErr error
	for attempt := 0; attempt < o.sessionCfg.SecretRetryMax; attempt++ {
		pair, err := o.rotateOnce(ctx, now, sessionID, presentedHash)
		if errors.Is(err, session.ErrSecretConflict) {
			// The freshly generated secret collided with another row. The
			// presented token is still valid, so retry with a new secret.
			lastErr = err
			o.log.Warn("auth.refresh.secret_conflict", "session_id", sessionID, "attempt", attempt+1)
			continue
		}
		return pair, err
	}
	return TokenPair{}, fmt.Errorf("rotate refresh: retries exhausted: %w", lastErr)
}

func (o *Orchestrator) rotateOnce(ctx context.Context, now time.Time, sessionID, presentedHash string) (TokenPair, error) {
	tx, err := o.sessions.BeginRotation(ctx)
	if err != nil {
		return TokenPair{}, fmt.Errorf("begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := tx.GetActiveForRotation(ctx, sessionID, presentedHash, now)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			o.countRefreshRejected()
			o.log.Info("auth.refresh.reject", "session_id", sessionID)
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("rotation read: %w", err)
	}

	user, err := o.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			o.countRefreshRejected()
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("rotation user lookup: %w", err)
	}

	accessToken, newTokenID, accessExp, err := o.codec.Issue(user.ID, sessionID, user.Roles, now)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	newPlain, newHash, err := tokens.NewRefreshSecret(o.tokenCfg.RefreshSecretBytes)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh secret: %w", err)
	}

	newRolling := session.ClampRolling(now, o.sessionCfg.RollingTTL, rec.ExpiresAbsoluteAt)

	n, err := tx.RotateInPlace(ctx, rec.TokenID, presentedHash, newHash, newTokenID, newRolling)
	if err != nil {
		if errors.Is(err, session.ErrSecretConflict) {
			return TokenPair{}, session.ErrSecretConflict
		}
		return TokenPair{}, fmt.Errorf("rotation write: %w", err)
	}
	if n == 0 {
		// Lost the race: someone rotated this session between our read and
		// write. Exactly one presenter may win, so this attempt dies here.
		o.countRefreshRejected()
		o.log.Info("auth.refresh.lost_race", "session_id", sessionID)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	if err := tx.Commit(ctx); err != nil {
		return TokenPair{}, fmt.Errorf("rotation commit: %w", err)
	}

	// The previous access token is dead the moment rotation lands. Its exact
	// expiry is unknown here; now+TTL is a safe upper bound.
	o.revokeAccessToken(ctx, rec.AccessTokenID, now.Add(o.tokenCfg.AccessTokenTTL), now)

	o.countRotation()
	o.log.Info("auth.refresh.ok", "user_id", user.ID, "session_id", sessionID)

	return TokenPair{
		UserID:           user.ID,
		SessionID:        sessionID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     encodeRefreshToken(sessionID, newPlain),
		RefreshExpiresAt: newRolling,
		Roles:            user.Roles,
	}, nil
}

// Logout ends the caller's session. With all=true it ends every session the
// user has, on every device.
//
// Identity normally comes from the access token. An expired or garbled access
// token must not strand the caller in a session they cannot end: the refresh
// token they also hold names the session row, so revocation and blacklisting
// proceed from that instead. Live sockets are not notified on the degraded
// path; a revoked session's next refresh or token check fails regardless.
func (o *Orchestrator) Logout(ctx context.Context, accessToken, refreshToken string, all bool) error {
	now := o.now()

	// Pure parse, no blacklist check: a user logging out with a token that
	// was just revoked elsewhere should still land on "logged out".
	claims, err := o.codec.Parse(accessToken)
	if err == nil {
		if all {
			return o.logoutAll(ctx, now, claims.UserID, claims.TokenID, claims.ExpiresAt, true)
		}
		return o.logoutSingle(ctx, now, claims.UserID, claims.SessionID, claims.TokenID, claims.ExpiresAt, true)
	}

	sessionID, secret, ok := decodeRefreshToken(refreshToken)
	if !ok {
		return ErrInvalidAccessToken
	}
	o.log.Info("auth.logout.degraded", "session_id", sessionID, "parse_err", err)

	rec, err := o.lookupActiveSession(ctx, now, sessionID, tokens.HashRefreshSecret(secret))
	if err != nil {
		return err
	}

	// The paired access token's exact expiry is unknown without its claims;
	// now+TTL is a safe blacklist upper bound.
	upper := now.Add(o.tokenCfg.AccessTokenTTL)
	if all {
		return o.logoutAll(ctx, now, rec.UserID, rec.AccessTokenID, upper, false)
	}
	return o.logoutSingle(ctx, now, rec.UserID, sessionID, rec.AccessTokenID, upper, false)
}

// lookupActiveSession resolves a live session row from a presented refresh
// secret. The row lock is released immediately; this is a read, not a
// rotation.
func (o *Orchestrator) lookupActiveSession(ctx context.Context, now time.Time, sessionID, presentedHash string) (session.Record, error) {
	tx, err := o.sessions.BeginRotation(ctx)
	if err != nil {
		return session.Record{}, fmt.Errorf("session lookup: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := tx.GetActiveForRotation(ctx, sessionID, presentedHash, now)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Record{}, ErrInvalidAccessToken
		}
		return session.Record{}, fmt.Errorf("session lookup: %w", err)
	}
	return rec, nil
}

func (o *Orchestrator) logoutSingle(ctx context.Context, now time.Time, userID, sessionID, tokenID string, tokenExp time.Time, notify bool) error {
	if err := o.sessions.RevokeSession(ctx, now, userID, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	o.revokeAccessToken(ctx, tokenID, tokenExp, now)

	if notify && o.pusher != nil {
		o.pusher.ForceLogout(userID, sessionID, "user_logout", now)
	}

	o.countLogout("single")
	o.log.Info("auth.logout.ok", "user_id", userID, "session_id", sessionID)
	return nil
}

func (o *Orchestrator) logoutAll(ctx context.Context, now time.Time, userID, callerTokenID string, callerTokenExp time.Time, notify bool) error {
	// Collect paired access-token ids before revoking, so every device's
	// current access token gets blacklisted, not just the caller's.
	active, err := o.sessions.ListActiveForUser(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if err := o.sessions.RevokeAllForUser(ctx, now, userID); err != nil {
		return fmt.Errorf("revoke all: %w", err)
	}

	upper := now.Add(o.tokenCfg.AccessTokenTTL)
	for _, rec := range active {
		o.revokeAccessToken(ctx, rec.AccessTokenID, upper, now)
	}
	o.revokeAccessToken(ctx, callerTokenID, callerTokenExp, now)

	if notify && o.pusher != nil {
		o.pusher.ForceLogoutAll(userID, "logout_all", now)
	}

	o.countLogout("all")
	o.log.Info("auth.logout_all.ok", "user_id", userID, "sessions", len(active))
	return nil
}

// Sessions lists the caller's live device sessions.
func (o *Orchestrator) Sessions(ctx context.Context, userID string) ([]session.Record, error) {
	return o.sessions.ListActiveForUser(ctx, userID, o.now())
}

// revokeAccessToken blacklists a jti. Failures are logged, not returned:
// revocation of the session row already happened, and the token dies at its
// natural expiry regardless.
func (o *Orchestrator) revokeAccessToken(ctx context.Context, tokenID string, expiresAt, now time.Time) {
	if o.blacklist == nil || tokenID == "" {
		return
	}
	if err := o.blacklist.Add(ctx, tokenID, expiresAt, now); err != nil {
		o.log.Error("auth.blacklist.add.fail", "token_id", tokenID, "err", err)
		return
	}
	if o.metrics != nil {
		o.metrics.TokensRevoked.Inc()
	}
}

// ---- refresh-token wire format ----

// A refresh token on the wire is "<session_id>.<secret>". The session id is a
// ULID (no dots) and the secret is base64url (no dots), so Cut on the first
// dot is unambiguous.
func encodeRefreshToken(sessionID, secret string) string {
	return sessionID + "." + secret
}

func decodeRefreshToken(s string) (sessionID, secret string, ok bool) {
	sessionID, secret, ok = strings.Cut(strings.TrimSpace(s), ".")
	if !ok || sessionID == "" || secret == "" {
		return "", "", false
	}
	return sessionID, secret, true
}

// ---- metrics helpers ----

func (o *Orchestrator) countLogin(outcome string) {
	if o.metrics != nil {
		o.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}

func (o *Orchestrator) countLockout() {
	if o.metrics != nil {
		o.metrics.Lockouts.Inc()
	}
}

func (o *Orchestrator) countRotation() {
	if o.metrics != nil {
		o.metrics.RefreshRotations.Inc()
	}
}

func (o *Orchestrator) countRefreshRejected() {
	if o.metrics != nil {
		o.metrics.RefreshRejected.Inc()
	}
}

func (o *Orchestrator) countLogout(scope string) {
	if o.metrics != nil {
		o.metrics.Logouts.WithLabelValues(scope).Inc()
	}
}
