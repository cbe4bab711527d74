package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lsteen89/steenauth/cmd/identity"
	"github.com/lsteen89/steenauth/cmd/internal/auth/loginguard"
	"github.com/lsteen89/steenauth/cmd/internal/auth/session"
	"github.com/lsteen89/steenauth/cmd/internal/auth/tokens"
)

const testSeedHex = "4242424242424242424242424242424242424242424242424242424242424242"

// ---- fakes ----

type fakeUsers struct {
	byEmail map[string]identity.UserAuth
	byID    map[string]identity.User
}

func (f *fakeUsers) GetUserAuthByEmail(ctx context.Context, email string) (identity.UserAuth, error) {
	ua, ok := f.byEmail[email]
	if !ok {
		return identity.UserAuth{}, identity.ErrNotFound
	}
	return ua, nil
}

func (f *fakeUsers) GetUserByID(ctx context.Context, userID string) (identity.User, error) {
	u, ok := f.byID[userID]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}

type fakeBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{entries: make(map[string]time.Time)}
}

func (f *fakeBlacklist) Add(ctx context.Context, tokenID string, expiresAt, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.entries[tokenID]; ok && prev.After(expiresAt) {
		return nil
	}
	f.entries[tokenID] = expiresAt
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[tokenID]
	return ok, nil
}

type pushCall struct {
	userID    string
	sessionID string
	reason    string
	all       bool
}

type fakePusher struct {
	mu    sync.Mutex
	calls []pushCall
}

func (f *fakePusher) ForceLogout(userID, sessionID, reason string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{userID: userID, sessionID: sessionID, reason: reason})
}

func (f *fakePusher) ForceLogoutAll(userID, reason string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{userID: userID, reason: reason, all: true})
}

// ---- harness ----

type harness struct {
	orch  *Orchestrator
	users *fakeUsers
	bl    *fakeBlacklist
	push  *fakePusher
	codec *tokens.Codec

	mu  sync.Mutex
	now time.Time
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	// Cheap Argon2id parameters keep the suite fast.
	t.Setenv("STEEN_PASSWORD_MEMORY_KIB", "8192")
	t.Setenv("STEEN_PASSWORD_ITERATIONS", "1")

	hash, err := identity.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	user := identity.User{ID: "user-1", Email: "erik@example.com", Roles: []string{"user"}}
	users := &fakeUsers{
		byEmail: map[string]identity.UserAuth{
			"erik@example.com": {User: user, PasswordHash: hash},
		},
		byID: map[string]identity.User{"user-1": user},
	}

	tokenCfg := tokens.DefaultConfig()
	tokenCfg.Ed25519SeedHex = testSeedHex
	codec, err := tokens.NewCodec(tokenCfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	h := &harness{
		users: users,
		bl:    newFakeBlacklist(),
		push:  &fakePusher{},
		codec: codec,
		now:   time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	h.orch = NewOrchestrator(
		log,
		users,
		session.NewMemoryStore(),
		session.DefaultConfig(),
		codec,
		tokenCfg,
		h.bl,
		loginguard.NewMemoryGuard(loginguard.Config{Threshold: 3, Window: 15 * time.Minute}),
		h.push,
		nil,
	).WithClock(func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.now
	})

	return h
}

func mustLogin(t *testing.T, h *harness) TokenPair {
	t.Helper()
	pair, err := h.orch.Login(context.Background(), LoginInput{
		Email:    "erik@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return pair
}

// ---- login ----

func TestLogin_Succeeds(t *testing.T) {
	h := newHarness(t)
	pair := mustLogin(t, h)

	if pair.UserID != "user-1" || pair.SessionID == "" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}
	if !strings.HasPrefix(pair.RefreshToken, pair.SessionID+".") {
		t.Fatalf("refresh token must carry the session id")
	}

	claims, err := h.codec.Parse(pair.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != pair.SessionID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Login(context.Background(), LoginInput{Email: "erik@example.com", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.orch.Login(ctx, LoginInput{Email: "erik@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	// Even the correct password is refused while locked.
	_, err := h.orch.Login(ctx, LoginInput{Email: "erik@example.com", Password: "correct horse"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}

	// The window slides; afterwards login works and resets the counter.
	h.advance(16 * time.Minute)
	pair := mustLogin(t, h)
	if pair.SessionID == "" {
		t.Fatalf("expected session after lockout expiry")
	}
}

func TestLogin_SuccessResetsFailureWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = h.orch.Login(ctx, LoginInput{Email: "erik@example.com", Password: "wrong"})
	}
	mustLogin(t, h)

	// Two more failures stay below threshold because the reset cleared the
	// earlier ones.
	for i := 0; i < 2; i++ {
		_, err := h.orch.Login(ctx, LoginInput{Email: "erik@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
}

// ---- refresh ----

func TestRefreshToken_RotatesAndInvalidatesOld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := mustLogin(t, h)

	oldClaims, err := h.codec.Parse(pair.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	h.advance(5 * time.Minute)
	next, err := h.orch.RefreshToken(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}

	if next.SessionID != pair.SessionID {
		t.Fatalf("session identity must persist across rotation")
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}
	if next.AccessToken == pair.AccessToken {
		t.Fatalf("expected a new access token")
	}

	// The superseded refresh token is dead.
	_, err = h.orch.RefreshToken(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for stale token, got %v", err)
	}

	// The paired access token id is blacklisted.
	listed, err := h.bl.IsBlacklisted(ctx, oldClaims.TokenID)
	if err != nil || !listed {
		t.Fatalf("old jti must be blacklisted: listed=%v err=%v", listed, err)
	}
}

func TestRefreshToken_MalformedAndUnknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, tok := range []string{"", "no-dot", ".secretonly", "sid.", "01HX.unknownsecret"} {
		_, err := h.orch.RefreshToken(ctx, tok)
		if !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("token %q: expected ErrInvalidRefreshToken, got %v", tok, err)
		}
	}
}

func TestRefreshToken_ExactlyOneConcurrentWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := mustLogin(t, h)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		loses int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.RefreshToken(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidRefreshToken):
				loses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || loses != 1 {
		t.Fatalf("expected exactly one winner: wins=%d loses=%d", wins, loses)
	}
}

func TestRefreshToken_RollingExpiryClampsToAbsolute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := mustLogin(t, h)

	loginAt := h.orch.now()
	absolute := loginAt.Add(session.DefaultConfig().AbsoluteTTL)

	// Keep the session alive by rotating every 29 days. The third rotation
	// lands at +87d, where now+30d would overshoot the 90-day ceiling.
	next := pair
	for i := 0; i < 3; i++ {
		h.advance(29 * 24 * time.Hour)
		var err error
		next, err = h.orch.RefreshToken(ctx, next.RefreshToken)
		if err != nil {
			t.Fatalf("rotation %d: %v", i+1, err)
		}
	}
	if !next.RefreshExpiresAt.Equal(absolute) {
		t.Fatalf("rolling expiry must clamp to absolute: got %v want %v", next.RefreshExpiresAt, absolute)
	}

	// Past the ceiling nothing rotates, no matter how fresh the secret is.
	h.advance(4 * 24 * time.Hour)
	_, err := h.orch.RefreshToken(ctx, next.RefreshToken)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken past absolute expiry, got %v", err)
	}
}

// ---- logout ----

func TestLogout_SingleSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := mustLogin(t, h)

	claims, err := h.codec.Parse(pair.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := h.orch.Logout(ctx, pair.AccessToken, "", false); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// Refresh path is dead for this session.
	_, err = h.orch.RefreshToken(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}

	// The presented access token is blacklisted until it expires.
	listed, _ := h.bl.IsBlacklisted(ctx, claims.TokenID)
	if !listed {
		t.Fatalf("presented jti must be blacklisted")
	}

	// The device got its logout push.
	h.push.mu.Lock()
	defer h.push.mu.Unlock()
	if len(h.push.calls) != 1 || h.push.calls[0].all || h.push.calls[0].sessionID != pair.SessionID {
		t.Fatalf("unexpected pushes: %+v", h.push.calls)
	}
}

func TestLogout_LeavesOtherDevicesAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	laptop := mustLogin(t, h)
	phone := mustLogin(t, h)

	if err := h.orch.Logout(ctx, laptop.AccessToken, "", false); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The phone's session still rotates.
	if _, err := h.orch.RefreshToken(ctx, phone.RefreshToken); err != nil {
		t.Fatalf("other device must survive single logout: %v", err)
	}
}

func TestLogout_AllDevices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	laptop := mustLogin(t, h)
	phone := mustLogin(t, h)

	phoneClaims, err := h.codec.Parse(phone.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := h.orch.Logout(ctx, laptop.AccessToken, "", true); err != nil {
		t.Fatalf("Logout all: %v", err)
	}

	for _, p := range []TokenPair{laptop, phone} {
		_, err := h.orch.RefreshToken(ctx, p.RefreshToken)
		if !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("expected all sessions dead, got %v", err)
		}
	}

	// Every device's current access token is blacklisted, not just the
	// caller's.
	listed, _ := h.bl.IsBlacklisted(ctx, phoneClaims.TokenID)
	if !listed {
		t.Fatalf("phone jti must be blacklisted on logout-all")
	}

	h.push.mu.Lock()
	defer h.push.mu.Unlock()
	last := h.push.calls[len(h.push.calls)-1]
	if !last.all || last.userID != "user-1" {
		t.Fatalf("expected a logout-all push, got %+v", last)
	}
}

func TestLogout_RejectsGarbageToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, refresh := range []string{"", "no-dot", "01HX.unknownsecret"} {
		err := h.orch.Logout(ctx, "not-a-jwt", refresh, false)
		if !errors.Is(err, ErrInvalidAccessToken) {
			t.Fatalf("refresh %q: expected ErrInvalidAccessToken, got %v", refresh, err)
		}
	}
}

func TestLogout_ExpiredAccessTokenFallsBackToRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := mustLogin(t, h)

	claims, err := h.codec.Parse(pair.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Let the access token expire; logging out must still work off the
	// refresh token the client holds.
	h.advance(time.Hour)
	if _, err := h.codec.Parse(pair.AccessToken); err == nil {
		t.Fatalf("access token should be expired by now")
	}

	if err := h.orch.Logout(ctx, pair.AccessToken, pair.RefreshToken, false); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The session row is dead.
	_, err = h.orch.RefreshToken(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}

	// The paired jti is blacklisted from the session row, not the claims.
	listed, _ := h.bl.IsBlacklisted(ctx, claims.TokenID)
	if !listed {
		t.Fatalf("paired jti must be blacklisted")
	}

	// No claims means no socket push on this path.
	h.push.mu.Lock()
	defer h.push.mu.Unlock()
	if len(h.push.calls) != 0 {
		t.Fatalf("unexpected pushes: %+v", h.push.calls)
	}
}

func TestLogout_ExpiredAccessTokenAllDevices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	laptop := mustLogin(t, h)
	phone := mustLogin(t, h)

	phoneClaims, err := h.codec.Parse(phone.AccessToken)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	h.advance(time.Hour)
	if err := h.orch.Logout(ctx, laptop.AccessToken, laptop.RefreshToken, true); err != nil {
		t.Fatalf("Logout all: %v", err)
	}

	for _, p := range []TokenPair{laptop, phone} {
		_, err := h.orch.RefreshToken(ctx, p.RefreshToken)
		if !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("expected all sessions dead, got %v", err)
		}
	}

	listed, _ := h.bl.IsBlacklisted(ctx, phoneClaims.TokenID)
	if !listed {
		t.Fatalf("phone jti must be blacklisted on logout-all")
	}
}

// ---- validation ----

func TestValidator_RejectsBlacklistedToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := mustLogin(t, h)

	validator := tokens.NewValidator(h.codec, h.bl)

	if _, err := validator.Validate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("fresh token must validate: %v", err)
	}

	if err := h.orch.Logout(ctx, pair.AccessToken, "", false); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := validator.Validate(ctx, pair.AccessToken); !errors.Is(err, tokens.ErrInvalidToken) {
		t.Fatalf("blacklisted token must fail validation, got %v", err)
	}
}

func TestSessions_ListsLiveDevices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mustLogin(t, h)
	phone := mustLogin(t, h)

	list, err := h.orch.Sessions(ctx, "user-1")
	if err != nil || len(list) != 2 {
		t.Fatalf("Sessions: n=%d err=%v", len(list), err)
	}

	if err := h.orch.Logout(ctx, phone.AccessToken, "", false); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	list, err = h.orch.Sessions(ctx, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("Sessions after logout: n=%d err=%v", len(list), err)
	}
}
