package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lsteen89/steenauth/cmd/internal/auth"
	"github.com/lsteen89/steenauth/cmd/internal/auth/session"
	"github.com/lsteen89/steenauth/cmd/internal/auth/tokens"
)

// Service is the lifecycle surface the handler drives.
type Service interface {
	Login(ctx context.Context, in auth.LoginInput) (auth.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string, all bool) error
	Sessions(ctx context.Context, userID string) ([]session.Record, error)
}

// TokenValidator authenticates bearer tokens on protected routes.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (tokens.AccessClaims, error)
}

// Handler wires HTTP auth endpoints to the lifecycle orchestrator.
type Handler struct {
	log       *slog.Logger
	cfg       Config
	svc       Service
	validator TokenValidator
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, svc Service, validator TokenValidator) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg, svc: svc, validator: validator}
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/sessions", h.handleSessions)
	mux.HandleFunc("/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	pair, err := h.svc.Login(r.Context(), auth.LoginInput{
		Email:     email,
		Password:  req.Password,
		DeviceID:  strings.TrimSpace(req.DeviceID),
		UserAgent: strings.TrimSpace(r.UserAgent()),
	})
	if err != nil {
		h.writeLifecycleError(w, err)
		return
	}

	h.writeTokenPair(w, pair, req.Platform, http.StatusOK)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	refreshToken, fromCookie := h.refreshTokenFromCookie(r)
	platform := ""
	if fromCookie {
		// Cookie transport carries CSRF exposure; require the double-submit
		// header before touching the token.
		if !h.csrfDoubleSubmitValid(r) {
			writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid CSRF token")
			return
		}
		platform = platformWeb
	} else {
		var req refreshRequest
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
		refreshToken = strings.TrimSpace(req.RefreshToken)
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh token is required")
		return
	}

	pair, err := h.svc.RefreshToken(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) && fromCookie {
			// A dead cookie stays dead; clear it so the client stops retrying.
			h.clearWebSessionCookies(w)
		}
		h.writeLifecycleError(w, err)
		return
	}

	h.writeTokenPair(w, pair, platform, http.StatusOK)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Logout works off either credential: the bearer token when the client
	// still has a live one, or the refresh token (cookie or body) when the
	// access token has already expired.
	accessToken, _ := bearerToken(r)

	refreshToken, fromCookie := h.refreshTokenFromCookie(r)
	if !fromCookie {
		var req refreshRequest
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err == nil {
			refreshToken = strings.TrimSpace(req.RefreshToken)
		}
	}

	if accessToken == "" && refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "missing_token", "bearer or refresh token required")
		return
	}

	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	if err := h.svc.Logout(r.Context(), accessToken, refreshToken, all); err != nil {
		h.writeLifecycleError(w, err)
		return
	}

	h.clearWebSessionCookies(w)
	writeJSON(w, http.StatusOK, logoutResponse{LoggedOut: true, All: all})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	records, err := h.svc.Sessions(r.Context(), claims.UserID)
	if err != nil {
		h.log.Error("auth.sessions.list.fail", "user_id", claims.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "could not list sessions")
		return
	}

	items := make([]sessionItem, 0, len(records))
	for _, rec := range records {
		items = append(items, sessionItem{
			SessionID: rec.SessionID,
			DeviceID:  rec.DeviceID,
			UserAgent: rec.UserAgent,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresRollingAt,
			Current:   rec.SessionID == claims.SessionID,
		})
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: items})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Roles:     claims.Roles,
	})
}

// ---- helpers ----

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (tokens.AccessClaims, bool) {
	raw, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "bearer token required")
		return tokens.AccessClaims{}, false
	}
	claims, err := h.validator.Validate(r.Context(), raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or revoked token")
		return tokens.AccessClaims{}, false
	}
	return claims, true
}

func (h *Handler) writeTokenPair(w http.ResponseWriter, pair auth.TokenPair, platform string, status int) {
	resp := tokenResponse{
		UserID:           pair.UserID,
		SessionID:        pair.SessionID,
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Roles:            pair.Roles,
	}

	if h.shouldUseWebCookieTransport(platform) {
		csrf, err := h.setWebSessionCookies(w, pair.RefreshToken, pair.RefreshExpiresAt)
		if err != nil {
			h.log.Error("auth.cookies.set.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "could not establish session")
			return
		}
		resp.CSRFToken = csrf
	} else {
		resp.RefreshToken = pair.RefreshToken
	}

	writeJSON(w, status, resp)
}

func (h *Handler) writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, auth.ErrAccountLocked):
		writeError(w, http.StatusLocked, "account_locked", "too many failed attempts, try again later")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid or expired")
	case errors.Is(err, auth.ErrInvalidAccessToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid access token")
	default:
		h.log.Error("auth.api.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "please retry later")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if v == "" || !strings.HasPrefix(v, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(v, prefix))
	return tok, tok != ""
}
