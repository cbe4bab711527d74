package authapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// Web clients keep the refresh token in an HttpOnly cookie and prove intent
// with a double-submit CSRF token: a readable cookie whose value must be
// echoed back in a request header.

func (h *Handler) shouldUseWebCookieTransport(platform string) bool {
	return h != nil && h.cfg.WebRefreshCookieEnabled && strings.EqualFold(platform, platformWeb)
}

// setWebSessionCookies installs the refresh and CSRF cookies and returns the
// CSRF value for the response body.
func (h *Handler) setWebSessionCookies(w http.ResponseWriter, refreshToken string, refreshExp time.Time) (string, error) {
	csrf, err := newOpaqueWebToken(32)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, h.sessionCookie(h.cfg.RefreshCookieName, refreshToken, refreshExp, true))
	http.SetCookie(w, h.sessionCookie(h.cfg.CSRFCookieName, csrf, refreshExp, false))
	return csrf, nil
}

func (h *Handler) clearWebSessionCookies(w http.ResponseWriter) {
	if h == nil || w == nil || !h.cfg.WebRefreshCookieEnabled {
		return
	}
	for _, name := range []string{h.cfg.RefreshCookieName, h.cfg.CSRFCookieName} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		c := h.sessionCookie(name, "", time.Unix(0, 0).UTC(), name == h.cfg.RefreshCookieName)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	if h == nil || r == nil || !h.cfg.WebRefreshCookieEnabled {
		return "", false
	}
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	if v := strings.TrimSpace(c.Value); v != "" {
		return v, true
	}
	return "", false
}

func (h *Handler) csrfDoubleSubmitValid(r *http.Request) bool {
	if h == nil || r == nil || !h.cfg.WebRefreshCookieEnabled {
		return false
	}
	c, err := r.Cookie(h.cfg.CSRFCookieName)
	if err != nil {
		return false
	}
	fromCookie := strings.TrimSpace(c.Value)
	fromHeader := strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName))
	return secureStringEqual(fromCookie, fromHeader)
}

func (h *Handler) sessionCookie(name, value string, exp time.Time, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
}

func newOpaqueWebToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func secureStringEqual(a, b string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
