package authapi

import "time"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Platform string `json:"platform,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	UserID          string    `json:"user_id"`
	SessionID       string    `json:"session_id"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	// RefreshToken is omitted on the web cookie transport.
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	// CSRFToken accompanies the cookie transport so the client can echo it
	// in the CSRF header on refresh.
	CSRFToken string   `json:"csrf_token,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

type logoutResponse struct {
	LoggedOut bool `json:"logged_out"`
	All       bool `json:"all,omitempty"`
}

type sessionItem struct {
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current,omitempty"`
}

type sessionListResponse struct {
	Sessions []sessionItem `json:"sessions"`
}

type meResponse struct {
	UserID    string   `json:"user_id"`
	SessionID string   `json:"session_id"`
	Roles     []string `json:"roles,omitempty"`
}

const platformWeb = "web"
