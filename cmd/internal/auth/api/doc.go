// Package authapi exposes the session lifecycle over HTTP: login, refresh,
// logout, and session listing. Web clients get the refresh token in an
// HttpOnly cookie with a CSRF double-submit guard; other clients carry it in
// the response body.
package authapi
