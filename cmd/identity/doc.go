// Package identity provides the minimal user surface the auth subsystem
// needs: credential lookup by email, role claims, and Argon2id password
// verification. Account management (registration, profile, verification
// flows) lives elsewhere.
package identity
