// Package token provides one-way hashing of opaque refresh secrets for
// server-side storage. Plaintext secrets are never persisted; lookups are
// performed against the deterministic hex digest produced here.
package token
