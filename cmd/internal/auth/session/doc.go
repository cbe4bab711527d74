// Package session persists rotating refresh tokens, one row per live
// device/browser session.
//
// Rows are mutated in place on rotation: the secret hash, the paired
// access-token id, and the rolling expiry all replace while the row identity
// persists. Rotation safety comes from the store, not application mutexes:
// a locking read (SELECT ... FOR UPDATE) serializes concurrent callers and a
// conditional update guarded by the old secret hash makes exactly one of
// them win.
package session
