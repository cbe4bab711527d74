package session

import (
	"context"
	"time"
)

// Status is the lifecycle state of a refresh-token row.
type Status string

const (
	// StatusActive marks a row usable for rotation (subject to expiry checks).
	StatusActive Status = "active"
	// StatusRevoked marks a row dead. Revoked rows are kept, not deleted;
	// a background sweep may prune them once past absolute expiry.
	StatusRevoked Status = "revoked"
)

// Record mirrors a steen.refresh_tokens row.
type Record struct {
	TokenID           string
	UserID            string
	SessionID         string
	HashedSecret      string
	AccessTokenID     string
	ExpiresRollingAt  time.Time
	ExpiresAbsoluteAt time.Time
	Status            Status
	RevokedAt         *time.Time
	DeviceID          string
	UserAgent         string
	CreatedAt         time.Time
}

// UsableAt reports whether the row can still be rotated at "now".
func (r Record) UsableAt(now time.Time) bool {
	if r.Status != StatusActive || r.RevokedAt != nil {
		return false
	}
	return !now.After(r.ExpiresRollingAt) && !now.After(r.ExpiresAbsoluteAt)
}

// NewRecord is the input for creating a refresh-token row at login.
type NewRecord struct {
	UserID            string
	SessionID         string
	HashedSecret      string
	AccessTokenID     string
	ExpiresRollingAt  time.Time
	ExpiresAbsoluteAt time.Time
	DeviceID          string
	UserAgent         string
}

// Store abstracts persistence for refresh-token rows.
//
// Implementations must guarantee:
//   - HashedSecret is globally unique (conflicts -> ErrSecretConflict);
//   - (UserID, SessionID) is unique among Active rows, with insert races
//     collapsing to the winner row;
//   - rotation runs against a RotationTx so the locking read and the
//     conditional update observe one consistent row.
type Store interface {
	// Create inserts a new row. On an active (user, session) uniqueness race
	// it re-reads and returns the winner with created=false instead of
	// erroring. A secret-hash conflict returns ErrSecretConflict.
	Create(ctx context.Context, now time.Time, in NewRecord) (rec Record, created bool, err error)

	// BeginRotation opens the transaction scope for one rotation attempt.
	BeginRotation(ctx context.Context) (RotationTx, error)

	// RevokeSession revokes one (user, session) row. Idempotent; revoking an
	// already-revoked or missing row is a no-op.
	RevokeSession(ctx context.Context, now time.Time, userID, sessionID string) error

	// RevokeAllForUser revokes every row owned by the user. Idempotent.
	RevokeAllForUser(ctx context.Context, now time.Time, userID string) error

	// ListActiveForUser returns the user's usable rows at "now", newest first.
	ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]Record, error)
}

// RotationTx is the transaction-scoped view used by one rotation attempt.
// Callers must Commit on success and Rollback otherwise (Rollback after
// Commit is a no-op).
type RotationTx interface {
	// GetActiveForRotation performs the locking read: it returns the row
	// matching (sessionID, hashedSecret) that is Active, non-revoked, and
	// inside both expiry horizons at "now", holding a row lock until the
	// transaction ends. No match -> ErrNotFound.
	GetActiveForRotation(ctx context.Context, sessionID, hashedSecret string, now time.Time) (Record, error)

	// RotateInPlace replaces secret hash, paired access-token id, and rolling
	// expiry in a single conditional update guarded by the old hash. The
	// returned row count is the exactly-once guard: 0 means another caller
	// already rotated this session and this attempt must fail, not retry.
	RotateInPlace(ctx context.Context, tokenID, expectedOldHash, newHash, newAccessTokenID string, newRollingExpiry time.Time) (int64, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
