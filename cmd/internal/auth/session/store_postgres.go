package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (steen.refresh_tokens).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed refresh-token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `
	token_id, user_id, session_id, hashed_secret, access_token_id,
	expires_rolling_at, expires_absolute_at, status, revoked_at,
	device_id, user_agent, created_at
`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.TokenID,
		&rec.UserID,
		&rec.SessionID,
		&rec.HashedSecret,
		&rec.AccessTokenID,
		&rec.ExpiresRollingAt,
		&rec.ExpiresAbsoluteAt,
		&rec.Status,
		&rec.RevokedAt,
		&rec.DeviceID,
		&rec.UserAgent,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Create inserts a new row. See Store for the collision contract.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, in NewRecord) (Record, bool, error) {
	id := ulid.Make().String()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO steen.refresh_tokens (
			token_id, user_id, session_id, hashed_secret, access_token_id,
			expires_rolling_at, expires_absolute_at, status, revoked_at,
			device_id, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, 'active', NULL,
			$8, $9, $10
		)
	`, id, in.UserID, in.SessionID, in.HashedSecret, in.AccessTokenID,
		in.ExpiresRollingAt, in.ExpiresAbsoluteAt,
		nullIfEmpty(in.DeviceID), nullIfEmpty(in.UserAgent), now)

	if err != nil {
		switch pgClassifyUniqueViolation(err) {
		case conflictSecret:
			return Record{}, false, ErrSecretConflict
		case conflictActiveSession:
			// Another request created this (user, session) first. Collapse to
			// the winner row rather than erroring.
			winner, rerr := s.getActiveBySession(ctx, in.UserID, in.SessionID)
			if rerr != nil {
				return Record{}, false, rerr
			}
			return winner, false, nil
		default:
			return Record{}, false, err
		}
	}

	rec := Record{
		TokenID:           id,
		UserID:            in.UserID,
		SessionID:         in.SessionID,
		HashedSecret:      in.HashedSecret,
		AccessTokenID:     in.AccessTokenID,
		ExpiresRollingAt:  in.ExpiresRollingAt,
		ExpiresAbsoluteAt: in.ExpiresAbsoluteAt,
		Status:            StatusActive,
		DeviceID:          in.DeviceID,
		UserAgent:         in.UserAgent,
		CreatedAt:         now,
	}
	return rec, true, nil
}

func (s *PostgresStore) getActiveBySession(ctx context.Context, userID, sessionID string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM steen.refresh_tokens
		WHERE user_id = $1 AND session_id = $2 AND status = 'active'
	`, userID, sessionID)
	return scanRecord(row)
}

// BeginRotation opens an explicit transaction for one rotation attempt.
func (s *PostgresStore) BeginRotation(ctx context.Context) (RotationTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgRotation{tx: tx}, nil
}

// RevokeSession revokes a single (user, session) row (idempotent).
func (s *PostgresStore) RevokeSession(ctx context.Context, now time.Time, userID, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE steen.refresh_tokens
		SET status = 'revoked',
		    revoked_at = COALESCE(revoked_at, $3)
		WHERE user_id = $1 AND session_id = $2
	`, userID, sessionID, now)
	return err
}

// RevokeAllForUser revokes all rows for a user (idempotent).
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, now time.Time, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE steen.refresh_tokens
		SET status = 'revoked',
		    revoked_at = COALESCE(revoked_at, $2)
		WHERE user_id = $1
	`, userID, now)
	return err
}

// ListActiveForUser returns the user's usable rows at "now", newest first.
func (s *PostgresStore) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM steen.refresh_tokens
		WHERE user_id = $1
		  AND status = 'active'
		  AND revoked_at IS NULL
		  AND expires_rolling_at >= $2
		  AND expires_absolute_at >= $2
		ORDER BY created_at DESC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---- rotation transaction ----

type pgRotation struct {
	tx pgx.Tx
}

func (r *pgRotation) GetActiveForRotation(ctx context.Context, sessionID, hashedSecret string, now time.Time) (Record, error) {
	row := r.tx.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM steen.refresh_tokens
		WHERE session_id = $1
		  AND hashed_secret = $2
		  AND status = 'active'
		  AND revoked_at IS NULL
		  AND expires_rolling_at >= $3
		  AND expires_absolute_at >= $3
		FOR UPDATE
	`, sessionID, hashedSecret, now)
	return scanRecord(row)
}

func (r *pgRotation) RotateInPlace(ctx context.Context, tokenID, expectedOldHash, newHash, newAccessTokenID string, newRollingExpiry time.Time) (int64, error) {
	tag, err := r.tx.Exec(ctx, `
		UPDATE steen.refresh_tokens
		SET hashed_secret = $3,
		    access_token_id = $4,
		    expires_rolling_at = $5
		WHERE token_id = $1
		  AND hashed_secret = $2
		  AND status = 'active'
	`, tokenID, expectedOldHash, newHash, newAccessTokenID, newRollingExpiry)
	if err != nil {
		if pgClassifyUniqueViolation(err) == conflictSecret {
			return 0, ErrSecretConflict
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *pgRotation) Commit(ctx context.Context) error   { return r.tx.Commit(ctx) }
func (r *pgRotation) Rollback(ctx context.Context) error { return r.tx.Rollback(ctx) }

// ---- helpers ----

type uniqueConflict uint8

const (
	conflictNone uniqueConflict = iota
	conflictSecret
	conflictActiveSession
)

// pgClassifyUniqueViolation maps a 23505 to the logical constraint it hit.
// Stable constraint names are preferred; substring matching is the fallback.
func pgClassifyUniqueViolation(err error) uniqueConflict {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return conflictNone
	}
	if pgErr.Code != "23505" { // unique_violation
		return conflictNone
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_refresh_tokens_hashed_secret":
		return conflictSecret
	case "uq_refresh_tokens_user_session_active":
		return conflictActiveSession
	default:
		switch {
		case strings.Contains(c, "hashed_secret"):
			return conflictSecret
		case strings.Contains(c, "session"):
			return conflictActiveSession
		default:
			return conflictSecret
		}
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
