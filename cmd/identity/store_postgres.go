package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over steen.users.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NormalizeEmail lowercases and trims an email for lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserAuthByEmail loads a user and password hash by normalized email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, OpError{Op: "identity.GetUserAuthByEmail", Kind: ErrInvalidInput}
	}

	var ua UserAuth
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, roles, password_hash, created_at
		FROM steen.users
		WHERE email_norm = $1
	`, norm).Scan(
		&ua.User.ID,
		&ua.User.Email,
		&ua.User.Roles,
		&ua.PasswordHash,
		&ua.User.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, OpError{Op: "identity.GetUserAuthByEmail", Kind: ErrNotFound}
	}
	if err != nil {
		return UserAuth{}, err
	}

	return ua, nil
}

// GetUserByID loads a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, OpError{Op: "identity.GetUserByID", Kind: ErrInvalidInput}
	}

	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, roles, created_at
		FROM steen.users
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.Roles, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: "identity.GetUserByID", Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}
