package identity

import (
	"context"
	"time"
)

// User is the projection of an account the auth subsystem works with.
type User struct {
	ID        string
	Email     string
	Roles     []string
	CreatedAt time.Time
}

// UserAuth couples a user with its password hash for login verification.
// The hash never leaves the login path.
type UserAuth struct {
	User         User
	PasswordHash string
}

// Store abstracts user lookup for the auth orchestrator.
type Store interface {
	// GetUserAuthByEmail loads a user and its password hash by normalized email.
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// GetUserByID loads a user by id.
	GetUserByID(ctx context.Context, userID string) (User, error)
}
