package loginguard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGuard implements Guard over steen.login_attempts.
type PostgresGuard struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewPostgresGuard creates a Postgres-backed lockout guard.
func NewPostgresGuard(pool *pgxpool.Pool, cfg Config) *PostgresGuard {
	return &PostgresGuard{pool: pool, cfg: cfg}
}

func (g *PostgresGuard) IsLockedOut(ctx context.Context, userID string, now time.Time) (bool, error) {
	var n int
	err := g.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM steen.login_attempts
		WHERE user_id = $1 AND attempted_at >= $2
	`, userID, now.Add(-g.cfg.Window)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n >= g.cfg.Threshold, nil
}

func (g *PostgresGuard) RecordFailure(ctx context.Context, userID string, now time.Time) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO steen.login_attempts (user_id, attempted_at)
		VALUES ($1, $2)
	`, userID, now)
	return err
}

func (g *PostgresGuard) Reset(ctx context.Context, userID string) error {
	_, err := g.pool.Exec(ctx, `
		DELETE FROM steen.login_attempts
		WHERE user_id = $1
	`, userID)
	return err
}

// Sweep prunes attempts older than the window. Rows outside the window never
// count, so sweeping is purely a storage concern.
func (g *PostgresGuard) Sweep(ctx context.Context, now time.Time) (int64, error) {
	tag, err := g.pool.Exec(ctx, `
		DELETE FROM steen.login_attempts
		WHERE attempted_at < $1
	`, now.Add(-g.cfg.Window))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
