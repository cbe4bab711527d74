package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store. It mirrors the Postgres contract,
// including the exactly-once rotation guard, and exists for tests and local
// development without a database.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Record // token_id -> row
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Record)}
}

func (s *MemoryStore) Create(ctx context.Context, now time.Time, in NewRecord) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.HashedSecret == in.HashedSecret {
			return Record{}, false, ErrSecretConflict
		}
	}
	for _, r := range s.rows {
		if r.UserID == in.UserID && r.SessionID == in.SessionID && r.Status == StatusActive {
			return *r, false, nil
		}
	}

	rec := &Record{
		TokenID:           ulid.Make().String(),
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
	s.rows[rec.TokenID] = rec
	return *rec, true, nil
}

// BeginRotation takes the store lock for the lifetime of the transaction,
// which serializes concurrent rotations the way row locks do in Postgres.
func (s *MemoryStore) BeginRotation(ctx context.Context) (RotationTx, error) {
	s.mu.Lock()
	return &memRotation{store: s}, nil
}

func (s *MemoryStore) RevokeSession(ctx context.Context, now time.Time, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.UserID == userID && r.SessionID == sessionID {
			revokeRow(r, now)
		}
	}
	return nil
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, now time.Time, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.UserID == userID {
			revokeRow(r, now)
		}
	}
	return nil
}

func (s *MemoryStore) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.rows {
		if r.UserID == userID && r.UsableAt(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func revokeRow(r *Record, now time.Time) {
	if r.Status == StatusRevoked {
		return
	}
	r.Status = StatusRevoked
	t := now
	r.RevokedAt = &t
}

type memRotation struct {
	store *MemoryStore
	done  bool
}

func (m *memRotation) GetActiveForRotation(ctx context.Context, sessionID, hashedSecret string, now time.Time) (Record, error) {
	for _, r := range m.store.rows {
		if r.SessionID == sessionID && r.HashedSecret == hashedSecret && r.UsableAt(now) {
			return *r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *memRotation) RotateInPlace(ctx context.Context, tokenID, expectedOldHash, newHash, newAccessTokenID string, newRollingExpiry time.Time) (int64, error) {
	r, ok := m.store.rows[tokenID]
	if !ok || r.Status != StatusActive || r.HashedSecret != expectedOldHash {
		return 0, nil
	}
	r.HashedSecret = newHash
	r.AccessTokenID = newAccessTokenID
	r.ExpiresRollingAt = newRollingExpiry
	return 1, nil
}

func (m *memRotation) Commit(ctx context.Context) error {
	m.release()
	return nil
}

func (m *memRotation) Rollback(ctx context.Context) error {
	m.release()
	return nil
}

func (m *memRotation) release() {
	if m.done {
		return
	}
	m.done = true
	m.store.mu.Unlock()
}
