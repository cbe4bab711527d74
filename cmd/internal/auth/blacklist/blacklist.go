package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bl:"

// addScript sets the key only when the new TTL extends the retained one.
// PTTL returns -2 for a missing key and -1 for a key without expiry, both of
// which the comparison treats as "replaceable".
var addScript = redis.NewScript(`
local ttl = redis.call("PTTL", KEYS[1])
local want = tonumber(ARGV[1])
if ttl < want then
  redis.call("SET", KEYS[1], "1", "PX", want)
end
return 1
`)

// Store is a Redis-backed access-token blacklist.
type Store struct {
	rdb redis.UniversalClient
}

// NewStore creates a blacklist over the given Redis client.
func NewStore(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Add denies the token id until expiresAt. Expired tokens are skipped: they
// already fail validation, so retaining them would only grow the keyspace.
// Re-adding an id keeps the later of the two expiries.
func (s *Store) Add(ctx context.Context, tokenID string, expiresAt time.Time, now time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := addScript.Run(ctx, s.rdb, []string{keyPrefix + tokenID}, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether the token id is currently denied. Backend
// errors propagate so callers can fail closed.
func (s *Store) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return n > 0, nil
}
