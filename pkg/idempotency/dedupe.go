package idempotency

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupePrefix = "idem:"

// Store remembers processed message keys in Redis for ttl.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Key joins parts into one namespaced dedupe key.
func (s *Store) Key(parts ...string) string {
	return dedupePrefix + strings.Join(parts, ":")
}

// Seen claims key and reports whether an earlier call already had.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	claimed, err := s.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Forget releases a claim so the message can be handled again.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
