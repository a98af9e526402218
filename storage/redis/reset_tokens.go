// Package redisstore keeps short-lived authentication state in Redis.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PaulFidika/fleetauth/core"
)

// ResetTokens is a core.ResetTokenStore on Redis. Tokens are consumed with
// GETDEL so two concurrent redemptions cannot both succeed.
type ResetTokens struct {
	rdb   redis.Cmdable
	keyNS string
}

var _ core.ResetTokenStore = (*ResetTokens)(nil)

func NewResetTokens(rdb redis.Cmdable, keyPrefix string) *ResetTokens {
	if keyPrefix == "" {
		keyPrefix = "fleetauth:reset:"
	}
	return &ResetTokens{rdb: rdb, keyNS: keyPrefix}
}

func (s *ResetTokens) key(token string) string { return s.keyNS + token }

func (s *ResetTokens) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.rdb.Set(ctx, s.key(token), userID, ttl).Err()
}

func (s *ResetTokens) Take(ctx context.Context, token string) (string, bool, error) {
	val, err := s.rdb.GetDel(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
