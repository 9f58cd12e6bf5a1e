package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"loandesk/backend/internal/session/domain"
)

const redisKeyPrefix = "session:"

// touchScript extends a live session atomically. KEYS[1] is the session key,
// ARGV[1] is now and ARGV[2] the requested expiry, both unix milliseconds.
// Returns the session hash, or nil if the session is missing or dead.
var touchScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if not exp then
  return false
end
exp = tonumber(exp)
if exp <= tonumber(ARGV[1]) then
  return false
end
local want = tonumber(ARGV[2])
if want > exp then
  redis.call('HSET', KEYS[1], 'expires_at', ARGV[2])
  redis.call('PEXPIREAT', KEYS[1], ARGV[2])
end
return redis.call('HGETALL', KEYS[1])
`)

// RedisRepository stores each session as a hash whose key expires with the session.
type RedisRepository struct {
	rdb redis.UniversalClient
}

// NewRedisRepository returns a session repository backed by rdb.
func NewRedisRepository(rdb redis.UniversalClient) *RedisRepository {
	return &RedisRepository{rdb: rdb}
}

func sessionKey(token string) string { return redisKeyPrefix + token }

// Create writes the session hash and sets its key expiry in one transaction.
func (r *RedisRepository) Create(ctx context.Context, s *domain.Session) error {
	key := sessionKey(s.Token)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]any{
			"user_id":     s.UserID,
			"national_id": s.PrincipalID,
			"full_name":   s.DisplayName,
			"role":        s.Role,
			"issued_at":   s.IssuedAt.UnixMilli(),
			"expires_at":  s.ExpiresAt.UnixMilli(),
		})
		p.PExpireAt(ctx, key, s.ExpiresAt)
		return nil
	})
	return err
}

// GetActive reads the session hash. Keys that Redis has not evicted yet are still checked against now.
func (r *RedisRepository) GetActive(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	s, err := decodeSession(token, fields)
	if err != nil {
		return nil, err
	}
	if !s.Alive(now) {
		return nil, nil
	}
	return s, nil
}

// Touch runs touchScript so the liveness check and the extension happen in one step.
func (r *RedisRepository) Touch(ctx context.Context, token string, now, expiresAt time.Time) (*domain.Session, error) {
	res, err := touchScript.Run(ctx, r.rdb, []string{sessionKey(token)}, now.UnixMilli(), expiresAt.UnixMilli()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	pairs, ok := res.([]any)
	if !ok || len(pairs)%2 != 0 {
		return nil, fmt.Errorf("session: unexpected script reply %T", res)
	}
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		v, _ := pairs[i+1].(string)
		fields[k] = v
	}
	return decodeSession(token, fields)
}

// Delete removes the session key.
func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, sessionKey(token)).Err()
}

// DeleteExpired is a no-op: Redis evicts expired keys itself, so there is never anything to sweep.
func (r *RedisRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func decodeSession(token string, fields map[string]string) (*domain.Session, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session: decode user_id: %w", err)
	}
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session: decode issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session: decode expires_at: %w", err)
	}
	return &domain.Session{
		Token:       token,
		UserID:      userID,
		PrincipalID: fields["national_id"],
		DisplayName: fields["full_name"],
		Role:        fields["role"],
		IssuedAt:    time.UnixMilli(issued).UTC(),
		ExpiresAt:   time.UnixMilli(expires).UTC(),
	}, nil
}
