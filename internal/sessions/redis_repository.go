package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session as JSON under "<prefix>token:<hash>"
// with TTL = expiresAt - now, and indexes the hashes of a user's sessions in
// the set "<prefix>user:<userId>".
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) tokenKey(hash string) string { return r.prefix + "token:" + hash }
func (r *RedisRepository) userKey(userID string) string { return r.prefix + "user:" + userID }

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.tokenKey(s.TokenHash), b, ttl)
		p.SAdd(ctx, r.userKey(s.UserID), s.TokenHash)
		p.Expire(ctx, r.userKey(s.UserID), ttl)
		return nil
	})
	return err
}

func (r *RedisRepository) GetByHash(ctx context.Context, hash string) (*Session, error) {
	return decodeSession(r.client.Get(ctx, r.tokenKey(hash)).Bytes())
}

// ConsumeByHash reads and deletes the session in one round trip, so a
// refresh token can be redeemed once.
func (r *RedisRepository) ConsumeByHash(ctx context.Context, hash string) (*Session, error) {
	s, err := decodeSession(r.client.GetDel(ctx, r.tokenKey(hash)).Bytes())
	if err != nil || s == nil {
		return s, err
	}
	if err := r.client.SRem(ctx, r.userKey(s.UserID), hash).Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisRepository) DeleteByHash(ctx context.Context, hash string) error {
	_, err := r.ConsumeByHash(ctx, hash)
	return err
}

// DeleteByUser removes every session of userID, including ones whose token
// key already expired.
func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	hashes, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, r.tokenKey(h))
	}
	var removed *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = p.Del(ctx, keys...)
		}
		p.Del(ctx, r.userKey(userID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed == nil {
		return 0, nil
	}
	return int(removed.Val()), nil
}

func decodeSession(b []byte, err error) (*Session, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
