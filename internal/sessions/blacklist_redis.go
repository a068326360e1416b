package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist rejects access tokens revoked before their expiry.
type Blacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisBlacklist stores revoked access tokens under "blacklist:access:<sha256>"
// until they would have expired anyway. A nil client disables it.
type RedisBlacklist struct {
	client redis.UniversalClient
}

func NewRedisBlacklist(c redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{client: c}
}

func blacklistKey(token string) string {
	return "blacklist:access:" + HashToken(token)
}

func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if b == nil || b.client == nil || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if b == nil || b.client == nil {
		return false, nil
	}
	n, err := b.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
