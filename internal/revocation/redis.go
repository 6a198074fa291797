package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 2 * time.Second

// RedisStore keeps records as "<prefix><jti>" string keys with native expiry.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

func NewRedisStore(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (s *RedisStore) SetWhitelisted(ctx context.Context, jti string, ttl time.Duration) error {
	return s.set(ctx, WhitelistPrefix, jti, ttl)
}

func (s *RedisStore) SetBlacklisted(ctx context.Context, jti string, ttl time.Duration) error {
	return s.set(ctx, BlacklistPrefix, jti, ttl)
}

func (s *RedisStore) IsWhitelisted(ctx context.Context, jti string) (bool, error) {
	return s.exists(ctx, WhitelistPrefix, jti)
}

func (s *RedisStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return s.exists(ctx, BlacklistPrefix, jti)
}

func (s *RedisStore) RemoveWhitelisted(ctx context.Context, jti string) error {
	jti, err := normalize(jti)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Del(ctx, WhitelistPrefix+jti).Err(); err != nil {
		return fmt.Errorf("%w: redis del whitelist: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, prefix, jti string, ttl time.Duration) error {
	jti, err := normalize(jti)
	if err != nil {
		return err
	}
	if err := checkTTL(ttl); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, prefix+jti, "true", ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", ErrUnavailable, prefix, err)
	}
	return nil
}

func (s *RedisStore) exists(ctx context.Context, prefix, jti string) (bool, error) {
	jti, err := normalize(jti)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	n, err := s.client.Exists(ctx, prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis exists %s: %v", ErrUnavailable, prefix, err)
	}
	return n > 0, nil
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Pinger = (*RedisStore)(nil)
)
