package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	OpTimeout  time.Duration
	MaxRetries int
}

// OpenRedis builds a pooled client with bounded timeouts and retries and pings it once.
func OpenRedis(ctx context.Context, o RedisOptions) (*redis.Client, error) {
	opTimeout := o.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,

		PoolSize:     10,
		MinIdleConns: 2,

		MaxRetries:      o.MaxRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 256 * time.Millisecond,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		PoolTimeout:  opTimeout + time.Second,

		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
