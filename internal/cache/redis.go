package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a single go-redis client. The client dials
// lazily on the first command and re-dials from its pool on demand, so a
// Redis outage at startup does not prevent the service from starting.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses url (redis://[:password@]host:port[/db]) and builds the
// client without connecting. Commands are single attempt; opTimeout bounds
// dial, read and write.
func NewRedisStore(url string, opTimeout time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = -1
	opts.MinRetryBackoff = 50 * time.Millisecond
	opts.MaxRetryBackoff = time.Second
	if opTimeout > 0 {
		opts.DialTimeout = opTimeout
		opts.ReadTimeout = opTimeout
		opts.WriteTimeout = opTimeout
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value with SETEX semantics.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.SetEx(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
