package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Leantar/fdi/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "fdi:fingerprint:"

// Redis shares fingerprints between machines scanning the same network storage.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func OpenRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis cache requires an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &Redis{client: client, ttl: ttl}, nil
}

// Get restarts the TTL of a hit.
func (r *Redis) Get(ctx context.Context, key string) (models.Fingerprint, bool, error) {
	var cmd *redis.StringCmd
	if r.ttl > 0 {
		cmd = r.client.GetEx(ctx, redisKeyPrefix+key, r.ttl)
	} else {
		cmd = r.client.Get(ctx, redisKeyPrefix+key)
	}

	fp, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get fingerprint from redis: %w", err)
	}

	return fp, true, nil
}

// Put ignores path, the key already encodes it.
func (r *Redis) Put(ctx context.Context, key, _ string, fp models.Fingerprint) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, []byte(fp), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store fingerprint in redis: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete fingerprint from redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
