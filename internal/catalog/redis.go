package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client, baseTTL time.Duration, store string) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
		key:     cacheKey(store),
	}
}

// RedisCache shares one catalog snapshot between the terminals of a store.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
	key     string
}

func (r RedisCache) Get(ctx context.Context) (*Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal catalog failed: %w", err)
	}
	return &snapshot, nil
}

func (r RedisCache) Set(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal catalog failed: %w", err)
	}

	// jitter spreads expiry across terminals sharing the key
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/5) + 1))
	if err := r.client.Set(ctx, r.key, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(store string) string {
	return fmt.Sprintf("catalog:%s", store)
}
