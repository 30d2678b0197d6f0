package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore is a Redis-backed store for multi-instance deployments:
// any instance can serve images for a conversion another instance ran.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

func imageKey(conversionID, name string) string {
	return "conv:" + conversionID + ":img:" + name
}

func namesKey(conversionID string) string {
	return "conv:" + conversionID + ":names"
}

func (s *RedisStore) Put(ctx context.Context, conversionID string, images []Image, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	order := make([]string, 0, len(images))
	for _, img := range images {
		data, err := json.Marshal(img)
		if err != nil {
			return fmt.Errorf("marshal image %q: %w", img.Name, err)
		}
		pipe.Set(ctx, imageKey(conversionID, img.Name), data, ttl)
		order = append(order, img.Name)
	}
	// The name list is stored as JSON to preserve enumeration order;
	// a Redis set would lose it.
	names, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal name list: %w", err)
	}
	pipe.Set(ctx, namesKey(conversionID), names, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store conversion %s: %w", conversionID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, conversionID, name string) (*Image, error) {
	data, err := s.client.Get(ctx, imageKey(conversionID, name)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s/%s: %w", conversionID, name, err)
	}
	var img Image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("decode image %s/%s: %w", conversionID, name, err)
	}
	return &img, nil
}

func (s *RedisStore) List(ctx context.Context, conversionID string) ([]string, error) {
	data, err := s.client.Get(ctx, namesKey(conversionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list conversion %s: %w", conversionID, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode name list %s: %w", conversionID, err)
	}
	return names, nil
}

func (s *RedisStore) Delete(ctx context.Context, conversionID string) error {
	names, err := s.List(ctx, conversionID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(names)+1)
	for _, name := range names {
		keys = append(keys, imageKey(conversionID, name))
	}
	keys = append(keys, namesKey(conversionID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete conversion %s: %w", conversionID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
