package kv

import (
	"context"
	"time"

	"github.com/go-redis/redis/v7"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.WithContext(ctx).Get(key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.WithContext(ctx).Set(key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.WithContext(ctx).Del(key).Err()
}

func (s *RedisStore) Take(ctx context.Context, key string) (string, error) {
	var get *redis.StringCmd
	_, err := s.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		get = pipe.Get(key)
		pipe.Del(key)
		return nil
	})
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	v, err := get.Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
