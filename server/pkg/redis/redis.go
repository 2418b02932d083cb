package redis

import (
	"fmt"

	"github.com/go-redis/redis/v7"
)

func NewRedisDB(host, port, password string) *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})
	return redisClient
}

// Ping reports whether the server answers.
func Ping(client *redis.Client) error {
	return client.Ping().Err()
}
