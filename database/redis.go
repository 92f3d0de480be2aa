package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// OpenRedisConnection pools the connection to the store backing the gateway's rate limiter
func OpenRedisConnection(addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
