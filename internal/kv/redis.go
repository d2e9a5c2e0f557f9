// Package kv opens the Redis connection backing the durable counter store.
package kv

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Open connects to Redis at addr and verifies the connection with a ping.
// Caller must call Close when done.
func Open(ctx context.Context, addr, password string, dbIndex int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
