// SPDX-License-Identifier: MIT

// Package channel is the Redis pub/sub fanout between server instances.
// Every room and every user gets a channel; whatever is published there
// reaches the local hubs of all instances holding a matching subscription.
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds Redis connection settings.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient dials Redis and verifies the connection.
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// RoomChannel names the fanout channel for a room.
func RoomChannel(roomID int64) string {
	return fmt.Sprintf("parley:room:%d", roomID)
}

// UserChannel names the per-user channel used for notifications.
func UserChannel(userID int64) string {
	return fmt.Sprintf("parley:user:%d", userID)
}
