// Package redisqueue is a Redis list used as the notification outbox.
// Producers LPUSH JSON messages; the worker BRPOPs them in FIFO order.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tenant-access-control/internal/notification"
)

// DefaultKey is the list key used when none is configured.
const DefaultKey = "notifications:outbox"

const defaultTimeout = 5 * time.Second

// Config captures the settings for establishing a Redis connection.
type Config struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
// A default timeout is applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Queue implements notification.Notifier and notification.Source over a Redis list.
type Queue struct {
	client *redis.Client
	key    string
}

// New returns a Queue on key. An empty key means DefaultKey.
func New(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{client: client, key: key}
}

// Notify enqueues msg.
func (q *Queue) Notify(ctx context.Context, msg notification.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the oldest message. It returns (nil, nil) on timeout.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*notification.Message, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue notification: %w", err)
	}
	// res is [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue notification: unexpected reply of %d elements", len(res))
	}
	var msg notification.Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &msg, nil
}

// Len returns the number of queued messages.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
