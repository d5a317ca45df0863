// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cascadehr/cascade/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetQueueLogger()
		log = &l
	})
	return log
}

// RedisQueue is the Redis-backed queue backend: LPUSH on enqueue, BRPOP on
// dequeue, JSON envelopes. Suitable when several engine processes share one
// trigger stream.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue wraps a Redis client as a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes a JSON-encoded envelope onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Dequeue blocks on BRPOP until an envelope arrives or ctx is done. The pop
// timeout is short so cancellation is observed promptly.
func (q *RedisQueue) Dequeue(ctx context.Context) (Envelope, error) {
	for {
		vals, err := q.client.BRPop(ctx, 2*time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return Envelope{}, ctx.Err()
				}
				continue
			}
			return Envelope{}, fmt.Errorf("redis brpop: %w", err)
		}
		// BRPOP returns [key, value]. A malformed value is already popped,
		// so it is dropped here rather than surfaced as a dequeue error.
		var env Envelope
		if err := json.Unmarshal([]byte(vals[1]), &env); err != nil {
			getLog().Warn().Err(err).Str("key", q.key).Msg("Dropping undecodable envelope")
			continue
		}
		return env, nil
	}
}

// Len returns the current list length.
func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
