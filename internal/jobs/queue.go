// Package jobs – queue implementations.
//
// Queue abstracts the transport used to hand tasks to the runner. MemoryQueue
// is a buffered channel for tests and single-binary runs; RedisQueue is a
// Redis list (LPUSH producer side, blocking BRPOP consumer side) for
// deployments where submitters and workers are separate processes.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned by a bounded queue that cannot accept more tasks.
var ErrQueueFull = errors.New("task queue is full")

// Queue is the abstract task transport between submitters and the runner.
type Queue interface {
	// Enqueue hands a task to the queue.
	Enqueue(ctx context.Context, t *Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*Task, error)
}

// MemoryQueue is a bounded, channel-backed Queue.
type MemoryQueue struct {
	ch chan *Task
}

// NewMemoryQueue returns a MemoryQueue holding at most size pending tasks.
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan *Task, size)}
}

// Enqueue adds t, returning ErrQueueFull when the buffer is exhausted rather
// than blocking the submitter.
func (q *MemoryQueue) Enqueue(ctx context.Context, t *Task) error {
	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until a task arrives or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case t := <-q.ch:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RedisQueue is a Queue on a Redis list.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue wraps an existing Redis client and list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes the JSON-encoded task onto the head of the list.
func (q *RedisQueue) Enqueue(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Dequeue pops from the tail of the list with a short blocking timeout so
// cancellation is honored promptly. Undecodable entries are dropped with a
// log line rather than wedging the consumer.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("redis dequeue failed, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		// res is [key, value]
		if len(res) < 2 {
			continue
		}
		var t Task
		if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
			log.Error().Err(err).Str("raw", res[1]).Msg("drop undecodable task")
			continue
		}
		return &t, nil
	}
}
