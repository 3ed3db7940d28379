// internal/infrastructure/queue/redis_queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript moves expired in-flight tasks back to the ready set, then claims
// the earliest due task into the processing set with a visibility deadline.
var claimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local deadline = tonumber(ARGV[2])

local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', now)
for _, member in ipairs(expired) do
  redis.call('ZREM', KEYS[2], member)
  redis.call('ZADD', KEYS[1], now, member)
end

local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', now, 'LIMIT', 0, 1)
if #due == 0 then
  return false
end

redis.call('ZREM', KEYS[1], due[1])
redis.call('ZADD', KEYS[2], deadline, due[1])
return due[1]
`)

// RedisQueue keeps ready tasks in a sorted set scored by run time and
// claimed tasks in a second sorted set scored by visibility deadline.
type RedisQueue struct {
	client       redis.UniversalClient
	readyKey     string
	inflightKey  string
	visibility   time.Duration
	pollInterval time.Duration
	now          func() time.Time
	closed       atomic.Bool
}

// RedisOption configures a RedisQueue
type RedisOption func(*RedisQueue)

// WithClock overrides the time source used for scheduling and claims
func WithClock(now func() time.Time) RedisOption {
	return func(q *RedisQueue) { q.now = now }
}

// WithVisibilityTimeout sets how long a claimed task stays invisible before redelivery
func WithVisibilityTimeout(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.visibility = d
		}
	}
}

// WithPollInterval sets the idle wait between claim attempts
func WithPollInterval(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

func NewRedisQueue(client redis.UniversalClient, name string, opts ...RedisOption) *RedisQueue {
	q := &RedisQueue{
		client:       client,
		readyKey:     fmt.Sprintf("queue:%s:ready", name),
		inflightKey:  fmt.Sprintf("queue:%s:processing", name),
		visibility:   30 * time.Second,
		pollInterval: time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.RunAt.IsZero() {
		task.RunAt = q.now()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task failed: %w", err)
	}

	err = q.client.ZAdd(ctx, q.readyKey, redis.Z{
		Score:  float64(task.RunAt.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis zadd failed: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		if q.closed.Load() {
			return nil, ErrClosed
		}

		d, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// claim returns nil, nil when nothing is due
func (q *RedisQueue) claim(ctx context.Context) (*Delivery, error) {
	now := q.now()
	deadline := now.Add(q.visibility)

	member, err := claimScript.Run(ctx, q.client,
		[]string{q.readyKey, q.inflightKey},
		now.UnixMilli(), deadline.UnixMilli(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task failed: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(member), &task); err != nil {
		// Poison entry: drop it so it does not block the queue.
		q.client.ZRem(ctx, q.inflightKey, member)
		return nil, fmt.Errorf("unmarshal task failed: %w", err)
	}

	return &Delivery{
		Task: task,
		ack: func(ctx context.Context) error {
			return q.client.ZRem(ctx, q.inflightKey, member).Err()
		},
	}, nil
}

// Pending returns the number of tasks waiting to be claimed
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.readyKey).Result()
}

// InFlight returns the number of claimed but unacknowledged tasks
func (q *RedisQueue) InFlight(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.inflightKey).Result()
}

func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
