package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupRedisQueue(t *testing.T) (*RedisQueue, *fakeClock) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	q := NewRedisQueue(client, "test",
		WithClock(clock.Now),
		WithVisibilityTimeout(30*time.Second),
		WithPollInterval(10*time.Millisecond),
	)
	return q, clock
}

func TestRedisQueue_DueTaskIsClaimed(t *testing.T) {
	q, _ := setupRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{EventID: 42}))

	d, err := q.claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.EqualValues(t, 42, d.Task.EventID)
	assert.Equal(t, 0, d.Task.Retries)
	assert.NotEmpty(t, d.Task.ID)

	pending, _ := q.Pending(ctx)
	inflight, _ := q.InFlight(ctx)
	assert.EqualValues(t, 0, pending)
	assert.EqualValues(t, 1, inflight)

	require.NoError(t, d.Ack(ctx))
	inflight, _ = q.InFlight(ctx)
	assert.EqualValues(t, 0, inflight)
}

func TestRedisQueue_DelayedTaskWaitsForRunAt(t *testing.T) {
	q, clock := setupRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{EventID: 1, Retries: 1, RunAt: clock.Now().Add(60 * time.Second)}))

	d, err := q.claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, d, "task must not run before its countdown")

	clock.Advance(59 * time.Second)
	d, err = q.claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, d)

	clock.Advance(time.Second)
	d, err = q.claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 1, d.Task.Retries)
}

func TestRedisQueue_EarliestTaskFirst(t *testing.T) {
	q, clock := setupRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{EventID: 2, RunAt: clock.Now().Add(-time.Second)}))
	require.NoError(t, q.Enqueue(ctx, Task{EventID: 1, RunAt: clock.Now().Add(-time.Minute)}))

	d, err := q.claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.EqualValues(t, 1, d.Task.EventID)
}

func TestRedisQueue_UnackedTaskIsRedelivered(t *testing.T) {
	q, clock := setupRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{EventID: 9}))

	first, err := q.claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	d, err := q.claim(ctx)
	require.NoError(t, err)
	assert.Nil(t, d, "claimed task is invisible until the deadline")

	clock.Advance(31 * time.Second)

	again, err := q.claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, first.Task.ID, again.Task.ID)
}

func TestRedisQueue_IdenticalTasksAreKeptApart(t *testing.T) {
	q, _ := setupRedisQueue(t)
	ctx := context.Background()

	runAt := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, q.Enqueue(ctx, Task{EventID: 5, RunAt: runAt}))
	require.NoError(t, q.Enqueue(ctx, Task{EventID: 5, RunAt: runAt}))

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)
}

func TestRedisQueue_DequeueBlocksUntilContextDone(t *testing.T) {
	q, _ := setupRedisQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	d, err := q.Dequeue(ctx)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisQueue_Closed(t *testing.T) {
	q, _ := setupRedisQueue(t)
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(context.Background(), Task{EventID: 1}), ErrClosed)
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
