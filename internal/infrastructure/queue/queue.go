// internal/infrastructure/queue/queue.go
package queue

import (
	"context"
	"errors"
	"time"
)

// Task asks a worker to attempt delivery of one webhook event.
// Each retry is a new task with Retries incremented and a later RunAt.
type Task struct {
	ID      string    `json:"id"`
	EventID uint      `json:"event_id"`
	Retries int       `json:"retries"`
	RunAt   time.Time `json:"run_at"`
}

// Delivery is a claimed task. Ack must be called once the task is handled;
// unacknowledged tasks are handed out again later.
type Delivery struct {
	Task Task
	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack hands a failed task back for a later attempt. Drivers without an
// explicit nack rely on their own redelivery, so it is a no-op for them.
func (d *Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}

// Queue is a durable, delayed, at-least-once task queue
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks until a task is due or ctx is done
	Dequeue(ctx context.Context) (*Delivery, error)
	Close() error
}

var ErrClosed = errors.New("queue closed")
