// internal/infrastructure/queue/kafka_queue.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes tasks to a topic and consumes them through a consumer group.
//
// Kafka has no per-message delay, so a task that is not yet due is written back
// to the topic and its original record released. Offsets are committed per
// partition only up to the last record whose predecessors are all settled.
type KafkaQueue struct {
	writer kafkaWriter
	reader kafkaReader

	deferInterval time.Duration
	redelivery    time.Duration
	now           func() time.Time

	fetchMu  sync.Mutex
	tracker  *commitTracker
	commitMu sync.Mutex
	// committed holds the highest committed offset per partition
	committed map[int]int64
}

// KafkaOption configures a KafkaQueue
type KafkaOption func(*KafkaQueue)

// WithDeferInterval caps how long a worker holds a not-yet-due task before writing it back
func WithDeferInterval(d time.Duration) KafkaOption {
	return func(q *KafkaQueue) {
		if d > 0 {
			q.deferInterval = d
		}
	}
}

// WithRedeliveryDelay sets how far in the future a failed task is rescheduled
func WithRedeliveryDelay(d time.Duration) KafkaOption {
	return func(q *KafkaQueue) {
		if d > 0 {
			q.redelivery = d
		}
	}
}

func NewKafkaQueue(brokers []string, topic, groupID string, opts ...KafkaOption) *KafkaQueue {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaQueue(reader, writer, opts...)
}

func newKafkaQueue(reader kafkaReader, writer kafkaWriter, opts ...KafkaOption) *KafkaQueue {
	q := &KafkaQueue{
		writer:        writer,
		reader:        reader,
		deferInterval: time.Second,
		redelivery:    30 * time.Second,
		now:           time.Now,
		tracker:       newCommitTracker(),
		committed:     make(map[int]int64),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *KafkaQueue) Enqueue(ctx context.Context, task Task) error {
	msg, err := encodeMessage(task, q.now())
	if err != nil {
		return err
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		msg, rec, err := q.fetch(ctx)
		if err != nil {
			return nil, err
		}

		task, err := decodeMessage(msg)
		if err != nil {
			// Settle so a malformed record does not pin the partition's offset.
			_ = q.settle(ctx, rec)
			return nil, err
		}

		wait := task.RunAt.Sub(q.now())
		if wait > q.deferInterval {
			wait = q.deferInterval
		}
		if err := waitUntil(ctx, q.now().Add(wait), q.now); err != nil {
			return nil, err
		}

		if task.RunAt.After(q.now()) {
			if err := q.Enqueue(ctx, task); err != nil {
				return nil, fmt.Errorf("failed to defer task %s: %w", task.ID, err)
			}
			if err := q.settle(ctx, rec); err != nil {
				return nil, err
			}
			continue
		}

		return &Delivery{
			Task: task,
			ack: func(ctx context.Context) error {
				return q.settle(ctx, rec)
			},
			nack: func(ctx context.Context) error {
				retry := task
				retry.RunAt = q.now().Add(q.redelivery)
				if err := q.Enqueue(ctx, retry); err != nil {
					return err
				}
				return q.settle(ctx, rec)
			},
		}, nil
	}
}

// fetch reads the next record and registers it with the tracker in fetch order
func (q *KafkaQueue) fetch(ctx context.Context) (kafka.Message, *trackedRecord, error) {
	q.fetchMu.Lock()
	defer q.fetchMu.Unlock()

	msg, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, nil, err
	}
	return msg, q.tracker.track(msg), nil
}

// settle marks a record handled and commits the partition's settled prefix
func (q *KafkaQueue) settle(ctx context.Context, rec *trackedRecord) error {
	msg, ok := q.tracker.complete(rec)
	if !ok {
		return nil
	}

	q.commitMu.Lock()
	defer q.commitMu.Unlock()
	if last, seen := q.committed[msg.Partition]; seen && last >= msg.Offset {
		return nil
	}
	if err := q.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka commit failed: %w", err)
	}
	q.committed[msg.Partition] = msg.Offset
	return nil
}

func (q *KafkaQueue) Close() error {
	werr := q.writer.Close()
	rerr := q.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

type trackedRecord struct {
	msg  kafka.Message
	done bool
}

// commitTracker keeps fetched records per partition in fetch order
type commitTracker struct {
	mu      sync.Mutex
	pending map[int][]*trackedRecord
}

func newCommitTracker() *commitTracker {
	return &commitTracker{pending: make(map[int][]*trackedRecord)}
}

func (t *commitTracker) track(msg kafka.Message) *trackedRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := &trackedRecord{msg: msg}
	t.pending[msg.Partition] = append(t.pending[msg.Partition], rec)
	return rec
}

// complete marks rec done and returns the last record of the settled prefix, if it advanced
func (t *commitTracker) complete(rec *trackedRecord) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec.done = true
	list := t.pending[rec.msg.Partition]
	i := 0
	for i < len(list) && list[i].done {
		i++
	}
	if i == 0 {
		return kafka.Message{}, false
	}
	last := list[i-1].msg
	t.pending[rec.msg.Partition] = list[i:]
	return last, true
}

func encodeMessage(task Task, now time.Time) (kafka.Message, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.RunAt.IsZero() {
		task.RunAt = now
	}
	data, err := json.Marshal(task)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal task failed: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(task.EventID), 10)),
		Value: data,
		Time:  now.UTC(),
	}, nil
}

func decodeMessage(msg kafka.Message) (Task, error) {
	var task Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		return Task{}, fmt.Errorf("unmarshal task at offset %d failed: %w", msg.Offset, err)
	}
	return task, nil
}

func waitUntil(ctx context.Context, runAt time.Time, now func() time.Time) error {
	wait := runAt.Sub(now())
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
