// internal/domain/webhook/dispatcher.go
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/your-org/shopsphere-backend/internal/infrastructure/queue"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
)

// EventStore is the part of Store the dispatcher needs
type EventStore interface {
	Get(ctx context.Context, id uint) (*WebhookEvent, error)
	MarkAttempt(ctx context.Context, id uint) error
	ClaimAttempt(ctx context.Context, id uint, maxAttempts int) (int, bool, error)
	MarkDelivered(ctx context.Context, id uint) error
	MarkAbandoned(ctx context.Context, id uint) error
}

// DispatcherConfig holds the delivery target and retry behaviour
type DispatcherConfig struct {
	// URL of the subscriber. Empty means every attempt counts as delivered.
	URL    string
	Policy RetryPolicy
	// Sync makes Dispatch deliver inline with a single attempt instead of enqueuing.
	Sync bool
}

// Dispatcher moves events through pending -> attempting -> delivered | retry | abandoned
type Dispatcher struct {
	store     EventStore
	queue     queue.Queue
	deliverer Deliverer
	cfg       DispatcherConfig
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewDispatcher creates a new delivery dispatcher
func NewDispatcher(store EventStore, q queue.Queue, d Deliverer, cfg DispatcherConfig, log logrus.FieldLogger, m *metrics.Metrics) *Dispatcher {
	if cfg.Policy.Backoff == nil {
		cfg.Policy = DefaultRetryPolicy()
	}
	return &Dispatcher{
		store:     store,
		queue:     q,
		deliverer: d,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// Enqueue schedules the first delivery attempt for an event
func (d *Dispatcher) Enqueue(ctx context.Context, eventID uint) error {
	return d.schedule(ctx, queue.Task{EventID: eventID, RunAt: d.now()})
}

// Dispatch enqueues the event, or delivers it inline in sync mode.
// A failed inline attempt is not an error; the event simply stays undelivered.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID uint) error {
	if !d.cfg.Sync {
		return d.Enqueue(ctx, eventID)
	}
	_, err := d.DeliverSync(ctx, eventID)
	return err
}

// Handle is the worker entry point for one queued task
func (d *Dispatcher) Handle(ctx context.Context, task queue.Task) error {
	log := d.log.WithFields(logrus.Fields{"event_id": task.EventID, "retries": task.Retries})

	ev, err := d.store.Get(ctx, task.EventID)
	if errors.Is(err, apperrors.ErrNotFound) {
		log.Warn("webhook event not found, dropping task")
		d.observe(metrics.OutcomeMissing)
		return nil
	}
	if err != nil {
		return err
	}

	// The queue is at-least-once; finished events can show up again.
	if ev.Delivered || ev.IsAbandoned() {
		log.Debug("webhook event already finished, skipping")
		d.observe(metrics.OutcomeSkipped)
		return nil
	}

	// The retry budget belongs to the event, not the task, so duplicate tasks
	// share it and the attempt count never passes MaxAttempts.
	attempts, claimed, err := d.store.ClaimAttempt(ctx, ev.ID, d.cfg.Policy.MaxAttempts())
	if err != nil {
		return err
	}
	if !claimed {
		return d.unclaimed(ctx, log, ev.ID)
	}
	retries := attempts - 1
	log = log.WithField("attempts", attempts)

	if d.attempt(ctx, log, ev) {
		if err := d.store.MarkDelivered(ctx, ev.ID); err != nil {
			return err
		}
		log.Info("webhook event delivered")
		d.observe(metrics.OutcomeDelivered)
		return nil
	}

	if d.cfg.Policy.ShouldRetry(retries) {
		delay := d.cfg.Policy.Backoff(retries)
		next := queue.Task{
			EventID: ev.ID,
			Retries: retries + 1,
			RunAt:   d.now().Add(delay),
		}
		if err := d.schedule(ctx, next); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		log.WithField("countdown", delay.String()).Info("webhook delivery failed, retry scheduled")
		d.observe(metrics.OutcomeRetried)
		return nil
	}

	return d.abandon(ctx, log, ev.ID)
}

// unclaimed settles a task whose event could not take another attempt:
// it finished in the meantime, or a duplicate task used up the budget.
func (d *Dispatcher) unclaimed(ctx context.Context, log logrus.FieldLogger, id uint) error {
	ev, err := d.store.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		d.observe(metrics.OutcomeMissing)
		return nil
	}
	if err != nil {
		return err
	}
	if ev.Delivered || ev.IsAbandoned() {
		log.Debug("webhook event finished by another task, skipping")
		d.observe(metrics.OutcomeSkipped)
		return nil
	}
	return d.abandon(ctx, log.WithField("attempts", ev.Attempts), id)
}

func (d *Dispatcher) abandon(ctx context.Context, log logrus.FieldLogger, id uint) error {
	if err := d.store.MarkAbandoned(ctx, id); err != nil {
		return err
	}
	log.Warn("webhook delivery abandoned after exhausting retries")
	d.observe(metrics.OutcomeAbandoned)
	return nil
}

// DeliverSync makes exactly one delivery attempt and never retries
func (d *Dispatcher) DeliverSync(ctx context.Context, eventID uint) (bool, error) {
	log := d.log.WithField("event_id", eventID)

	ev, err := d.store.Get(ctx, eventID)
	if err != nil {
		return false, err
	}

	if err := d.store.MarkAttempt(ctx, ev.ID); err != nil {
		return false, err
	}

	if !d.attempt(ctx, log, ev) {
		return false, nil
	}

	if err := d.store.MarkDelivered(ctx, ev.ID); err != nil {
		return false, err
	}
	d.observe(metrics.OutcomeDelivered)
	return true, nil
}

func (d *Dispatcher) attempt(ctx context.Context, log logrus.FieldLogger, ev *WebhookEvent) bool {
	if d.cfg.URL == "" {
		log.Debug("no delivery url configured, treating event as delivered")
		return true
	}

	if err := d.deliverer.Deliver(ctx, d.cfg.URL, ev.Payload); err != nil {
		log.WithError(err).Warn("webhook delivery attempt failed")
		d.observe(metrics.OutcomeFailed)
		return false
	}
	return true
}

func (d *Dispatcher) schedule(ctx context.Context, task queue.Task) error {
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue webhook event %d: %w", task.EventID, err)
	}
	if d.metrics != nil {
		d.metrics.QueueEnqueued.WithLabelValues("webhook").Inc()
	}
	return nil
}

func (d *Dispatcher) observe(outcome string) {
	if d.metrics != nil {
		d.metrics.WebhookDeliveries.WithLabelValues(outcome).Inc()
	}
}
