// internal/domain/webhook/sweeper.go
package webhook

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// PendingLister finds events that were recorded but never handed to a worker
type PendingLister interface {
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]WebhookEvent, error)
}

// Enqueuer schedules a first delivery attempt
type Enqueuer interface {
	Enqueue(ctx context.Context, eventID uint) error
}

// Sweeper re-enqueues events stranded by a failed enqueue after commit
type Sweeper struct {
	store     PendingLister
	enqueuer  Enqueuer
	interval  time.Duration
	age       time.Duration
	batchSize int
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewSweeper(store PendingLister, enqueuer Enqueuer, interval, age time.Duration, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{
		store:     store,
		enqueuer:  enqueuer,
		interval:  interval,
		age:       age,
		batchSize: 100,
		log:       log,
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval.String()).Info("pending webhook sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("pending webhook sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Error("pending webhook sweep failed")
			}
		}
	}
}

// SweepOnce enqueues one batch of stranded events and returns how many were enqueued
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	events, err := s.store.ListPending(ctx, s.now().Add(-s.age), s.batchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, ev := range events {
		if err := s.enqueuer.Enqueue(ctx, ev.ID); err != nil {
			s.log.WithError(err).WithField("event_id", ev.ID).Warn("failed to re-enqueue pending webhook event")
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.log.WithField("count", enqueued).Info("re-enqueued pending webhook events")
	}
	return enqueued, nil
}
