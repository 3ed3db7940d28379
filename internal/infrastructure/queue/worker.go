// internal/infrastructure/queue/worker.go
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
)

// Handler processes one task. Returning an error nacks the task instead of acknowledging it.
type Handler func(ctx context.Context, task Task) error

// depthReporter is implemented by queues that can report their backlog
type depthReporter interface {
	Pending(ctx context.Context) (int64, error)
	InFlight(ctx context.Context) (int64, error)
}

// WorkerPool runs a fixed number of consumers against one queue
type WorkerPool struct {
	queue      Queue
	name       string
	workers    int
	handle     Handler
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
	depthEvery time.Duration
}

func NewWorkerPool(q Queue, name string, workers int, handle Handler, log logrus.FieldLogger, m *metrics.Metrics) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		queue:      q,
		name:       name,
		workers:    workers,
		handle:     handle,
		log:        log,
		metrics:    m,
		depthEvery: 15 * time.Second,
	}
}

// Run blocks until ctx is cancelled or the queue is closed
func (p *WorkerPool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.loop(ctx, worker)
		})
	}

	depthCtx, stopDepth := context.WithCancel(ctx)
	defer stopDepth()
	var depthDone chan struct{}
	if dr, ok := p.queue.(depthReporter); ok && p.metrics != nil {
		depthDone = make(chan struct{})
		go func() {
			defer close(depthDone)
			p.reportDepth(depthCtx, dr)
		}()
	}

	err := g.Wait()
	stopDepth()
	if depthDone != nil {
		<-depthDone
	}
	return err
}

func (p *WorkerPool) loop(ctx context.Context, worker int) error {
	log := p.log.WithFields(logrus.Fields{"queue": p.name, "worker": worker})
	log.Debug("worker started")
	defer log.Debug("worker stopped")

	for {
		d, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return nil
			}
			log.WithError(err).Warn("dequeue failed")
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		if err := p.handle(ctx, d.Task); err != nil {
			log.WithError(err).WithField("event_id", d.Task.EventID).Error("task handler failed, handing task back")
			if nerr := d.Nack(ctx); nerr != nil {
				log.WithError(nerr).WithField("event_id", d.Task.EventID).Warn("nack failed")
			}
			p.observe("error")
			continue
		}

		if err := d.Ack(ctx); err != nil {
			log.WithError(err).WithField("event_id", d.Task.EventID).Warn("ack failed")
		}
		p.observe("ok")
	}
}

// reportDepth samples the queue backlog into the depth gauge until ctx is done
func (p *WorkerPool) reportDepth(ctx context.Context, dr depthReporter) {
	ticker := time.NewTicker(p.depthEvery)
	defer ticker.Stop()

	for {
		if pending, err := dr.Pending(ctx); err == nil {
			p.metrics.QueueDepth.WithLabelValues(p.name, "pending").Set(float64(pending))
		}
		if inflight, err := dr.InFlight(ctx); err == nil {
			p.metrics.QueueDepth.WithLabelValues(p.name, "in_flight").Set(float64(inflight))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *WorkerPool) observe(result string) {
	if p.metrics != nil {
		p.metrics.QueueHandled.WithLabelValues(p.name, result).Inc()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
