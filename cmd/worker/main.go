// cmd/worker/main.go runs webhook delivery workers and the sweeper without the HTTP API
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/shopsphere-backend/internal/config"
	"github.com/your-org/shopsphere-backend/internal/domain/webhook"
	"github.com/your-org/shopsphere-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/shopsphere-backend/internal/infrastructure/database/redis"
	"github.com/your-org/shopsphere-backend/internal/infrastructure/queue"
	"github.com/your-org/shopsphere-backend/internal/pkg/logger"
	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	log := logger.New(cfg.Logging).WithField("component", "worker")
	log.Infof("🚀 Starting %s delivery worker v%s", cfg.App.Name, cfg.App.Version)

	m := metrics.New()

	db, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient, err := redis.NewConnection(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	deliveryQueue, err := queue.FromConfig(cfg.Queue, redisClient.GetClient())
	if err != nil {
		log.Fatalf("Failed to set up delivery queue: %v", err)
	}
	defer deliveryQueue.Close()

	events := webhook.NewStore(db.GetDB())
	dispatcher := webhook.NewDispatcher(
		events,
		deliveryQueue,
		webhook.NewHTTPDeliverer(cfg.Webhook.DeliveryTimeout),
		webhook.DispatcherConfig{
			URL: cfg.Webhook.DeliveryURL,
			Policy: webhook.RetryPolicy{
				MaxRetries: cfg.Webhook.MaxRetries,
				Backoff:    webhook.ExponentialBackoff(cfg.Webhook.BackoffBase, cfg.Webhook.BackoffCap),
			},
		},
		log,
		m,
	)

	pool := queue.NewWorkerPool(deliveryQueue, cfg.Queue.Name, cfg.Queue.Workers, dispatcher.Handle, log, m)
	sweeper := webhook.NewSweeper(events, dispatcher, cfg.Webhook.SweepInterval, cfg.Webhook.SweepAge, log)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Queue.MetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	log.WithFields(logrus.Fields{
		"workers": cfg.Queue.Workers,
		"driver":  cfg.Queue.Driver,
		"queue":   cfg.Queue.Name,
	}).Info("✅ Delivery workers running")

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Worker exited with error")
	}

	log.Info("✅ Worker shutdown completed")
}
