// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/shopsphere-backend/internal/config"
	"github.com/your-org/shopsphere-backend/internal/domain/cart"
	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
	"github.com/your-org/shopsphere-backend/internal/domain/checkout"
	"github.com/your-org/shopsphere-backend/internal/domain/order"
	"github.com/your-org/shopsphere-backend/internal/domain/webhook"
	"github.com/your-org/shopsphere-backend/internal/infrastructure/cache"
	"github.com/your-org/shopsphere-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/shopsphere-backend/internal/infrastructure/database/redis"
	"github.com/your-org/shopsphere-backend/internal/infrastructure/queue"
	"github.com/your-org/shopsphere-backend/internal/interfaces/http"
	"github.com/your-org/shopsphere-backend/internal/interfaces/http/handlers"
	"github.com/your-org/shopsphere-backend/internal/interfaces/http/routes"
	"github.com/your-org/shopsphere-backend/internal/pkg/auth"
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

	log := logger.New(cfg.Logging)
	log.Infof("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

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

	migration := postgres.NewMigration(db.GetDB())

	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	if err := migration.CreateIndexes(); err != nil {
		log.Warnf("Index creation failed: %v", err)
	}

	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.Warnf("Data seeding failed: %v", err)
		}
		migration.GetTableInfo()
	}

	deliveryQueue, err := queue.FromConfig(cfg.Queue, redisClient.GetClient())
	if err != nil {
		log.Fatalf("Failed to set up delivery queue: %v", err)
	}
	defer deliveryQueue.Close()

	gdb := db.GetDB()
	events := webhook.NewStore(gdb)
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
			Sync: cfg.IsSyncDelivery(),
		},
		log,
		m,
	)

	catalogService := catalog.NewService(
		catalog.NewGormStore(gdb),
		cache.NewRedisCache(redisClient.GetClient(), cfg.App.Name),
		cfg.Catalog.CacheTTL,
		log,
		m,
	)
	if cfg.IsDevelopment() {
		// The seed may have changed the catalog behind a listing cached by a previous run.
		if err := catalogService.InvalidateActive(context.Background()); err != nil {
			log.Warnf("Catalog cache invalidation failed: %v", err)
		}
	}

	server := http.NewServer(cfg, http.Dependencies{
		DB:     db,
		Redis:  redisClient.GetClient(),
		Tokens: auth.NewJWTManager(cfg),
		Handlers: routes.Handlers{
			Cart:     handlers.NewCartHandler(cart.NewService(gdb, catalogService)),
			Checkout: handlers.NewCheckoutHandler(checkout.NewService(gdb, events, dispatcher, log, m)),
			Order:    handlers.NewOrderHandler(order.NewService(gdb)),
			Product:  handlers.NewProductHandler(catalogService),
			Webhook: handlers.NewWebhookHandler(
				webhook.NewReceiver(cfg.Webhook.Secret, events, dispatcher, log, m),
				events,
				dispatcher,
			),
		},
		Metrics: m,
		Log:     log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Queue.EmbeddedWorkers {
		pool := queue.NewWorkerPool(deliveryQueue, cfg.Queue.Name, cfg.Queue.Workers, dispatcher.Handle, log, m)
		g.Go(func() error { return pool.Run(gctx) })

		sweeper := webhook.NewSweeper(events, dispatcher, cfg.Webhook.SweepInterval, cfg.Webhook.SweepAge, log)
		g.Go(func() error {
			sweeper.Run(gctx)
			return nil
		})
		log.WithField("workers", cfg.Queue.Workers).Info("🔁 Embedded delivery workers started")
	}

	g.Go(server.Start)

	log.Info("✅ All systems operational!")

	g.Go(func() error {
		<-gctx.Done()
		log.Info("👋 Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server exited with error")
	}

	log.Info("✅ Server shutdown completed")
}
