// Package testutil starts throwaway infrastructure for integration tests.
package testutil

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/shopsphere-backend/internal/infrastructure/database/postgres"
)

const postgresImage = "postgres:17.6-alpine3.22"

// StartPostgres runs a PostgreSQL container, migrates every model and returns a gorm handle.
// The test is skipped under -short.
func StartPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("shopsphere_test"),
		tcpostgres.WithUsername("shopsphere"),
		tcpostgres.WithPassword("shopsphere"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("postgres.Run: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString: %v", err)
	}

	db, err := postgres.Open(connStr, logger.Silent)
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if err := postgres.NewMigration(db).RunAutoMigrations(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Truncate empties every application table and resets identities
func Truncate(t testing.TB, db *gorm.DB) {
	t.Helper()
	err := db.Exec(`TRUNCATE TABLE webhook_events, order_status_history, payments, order_items, orders,
		cart_items, carts, product_variants, products RESTART IDENTITY CASCADE`).Error
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
