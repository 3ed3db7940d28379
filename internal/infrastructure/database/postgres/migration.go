// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/your-org/shopsphere-backend/internal/domain/cart"
	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
	"github.com/your-org/shopsphere-backend/internal/domain/order"
	"github.com/your-org/shopsphere-backend/internal/domain/webhook"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// Models lists every table in dependency order
func Models() []interface{} {
	return []interface{}{
		// Catalog
		&catalog.Product{},
		&catalog.ProductVariant{},

		// Cart domain
		&cart.Cart{},
		&cart.CartItem{},

		// Order domain
		&order.Order{},
		&order.OrderItem{},
		&order.Payment{},
		&order.OrderStatusHistory{},

		// Webhooks
		&webhook.WebhookEvent{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	for _, model := range Models() {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		// Catalog indexes
		"CREATE INDEX IF NOT EXISTS idx_products_active_id ON products(is_active, id)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",

		// Order status history indexes
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",

		// Webhook indexes: the sweeper scans never-attempted undelivered events
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_pending ON webhook_events(created_at) WHERE delivered = false AND attempts = 0 AND abandoned_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_undelivered ON webhook_events(id) WHERE delivered = false",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts a small demo catalog for development
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedCatalog(); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedCatalog() error {
	log.Println("🛍️ Seeding demo catalog...")

	var productCount int64
	if err := m.db.Model(&catalog.Product{}).Count(&productCount).Error; err != nil {
		return err
	}
	if productCount > 0 {
		log.Println("⏭️ Catalog already seeded")
		return nil
	}

	products := []catalog.Product{
		{
			Name:        "Classic T-Shirt",
			Description: "Soft cotton crew neck tee",
			IsActive:    true,
			Variants: []catalog.ProductVariant{
				{
					SKU:   "TSHIRT-RED-M",
					Price: decimal.RequireFromString("10.00"),
					Stock: 100,
					Attributes: catalog.Attributes{
						"color": catalog.StringValue("red"),
						"size":  catalog.StringValue("M"),
					},
				},
				{
					SKU:   "TSHIRT-BLUE-L",
					Price: decimal.RequireFromString("12.00"),
					Stock: 50,
					Attributes: catalog.Attributes{
						"color": catalog.StringValue("blue"),
						"size":  catalog.StringValue("L"),
					},
				},
			},
		},
		{
			Name:        "Ceramic Mug",
			Description: "350ml stoneware mug",
			IsActive:    true,
			Variants: []catalog.ProductVariant{
				{
					SKU:   "MUG-WHITE",
					Price: decimal.RequireFromString("5.00"),
					Stock: 200,
					Attributes: catalog.Attributes{
						"capacity_ml":     catalog.NumberValue(350),
						"dishwasher_safe": catalog.BoolValue(true),
					},
				},
			},
		},
		{
			Name:        "Discontinued Poster",
			Description: "No longer listed",
			IsActive:    false,
			Variants: []catalog.ProductVariant{
				{SKU: "POSTER-A2", Price: decimal.RequireFromString("3.50"), Stock: 0},
			},
		},
	}

	for i := range products {
		if err := m.db.Create(&products[i]).Error; err != nil {
			return err
		}
		log.Printf("✅ Created product: %s", products[i].Name)
	}

	return nil
}

// GetTableInfo logs row counts per table for a quick sanity check in development
func (m *Migration) GetTableInfo() {
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: m.db}
		if err := stmt.Parse(model); err != nil {
			continue
		}
		var count int64
		if err := m.db.Model(model).Count(&count).Error; err != nil {
			log.Printf("⚠️ %s: %v", stmt.Schema.Table, err)
			continue
		}
		log.Printf("📊 %s: %d rows", stmt.Schema.Table, count)
	}
}
