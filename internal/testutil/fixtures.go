package testutil

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
)

// CreateVariant inserts an active product with one variant at the given price
func CreateVariant(t testing.TB, db *gorm.DB, price string) catalog.ProductVariant {
	t.Helper()

	p := catalog.Product{
		Name:        gofakeit.ProductName(),
		Description: gofakeit.ProductDescription(),
		IsActive:    true,
		Variants: []catalog.ProductVariant{{
			SKU:   gofakeit.UUID(),
			Price: decimal.RequireFromString(price),
			Stock: gofakeit.IntRange(1, 100),
			Attributes: catalog.Attributes{
				"color": catalog.StringValue(gofakeit.Color()),
			},
		}},
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create variant: %v", err)
	}
	return p.Variants[0]
}

// RandomUserID returns a user id unlikely to collide within one test
func RandomUserID() uint {
	return uint(gofakeit.IntRange(1, 1_000_000))
}
