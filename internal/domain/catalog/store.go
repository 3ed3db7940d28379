// internal/domain/catalog/store.go
package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
)

// Store reads the catalog from the database
type Store interface {
	ActiveProducts(ctx context.Context) ([]Product, error)
	Variant(ctx context.Context, id uint) (*ProductVariant, error)
}

// GormStore implements Store on gorm
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ActiveProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_variants.id ASC")
		}).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}
	return products, nil
}

func (s *GormStore) Variant(ctx context.Context, id uint) (*ProductVariant, error) {
	var v ProductVariant
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("variant %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load variant %d: %w", id, err)
	}
	return &v, nil
}
