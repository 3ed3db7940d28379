// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
)

// VariantLookup resolves variants with their live price
type VariantLookup interface {
	GetVariant(ctx context.Context, id uint) (*catalog.ProductVariant, error)
}

// Service handles cart business logic
type Service struct {
	db       *gorm.DB
	variants VariantLookup
}

// NewService creates a new cart service
func NewService(db *gorm.DB, variants VariantLookup) *Service {
	return &Service{
		db:       db,
		variants: variants,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	VariantID uint `json:"variant_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest represents update cart item request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// Get returns the user's cart with items and live variant prices, creating it if needed
func (s *Service) Get(ctx context.Context, userID uint) (*Cart, error) {
	db := s.db.WithContext(ctx)

	c, err := ensureCart(db, userID)
	if err != nil {
		return nil, err
	}

	err = db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("cart_items.id ASC")
	}).Preload("Items.Variant").First(c, c.ID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	return c, nil
}

// Add puts quantity units of a variant in the cart. An existing line for the variant
// is incremented rather than duplicated.
func (s *Service) Add(ctx context.Context, userID, variantID uint, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", apperrors.ErrInvalidArgument)
	}

	if _, err := s.variants.GetVariant(ctx, variantID); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	c, err := ensureCart(db, userID)
	if err != nil {
		return nil, err
	}

	item := CartItem{CartID: c.ID, VariantID: variantID, Quantity: quantity}
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "variant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	return s.Get(ctx, userID)
}

// Update replaces the quantity of a line in the user's cart
func (s *Service) Update(ctx context.Context, userID, itemID uint, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", apperrors.ErrInvalidArgument)
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&CartItem{}).
		Where("id = ? AND cart_id = (?)", itemID, userCartID(db, userID)).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("cart item %d: %w", itemID, apperrors.ErrNotFound)
	}

	return s.Get(ctx, userID)
}

// Remove deletes a line from the user's cart
func (s *Service) Remove(ctx context.Context, userID, itemID uint) (*Cart, error) {
	db := s.db.WithContext(ctx)
	res := db.Where("id = ? AND cart_id = (?)", itemID, userCartID(db, userID)).Delete(&CartItem{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("cart item %d: %w", itemID, apperrors.ErrNotFound)
	}

	return s.Get(ctx, userID)
}

// Clear removes every line from the user's cart
func (s *Service) Clear(ctx context.Context, userID uint) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("cart_id = (?)", userCartID(db, userID)).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Totals returns item count and price at current variant prices
func (s *Service) Totals(ctx context.Context, userID uint) (Totals, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return Totals{}, err
	}
	return c.Totals(), nil
}

func ensureCart(db *gorm.DB, userID uint) (*Cart, error) {
	c := &Cart{UserID: userID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(c).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	if c.ID != 0 {
		return c, nil
	}

	c = &Cart{}
	if err := db.Where("user_id = ?", userID).First(c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart for user %d: %w", userID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return c, nil
}

func userCartID(db *gorm.DB, userID uint) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).Model(&Cart{}).Select("id").Where("user_id = ?", userID)
}
