// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
)

// Cart belongs to exactly one user
type Cart struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one variant line in a cart. A cart holds at most one line per variant.
type CartItem struct {
	ID        uint                    `gorm:"primaryKey" json:"id"`
	CartID    uint                    `gorm:"not null;uniqueIndex:idx_cart_items_cart_variant" json:"cart_id"`
	VariantID uint                    `gorm:"not null;uniqueIndex:idx_cart_items_cart_variant;index" json:"variant_id"`
	Quantity  int                     `gorm:"not null;default:1;check:quantity >= 1" json:"quantity"`
	Variant   *catalog.ProductVariant `gorm:"foreignKey:VariantID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"variant,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// TableName overrides
func (Cart) TableName() string     { return "carts" }
func (CartItem) TableName() string { return "cart_items" }

// Totals represents calculated cart totals
type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// LineTotal is quantity times the variant's current price. Zero if the variant is not loaded.
func (i CartItem) LineTotal() decimal.Decimal {
	if i.Variant == nil {
		return decimal.Zero
	}
	return i.Variant.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TotalItems sums the quantities of all lines
func (c *Cart) TotalItems() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// TotalPrice sums the line totals at current variant prices
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Totals bundles TotalItems and TotalPrice
func (c *Cart) Totals() Totals {
	return Totals{
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}
