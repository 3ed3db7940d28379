// internal/domain/catalog/entity.go
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. Prices and stock live on its variants.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;size:255" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"variants,omitempty"`
}

// ProductVariant is the unit a cart line points at
type ProductVariant struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ProductID  uint            `gorm:"not null;index" json:"product_id"`
	SKU        string          `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Price      decimal.Decimal `gorm:"type:numeric(10,2);not null;check:price >= 0" json:"price"`
	Stock      int             `gorm:"not null;default:0" json:"stock"`
	Attributes Attributes      `gorm:"type:jsonb;serializer:json" json:"attributes"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName overrides
func (Product) TableName() string        { return "products" }
func (ProductVariant) TableName() string { return "product_variants" }

func (v *ProductVariant) IsInStock() bool {
	return v.Stock > 0
}
