// internal/domain/order/entity.go
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentProviderStub is the provider recorded by checkout until a real gateway is wired
const PaymentProviderStub = "stub"

// Order is created by checkout. Total is fixed at creation.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	Status          OrderStatus     `gorm:"not null;size:20;default:'created'" json:"status"`
	ShippingAddress string          `gorm:"type:text;not null" json:"shipping_address"`
	Total           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items,omitempty"`
	Payments      []Payment            `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"payments,omitempty"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem is a frozen copy of a cart line
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	VariantID uint            `gorm:"not null;index" json:"variant_id"`
	Quantity  int             `gorm:"not null;check:quantity >= 1" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
}

// Payment records the charge taken for an order
type Payment struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OrderID           uint            `gorm:"not null;index" json:"order_id"`
	Provider          string          `gorm:"not null;size:50" json:"provider"`
	ProviderPaymentID string          `gorm:"not null;size:255;uniqueIndex" json:"provider_payment_id"`
	Amount            decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Success           bool            `gorm:"not null;default:false" json:"success"`
	CreatedAt         time.Time       `json:"created_at"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	From      OrderStatus `gorm:"size:20" json:"from"`
	Status    OrderStatus `gorm:"not null;size:20" json:"status"`
	Comment   string      `gorm:"size:500" json:"comment"`
	CreatedBy uint        `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (Payment) TableName() string            { return "payments" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }

// LineTotal is quantity times the frozen price
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal sums the line totals of the loaded items
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {OrderStatusCompleted},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether s names a known status
func IsValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}
