// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/shopsphere-backend/internal/domain/cart"
	"github.com/your-org/shopsphere-backend/internal/domain/order"
	"github.com/your-org/shopsphere-backend/internal/domain/payment"
	"github.com/your-org/shopsphere-backend/internal/domain/webhook"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
)

// EventDispatcher hands the recorded order event over for delivery after commit
type EventDispatcher interface {
	Dispatch(ctx context.Context, eventID uint) error
}

// Service turns a user's cart into an order
type Service struct {
	db         *gorm.DB
	events     *webhook.Store
	dispatcher EventDispatcher
	payments   payment.Provider
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithPaymentProvider replaces the default stub provider
func WithPaymentProvider(p payment.Provider) Option {
	return func(s *Service) { s.payments = p }
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, events *webhook.Store, dispatcher EventDispatcher, log logrus.FieldLogger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		db:         db,
		events:     events,
		dispatcher: dispatcher,
		payments:   payment.StubProvider{},
		log:        log,
		metrics:    m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request represents a checkout request
type Request struct {
	ShippingAddress string `json:"address" binding:"required"`
}

// Result summarises the created order
type Result struct {
	OrderID uint              `json:"order_id"`
	Status  order.OrderStatus `json:"status"`
	Total   decimal.Decimal   `json:"total"`
	EventID uint              `json:"event_id"`
}

type orderCreatedItem struct {
	VariantID uint            `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderCreatedPayload struct {
	Event   string             `json:"event"`
	OrderID uint               `json:"order_id"`
	UserID  uint               `json:"user_id"`
	Total   decimal.Decimal    `json:"total"`
	Items   []orderCreatedItem `json:"items"`
}

// Checkout converts the cart into an order with frozen prices and a provider payment,
// records an order.created event and empties the cart, all in one transaction.
// Stock is neither checked nor decremented.
func (s *Service) Checkout(ctx context.Context, userID uint, req Request) (*Result, error) {
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		return nil, fmt.Errorf("shipping address is required: %w", apperrors.ErrInvalidArgument)
	}

	var result Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c cart.Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("failed to lock cart: %w", err)
		}

		var items []cart.CartItem
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ?", c.ID).
			Order("id ASC").
			Find(&items).Error
		if err != nil {
			return fmt.Errorf("failed to lock cart items: %w", err)
		}
		if len(items) == 0 {
			return apperrors.ErrEmptyCart
		}

		orderItems, total, err := freezePrices(tx, items)
		if err != nil {
			return err
		}

		o := order.Order{
			UserID:          userID,
			Status:          order.OrderStatusCreated,
			ShippingAddress: address,
			Total:           total,
		}
		if err := tx.Omit(clause.Associations).Create(&o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i := range orderItems {
			orderItems[i].OrderID = o.ID
		}
		if err := tx.Create(&orderItems).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		charge, err := s.payments.Charge(ctx, o.ID, total)
		if err != nil {
			return fmt.Errorf("payment failed: %w", err)
		}
		if err := tx.Create(charge).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		payload, err := json.Marshal(buildPayload(o, orderItems))
		if err != nil {
			return fmt.Errorf("failed to encode order event: %w", err)
		}
		eventID, err := s.events.WithTx(tx).Record(ctx, webhook.EventOrderCreated, payload)
		if err != nil {
			return err
		}

		if err := tx.Where("cart_id = ?", c.ID).Delete(&cart.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		result = Result{
			OrderID: o.ID,
			Status:  o.Status,
			Total:   total,
			EventID: eventID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.log.WithFields(logrus.Fields{
		"order_id": result.OrderID,
		"user_id":  userID,
		"total":    result.Total.StringFixed(2),
	}).Info("order created")

	if err := s.dispatcher.Dispatch(ctx, result.EventID); err != nil {
		s.log.WithError(err).WithField("event_id", result.EventID).Error("failed to dispatch order.created event, leaving it for the sweeper")
	}

	return &result, nil
}

// freezePrices copies each line's current variant price into an order item
func freezePrices(tx *gorm.DB, items []cart.CartItem) ([]order.OrderItem, decimal.Decimal, error) {
	variantIDs := make([]uint, len(items))
	for i, item := range items {
		variantIDs[i] = item.VariantID
	}

	var rows []struct {
		ID    uint
		Price decimal.Decimal
	}
	if err := tx.Table("product_variants").Select("id, price").Where("id IN ?", variantIDs).Scan(&rows).Error; err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to load variant prices: %w", err)
	}
	prices := make(map[uint]decimal.Decimal, len(rows))
	for _, r := range rows {
		prices[r.ID] = r.Price
	}

	total := decimal.Zero
	orderItems := make([]order.OrderItem, 0, len(items))
	for _, item := range items {
		price, ok := prices[item.VariantID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("variant %d: %w", item.VariantID, apperrors.ErrNotFound)
		}
		oi := order.OrderItem{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     price,
		}
		total = total.Add(oi.LineTotal())
		orderItems = append(orderItems, oi)
	}
	return orderItems, total, nil
}

func buildPayload(o order.Order, items []order.OrderItem) orderCreatedPayload {
	p := orderCreatedPayload{
		Event:   webhook.EventOrderCreated,
		OrderID: o.ID,
		UserID:  o.UserID,
		Total:   o.Total,
		Items:   make([]orderCreatedItem, len(items)),
	}
	for i, item := range items {
		p.Items[i] = orderCreatedItem{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}
	return p
}
