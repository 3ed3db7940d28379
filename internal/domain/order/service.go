// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
)

// Service handles order reads and status changes
type Service struct {
	db *gorm.DB
}

// NewService creates a new order service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// UpdateStatusRequest represents a status change request
type UpdateStatusRequest struct {
	Status  OrderStatus `json:"status" binding:"required"`
	Comment string      `json:"comment"`
}

// ListForUser returns a user's orders, newest first, with items and payments
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]Order, error) {
	var orders []Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}
	return orders, nil
}

// Get retrieves one of the user's orders
func (s *Service) Get(ctx context.Context, userID, orderID uint) (*Order, error) {
	return s.load(ctx, orderID, &userID)
}

// AdminGet retrieves any order
func (s *Service) AdminGet(ctx context.Context, orderID uint) (*Order, error) {
	return s.load(ctx, orderID, nil)
}

func (s *Service) load(ctx context.Context, orderID uint, ownerID *uint) (*Order, error) {
	q := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Where("id = ?", orderID)
	if ownerID != nil {
		q = q.Where("user_id = ?", *ownerID)
	}

	var order Order
	if err := q.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

// UpdateStatus lets a customer change their own order. Customers may only cancel;
// every other transition is driven by the system or an admin.
func (s *Service) UpdateStatus(ctx context.Context, userID, orderID uint, req UpdateStatusRequest) (*Order, error) {
	if !IsValidStatus(req.Status) {
		return nil, fmt.Errorf("unknown status %q: %w", req.Status, apperrors.ErrInvalidArgument)
	}
	if req.Status != OrderStatusCancelled {
		return nil, fmt.Errorf("customers cannot move an order to %s: %w", req.Status, apperrors.ErrForbidden)
	}
	if err := s.transition(ctx, userID, orderID, &userID, req); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, orderID)
}

// AdminUpdateStatus moves any order along the status machine on behalf of adminID
func (s *Service) AdminUpdateStatus(ctx context.Context, adminID, orderID uint, req UpdateStatusRequest) (*Order, error) {
	if !IsValidStatus(req.Status) {
		return nil, fmt.Errorf("unknown status %q: %w", req.Status, apperrors.ErrInvalidArgument)
	}
	if err := s.transition(ctx, adminID, orderID, nil, req); err != nil {
		return nil, err
	}
	return s.AdminGet(ctx, orderID)
}

// transition locks the order, checks the move and records it in the status history
func (s *Service) transition(ctx context.Context, actorID, orderID uint, ownerID *uint, req UpdateStatusRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID)
		if ownerID != nil {
			q = q.Where("user_id = ?", *ownerID)
		}

		var order Order
		if err := q.First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", orderID, apperrors.ErrNotFound)
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}

		if !CanTransition(order.Status, req.Status) {
			return fmt.Errorf("cannot move order from %s to %s: %w", order.Status, req.Status, apperrors.ErrInvalidStatus)
		}

		if err := tx.Model(&order).Update("status", req.Status).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		history := OrderStatusHistory{
			OrderID:   order.ID,
			From:      order.Status,
			Status:    req.Status,
			Comment:   req.Comment,
			CreatedBy: actorID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create status history: %w", err)
		}
		return nil
	})
}
