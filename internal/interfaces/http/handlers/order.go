// internal/interfaces/http/handlers/order.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/shopsphere-backend/internal/domain/order"
)

// OrderService reads orders and moves them through their lifecycle
type OrderService interface {
	ListForUser(ctx context.Context, userID uint) ([]order.Order, error)
	Get(ctx context.Context, userID, orderID uint) (*order.Order, error)
	UpdateStatus(ctx context.Context, userID, orderID uint, req order.UpdateStatusRequest) (*order.Order, error)
	AdminUpdateStatus(ctx context.Context, adminID, orderID uint, req order.UpdateStatusRequest) (*order.Order, error)
}

// OrderHandler handles order endpoints
type OrderHandler struct {
	orderService OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// GetOrders handles GET /orders
func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    orders,
	})
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	o, err := h.orderService.Get(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    o,
	})
}

// UpdateOrderStatus handles PATCH /orders/:id/status. Customers may only cancel.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	h.updateStatus(c, h.orderService.UpdateStatus)
}

// AdminUpdateOrderStatus handles PATCH and PUT /admin/orders/:id/status
func (h *OrderHandler) AdminUpdateOrderStatus(c *gin.Context) {
	h.updateStatus(c, h.orderService.AdminUpdateStatus)
}

type statusUpdater func(ctx context.Context, actorID, orderID uint, req order.UpdateStatusRequest) (*order.Order, error)

func (h *OrderHandler) updateStatus(c *gin.Context, update statusUpdater) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req order.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	o, err := update(c.Request.Context(), userID, orderID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"data":    o,
	})
}
