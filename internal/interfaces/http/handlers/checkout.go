// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/shopsphere-backend/internal/domain/checkout"
)

// CheckoutService converts a user's cart into an order
type CheckoutService interface {
	Checkout(ctx context.Context, userID uint, req checkout.Request) (*checkout.Result, error)
}

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkoutService CheckoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Checkout handles POST /checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.checkoutService.Checkout(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order placed successfully",
		"data":    result,
	})
}
