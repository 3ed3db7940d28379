// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/shopsphere-backend/internal/domain/cart"
)

// CartService is the part of the cart aggregate the handler needs
type CartService interface {
	Get(ctx context.Context, userID uint) (*cart.Cart, error)
	Add(ctx context.Context, userID, variantID uint, quantity int) (*cart.Cart, error)
	Update(ctx context.Context, userID, itemID uint, quantity int) (*cart.Cart, error)
	Remove(ctx context.Context, userID, itemID uint) (*cart.Cart, error)
	Clear(ctx context.Context, userID uint) error
	Totals(ctx context.Context, userID uint) (cart.Totals, error)
}

// CartHandler handles cart endpoints
type CartHandler struct {
	cartService CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

type cartResponse struct {
	Cart   *cart.Cart  `json:"cart"`
	Totals cart.Totals `json:"totals"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	return cartResponse{Cart: c, Totals: c.Totals()}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	userCart, err := h.cartService.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    newCartResponse(userCart),
	})
}

// GetTotals handles GET /cart/totals
func (h *CartHandler) GetTotals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	totals, err := h.cartService.Totals(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart totals retrieved successfully",
		"data":    totals,
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req cart.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userCart, err := h.cartService.Add(c.Request.Context(), userID, req.VariantID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    newCartResponse(userCart),
	})
}

// UpdateCartItem handles PATCH and PUT /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req cart.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userCart, err := h.cartService.Update(c.Request.Context(), userID, itemID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    newCartResponse(userCart),
	})
}

// RemoveCartItem handles DELETE /cart/items/:id
func (h *CartHandler) RemoveCartItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "id")
	if !ok {
		return
	}

	userCart, err := h.cartService.Remove(c.Request.Context(), userID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    newCartResponse(userCart),
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.cartService.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}
