// internal/interfaces/http/handlers/product.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
)

// CatalogService lists what is for sale
type CatalogService interface {
	ListActive(ctx context.Context) ([]catalog.Product, error)
}

// ProductHandler handles product endpoints
type ProductHandler struct {
	catalogService CatalogService
}

// NewProductHandler creates a new product handler
func NewProductHandler(catalogService CatalogService) *ProductHandler {
	return &ProductHandler{catalogService: catalogService}
}

// GetProducts handles GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	products, err := h.catalogService.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Products retrieved successfully",
		"data":    products,
	})
}
