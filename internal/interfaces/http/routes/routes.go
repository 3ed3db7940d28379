// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/your-org/shopsphere-backend/internal/interfaces/http/handlers"
	"github.com/your-org/shopsphere-backend/internal/interfaces/http/middleware"
)

// Handlers bundles every API handler
type Handlers struct {
	Cart     *handlers.CartHandler
	Checkout *handlers.CheckoutHandler
	Order    *handlers.OrderHandler
	Product  *handlers.ProductHandler
	Webhook  *handlers.WebhookHandler
}

// SetupProductRoutes sets up product related routes
func SetupProductRoutes(rg *gin.RouterGroup, h *handlers.ProductHandler) {
	rg.GET("/products", h.GetProducts)
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, h *handlers.CartHandler, auth gin.HandlerFunc) {
	cart := rg.Group("/cart")
	cart.Use(auth)
	{
		cart.GET("", h.GetCart)
		cart.GET("/totals", h.GetTotals)
		cart.DELETE("", h.ClearCart)
		cart.POST("/items", h.AddToCart)
		cart.PATCH("/items/:id", h.UpdateCartItem)
		cart.PUT("/items/:id", h.UpdateCartItem)
		cart.DELETE("/items/:id", h.RemoveCartItem)
	}
}

// SetupCheckoutRoutes sets up checkout related routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, h *handlers.CheckoutHandler, auth gin.HandlerFunc) {
	rg.POST("/checkout", auth, h.Checkout)
}

// SetupOrderRoutes sets up order related routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *handlers.OrderHandler, auth gin.HandlerFunc) {
	orders := rg.Group("/orders")
	orders.Use(auth)
	{
		orders.GET("", h.GetOrders)
		orders.GET("/:id", h.GetOrder)
		orders.PATCH("/:id/status", h.UpdateOrderStatus)
	}
}

// SetupWebhookRoutes sets up webhook related routes. Inbound events are authenticated
// by their HMAC signature; inspecting and redelivering events is for admins only.
func SetupWebhookRoutes(rg *gin.RouterGroup, h *handlers.WebhookHandler, auth gin.HandlerFunc) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("", h.Receive)

		events := webhooks.Group("/events")
		events.Use(auth, middleware.AdminMiddleware())
		{
			events.GET("/:id", h.GetEvent)
			events.POST("/:id/deliver", h.DeliverEvent)
		}
	}
}

// SetupAdminRoutes sets up admin routes
func SetupAdminRoutes(rg *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	admin := rg.Group("/admin")
	admin.Use(auth)                         // Require authentication
	admin.Use(middleware.AdminMiddleware()) // Require admin privileges
	{
		orders := admin.Group("/orders")
		{
			orders.PATCH("/:id/status", h.Order.AdminUpdateOrderStatus)
			orders.PUT("/:id/status", h.Order.AdminUpdateOrderStatus)
		}
	}
}

// SetupRoutes registers every API route on rg
func SetupRoutes(rg *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	SetupProductRoutes(rg, h.Product)
	SetupCartRoutes(rg, h.Cart, auth)
	SetupCheckoutRoutes(rg, h.Checkout, auth)
	SetupOrderRoutes(rg, h.Order, auth)
	SetupWebhookRoutes(rg, h.Webhook, auth)
	SetupAdminRoutes(rg, h, auth)
}
