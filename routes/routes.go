package routes

import (
	"net/http"
	"time"

	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Checkout *controllers.CheckoutController
	Orders   *controllers.OrderController
	Products *controllers.ProductController
	Shipping *controllers.ShippingController
}

// Options configures the cross-cutting middleware applied per route group.
type Options struct {
	ServiceName    string
	AllowedOrigins []string
	Auth           middleware.AuthConfig
	// WriteLimiter throttles checkout writes; nil disables throttling.
	WriteLimiter *middleware.RateLimiter
}

// CORS builds the cors middleware for the configured origins.
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-ID", "X-Region", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func RegisterRoutes(r *gin.Engine, ctrl Controllers, opts Options) {
	if len(opts.AllowedOrigins) > 0 {
		r.Use(CORS(opts.AllowedOrigins))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": opts.ServiceName})
	})

	// Public: product widgets and fee quotes
	r.GET("/products/:id/similar", ctrl.Products.Similar)
	r.POST("/shipping/quote", ctrl.Shipping.Quote)

	auth := middleware.AuthMiddleware(opts.Auth)

	checkout := r.Group("/checkout")
	checkout.Use(auth)
	{
		checkout.GET("/sessions/:id", ctrl.Checkout.Get)

		writes := checkout.Group("")
		if opts.WriteLimiter != nil {
			writes.Use(middleware.RateLimitMiddleware(opts.WriteLimiter))
		}
		writes.POST("/address/select", ctrl.Checkout.SelectAddress)
		writes.POST("/sessions", ctrl.Checkout.Begin)
		writes.POST("/sessions/:id/submit", ctrl.Checkout.Submit)
		writes.POST("/sessions/:id/payment/approve", ctrl.Checkout.ApprovePayment)
		writes.POST("/sessions/:id/payment/cancel", ctrl.Checkout.CancelPayment)
	}

	orders := r.Group("/orders")
	orders.Use(auth)
	{
		orders.GET("", ctrl.Orders.ListOrders)
		orders.POST("/:id/cancel", ctrl.Orders.CancelOrder)
	}
}
