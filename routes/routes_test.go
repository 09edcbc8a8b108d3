package routes_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout-service/controllers"
	"checkout-service/middleware"
	"checkout-service/routes"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupRouter(t *testing.T, origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	routes.RegisterRoutes(r, routes.Controllers{
		Checkout: controllers.NewCheckoutController(nil, nil, nil),
		Orders:   controllers.NewOrderController(nil, nil),
		Products: controllers.NewProductController(nil, nil),
		Shipping: controllers.NewShippingController(nil, nil),
	}, routes.Options{
		ServiceName:    "checkout-service",
		AllowedOrigins: origins,
		Auth:           middleware.AuthConfig{TrustGatewayHeaders: true},
		WriteLimiter:   middleware.NewRateLimiter(ctx, 1, 1, 0),
	})
	return r
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "checkout-service")
}

func TestProtectedRoutesRequireIdentity(t *testing.T) {
	r := setupRouter(t, nil)

	paths := []struct{ method, path string }{
		{http.MethodPost, "/checkout/sessions"},
		{http.MethodGet, "/checkout/sessions/s-1"},
		{http.MethodPost, "/checkout/sessions/s-1/submit"},
		{http.MethodGet, "/orders"},
		{http.MethodPost, "/orders/o-1/cancel"},
	}
	for _, p := range paths {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, p.path)
	}
}

func TestCheckoutWritesAreRateLimited(t *testing.T) {
	r := setupRouter(t, nil)

	// Second request from the same client exceeds a burst of one.
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout/address/select", nil)
		req.Header.Set("X-User-ID", "u-1")
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusBadRequest, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[1])
}

func TestCORSPreflight(t *testing.T) {
	r := setupRouter(t, []string{"http://localhost:3000"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/checkout/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
