package controllers

import (
	"net/http"

	"checkout-service/apperrors"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orders  services.OrderHistoryService
	catalog PresenterCatalog
}

func NewOrderController(orders services.OrderHistoryService, catalog PresenterCatalog) *OrderController {
	return &OrderController{orders: orders, catalog: catalog}
}

// ListOrders handles GET /orders
func (oc *OrderController) ListOrders(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	summaries, err := oc.orders.ListOrders(ctx.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	p := presenterFor(ctx, oc.catalog)
	views := make([]OrderView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, newOrderView(s, p))
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": views, "region": regionView(p)})
}

// CancelOrder handles POST /orders/:id/cancel
func (oc *OrderController) CancelOrder(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	order, err := oc.orders.CancelOrder(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order_id": order.OrderID, "status": order.Status})
}
