package controllers

import (
	"net/http"
	"strings"

	"checkout-service/apperrors"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

// ShippingController quotes fees for arbitrary addresses.
type ShippingController struct {
	fees    services.FeeResolver
	catalog PresenterCatalog
}

func NewShippingController(fees services.FeeResolver, catalog PresenterCatalog) *ShippingController {
	return &ShippingController{fees: fees, catalog: catalog}
}

// Quote handles POST /shipping/quote
func (sc *ShippingController) Quote(ctx *gin.Context) {
	var addr models.ShippingAddress
	if err := ctx.ShouldBindJSON(&addr); err != nil {
		apperrors.Respond(ctx, apperrors.BadRequest("invalid address"))
		return
	}
	if strings.TrimSpace(addr.Country) == "" {
		apperrors.Respond(ctx, apperrors.BadRequest("country is required"))
		return
	}

	p := presenterFor(ctx, sc.catalog)
	ctx.JSON(http.StatusOK, gin.H{
		"shipping_fee": money(p, sc.fees.Fee(addr)),
		"region":       regionView(p),
	})
}
