package controllers

import (
	"net/http"

	"checkout-service/apperrors"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

// CheckoutController handles HTTP requests for the checkout workflow.
type CheckoutController struct {
	checkout  services.CheckoutOrchestrator
	addresses services.AddressResolver
	catalog   PresenterCatalog
}

func NewCheckoutController(checkout services.CheckoutOrchestrator, addresses services.AddressResolver, catalog PresenterCatalog) *CheckoutController {
	return &CheckoutController{checkout: checkout, addresses: addresses, catalog: catalog}
}

type selectAddressRequest struct {
	AddressID string `json:"address_id" binding:"required"`
}

type submitRequest struct {
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
}

// SelectAddress handles POST /checkout/address/select
func (cc *CheckoutController) SelectAddress(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req selectAddressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(ctx, apperrors.BadRequest("address_id is required"))
		return
	}

	addr, err := cc.addresses.SelectAddress(ctx.Request.Context(), userID, req.AddressID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"address": addr})
}

// Begin handles POST /checkout/sessions
func (cc *CheckoutController) Begin(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	session, err := cc.checkout.Begin(ctx.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newSessionView(session, presenterFor(ctx, cc.catalog)))
}

// Get handles GET /checkout/sessions/:id
func (cc *CheckoutController) Get(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	session, err := cc.checkout.Get(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newSessionView(session, presenterFor(ctx, cc.catalog)))
}

// Submit handles POST /checkout/sessions/:id/submit
func (cc *CheckoutController) Submit(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(ctx, apperrors.BadRequest("payment_method is required"))
		return
	}

	session, err := cc.checkout.Submit(ctx.Request.Context(), userID, ctx.Param("id"), req.PaymentMethod)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	cc.respondSession(ctx, session)
}

// ApprovePayment handles POST /checkout/sessions/:id/payment/approve
func (cc *CheckoutController) ApprovePayment(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	session, err := cc.checkout.ApproveExternalPayment(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	cc.respondSession(ctx, session)
}

// CancelPayment handles POST /checkout/sessions/:id/payment/cancel
func (cc *CheckoutController) CancelPayment(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	session, err := cc.checkout.CancelExternalPayment(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	cc.respondSession(ctx, session)
}

// respondSession answers 201 once an order exists and 202 while payment approval is pending.
func (cc *CheckoutController) respondSession(ctx *gin.Context, session *models.CheckoutSession) {
	status := http.StatusOK
	switch session.State {
	case models.CheckoutSucceeded:
		status = http.StatusCreated
	case models.CheckoutPendingExternalPayment:
		status = http.StatusAccepted
	}
	ctx.JSON(status, newSessionView(session, presenterFor(ctx, cc.catalog)))
}
