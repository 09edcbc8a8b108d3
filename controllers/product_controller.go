package controllers

import (
	"net/http"

	"checkout-service/apperrors"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

type ProductController struct {
	similar services.SimilarProductsService
	catalog PresenterCatalog
}

func NewProductController(similar services.SimilarProductsService, catalog PresenterCatalog) *ProductController {
	return &ProductController{similar: similar, catalog: catalog}
}

// Similar handles GET /products/:id/similar
func (pc *ProductController) Similar(ctx *gin.Context) {
	products, err := pc.similar.Similar(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	p := presenterFor(ctx, pc.catalog)
	views := make([]ProductView, 0, len(products))
	for _, prod := range products {
		views = append(views, newProductView(prod, p))
	}
	ctx.JSON(http.StatusOK, gin.H{"products": views})
}
