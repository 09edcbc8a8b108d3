package services

import (
	"context"

	"checkout-service/apperrors"
	"checkout-service/clients"
	"checkout-service/logger"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/repository"

	"go.uber.org/zap"
)

type SimilarProductsService interface {
	Similar(ctx context.Context, productID string) ([]models.Product, error)
}

type similarProductsServiceImpl struct {
	recommendations clients.RecommendationAPI
	catalog         clients.CatalogAPI
	cache           repository.SimilarProductsCache
	metrics         aws_pkg.MetricsRecorder
	logger          *zap.Logger
}

func NewSimilarProductsService(recommendations clients.RecommendationAPI, catalog clients.CatalogAPI, cache repository.SimilarProductsCache, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) SimilarProductsService {
	if metrics == nil {
		metrics = aws_pkg.NopMetrics{}
	}
	return &similarProductsServiceImpl{recommendations: recommendations, catalog: catalog, cache: cache, metrics: metrics, logger: logger}
}

// Similar returns the recommended products for productID in recommendation order.
// The product itself and ids the catalog no longer knows are left out.
func (s *similarProductsServiceImpl) Similar(ctx context.Context, productID string) ([]models.Product, error) {
	if productID == "" {
		return nil, apperrors.BadRequest("product id is required")
	}

	if s.cache != nil {
		if products, ok := s.cache.Get(ctx, productID); ok {
			_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCacheHits, map[string]string{"Cache": "similar_products"})
			return products, nil
		}
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCacheMisses, map[string]string{"Cache": "similar_products"})
	}

	ids, err := s.recommendations.GetSimilarIDs(ctx, productID)
	if err != nil {
		return nil, apperrors.TransientFetchFailure("similar products", err)
	}

	wanted := make([]string, 0, len(ids))
	seen := map[string]bool{productID: true}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			wanted = append(wanted, id)
		}
	}

	products := []models.Product{}
	if len(wanted) > 0 {
		found, err := s.catalog.GetProducts(ctx, wanted)
		if err != nil {
			return nil, apperrors.TransientFetchFailure("similar products", err)
		}
		byID := make(map[string]models.Product, len(found))
		for _, p := range found {
			byID[p.ID.String()] = p
		}
		for _, id := range wanted {
			if p, ok := byID[id]; ok {
				products = append(products, p)
			}
		}
		if missing := len(wanted) - len(products); missing > 0 {
			logger.For(ctx, s.logger).Debug("Similar products missing from catalog",
				zap.String("product_id", productID), zap.Int("missing", missing))
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, productID, products)
	}
	return products, nil
}
