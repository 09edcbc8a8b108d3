package repository

import (
	"context"
	"encoding/json"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const similarCachePrefix = "products:similar:"

// SimilarProductsCache caches the resolved similar-products list per product.
type SimilarProductsCache interface {
	Get(ctx context.Context, productID string) ([]models.Product, bool)
	Set(ctx context.Context, productID string, products []models.Product)
}

type RedisSimilarProductsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisSimilarProductsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSimilarProductsCache {
	return &RedisSimilarProductsCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisSimilarProductsCache) Get(ctx context.Context, productID string) ([]models.Product, bool) {
	data, err := c.client.Get(ctx, similarCachePrefix+productID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Similar products cache read failed", zap.String("product_id", productID), zap.Error(err))
		}
		return nil, false
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		c.logger.Warn("Failed to unmarshal cached similar products", zap.Error(err))
		return nil, false
	}
	return products, true
}

func (c *RedisSimilarProductsCache) Set(ctx context.Context, productID string, products []models.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		c.logger.Warn("Failed to marshal similar products", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, similarCachePrefix+productID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Similar products cache write failed", zap.String("product_id", productID), zap.Error(err))
	}
}
