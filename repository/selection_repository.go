package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// SelectionRepository holds the one-shot explicitly selected address per user.
type SelectionRepository interface {
	Put(ctx context.Context, userID string, addr *models.ShippingAddress) error
	// Consume returns the selection and clears it. It returns nil when nothing is selected.
	Consume(ctx context.Context, userID string) (*models.ShippingAddress, error)
}

type RedisSelectionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSelectionRepository(client *redis.Client, ttl time.Duration) *RedisSelectionRepository {
	return &RedisSelectionRepository{client: client, ttl: ttl}
}

func (r *RedisSelectionRepository) getKey(userID string) string {
	return fmt.Sprintf("checkout:selected-address:%s", userID)
}

func (r *RedisSelectionRepository) Put(ctx context.Context, userID string, addr *models.ShippingAddress) error {
	data, err := json.Marshal(addr)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(userID), data, r.ttl).Err()
}

func (r *RedisSelectionRepository) Consume(ctx context.Context, userID string) (*models.ShippingAddress, error) {
	data, err := r.client.GetDel(ctx, r.getKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var addr models.ShippingAddress
	if err := json.Unmarshal(data, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}
