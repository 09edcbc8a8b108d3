package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrLocked          = errors.New("checkout session is locked")
)

// SessionRepository stores checkout sessions.
type SessionRepository interface {
	Save(ctx context.Context, session *models.CheckoutSession) error
	Get(ctx context.Context, id string) (*models.CheckoutSession, error)
	// Lock takes an exclusive lock on the session and returns its release func.
	Lock(ctx context.Context, id string, ttl time.Duration) (func(), error)
}

// RedisSessionRepository keeps sessions as JSON with a sliding TTL.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, ttl: ttl}
}

func (r *RedisSessionRepository) getKey(id string) string {
	return fmt.Sprintf("checkout:session:%s", id)
}

func (r *RedisSessionRepository) getLockKey(id string) string {
	return fmt.Sprintf("checkout:lock:%s", id)
}

func (r *RedisSessionRepository) Save(ctx context.Context, session *models.CheckoutSession) error {
	session.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(session.ID), data, r.ttl).Err()
}

func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*models.CheckoutSession, error) {
	data, err := r.client.Get(ctx, r.getKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var session models.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (r *RedisSessionRepository) Lock(ctx context.Context, id string, ttl time.Duration) (func(), error) {
	key := r.getLockKey(id)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}, nil
}
