package savestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

const keyPrefix = "savestate:"

// RedisStore keeps records as JSON strings under savestate:<site>:<date>:... keys.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects lazily to addr.
func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func categoryKey(site, date, category string) string {
	return fmt.Sprintf("%s%s:%s:category:%s", keyPrefix, site, date, category)
}

func productKey(site, date, category, productID string) string {
	return fmt.Sprintf("%s%s:%s:product:%s:%s", keyPrefix, site, date, category, productID)
}

func (s *RedisStore) LoadCategory(ctx context.Context, site, date, category string) (*models.CategoryState, error) {
	var state models.CategoryState
	if err := s.get(ctx, categoryKey(site, date, category), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisStore) SaveCategory(ctx context.Context, state *models.CategoryState) error {
	if err := validateCategory(state); err != nil {
		return err
	}
	return s.set(ctx, categoryKey(state.Sitename, state.Date, state.Name), state)
}

func (s *RedisStore) LoadProduct(ctx context.Context, site, date, category, productID string) (*models.ProductState, error) {
	var state models.ProductState
	if err := s.get(ctx, productKey(site, date, category, productID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisStore) SaveProduct(ctx context.Context, state *models.ProductState) error {
	if err := validateProduct(state); err != nil {
		return err
	}
	return s.set(ctx, productKey(state.Sitename, state.Date, state.CategoryName, state.ProductID), state)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
