package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/feeledger/internal/cache"
	"github.com/smallbiznis/feeledger/internal/receipt/domain"
)

const keyPrefix = "feeledger:receipt:"

// New picks the Redis store when a client is configured.
func New(client *redis.Client) domain.Store {
	if client != nil {
		return NewRedisStore(client)
	}
	return NewMemoryStore()
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, receipt domain.Receipt, ttl time.Duration) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+receipt.Token, payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, token string) (*domain.Receipt, error) {
	payload, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var receipt domain.Receipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, keyPrefix+token).Err()
}

type MemoryStore struct {
	items cache.Cache[string, domain.Receipt]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: cache.NewTTLCache[string, domain.Receipt]()}
}

func (s *MemoryStore) Put(_ context.Context, receipt domain.Receipt, ttl time.Duration) error {
	s.items.Set(receipt.Token, receipt, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (*domain.Receipt, error) {
	receipt, ok := s.items.Get(token)
	if !ok {
		return nil, nil
	}
	return &receipt, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.items.Delete(token)
	return nil
}
