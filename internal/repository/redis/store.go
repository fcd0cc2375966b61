package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/storage"
)

const storePrefix = "flagr:"

// Store implements storage.Store with plain Redis strings
type Store struct {
	client *Client
}

// NewStore creates a store on an existing client
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// Open satisfies storage.Factory
func Open(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	client, err := NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	return NewStore(client), nil
}

func (s *Store) Name() string { return "redis" }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.rdb.Get(ctx, storePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.rdb.Set(ctx, storePrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.rdb.Del(ctx, storePrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys with the given prefix
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.rdb.Scan(ctx, cursor, storePrefix+prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, k[len(storePrefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Store) Close() error {
	return s.client.Close()
}
