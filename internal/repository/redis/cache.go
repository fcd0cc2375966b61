package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/flagr/internal/domain"
)

const analysisCachePrefix = "analysis:"

// AnalysisCache caches parsed analysis results by document digest
type AnalysisCache struct {
	client *Client
	ttl    time.Duration
}

// NewAnalysisCache creates a new analysis cache
func NewAnalysisCache(client *Client, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{client: client, ttl: ttl}
}

// Get returns the cached analysis for digest; a miss returns (nil, nil)
func (c *AnalysisCache) Get(ctx context.Context, digest string) (*domain.AnalysisResult, error) {
	data, err := c.client.rdb.Get(ctx, analysisCachePrefix+digest).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read analysis cache: %w", err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}

	return &result, nil
}

// Set caches the analysis for digest
func (c *AnalysisCache) Set(ctx context.Context, digest string, result *domain.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	return c.client.rdb.Set(ctx, analysisCachePrefix+digest, data, c.ttl).Err()
}

// Invalidate removes one cached analysis
func (c *AnalysisCache) Invalidate(ctx context.Context, digest string) error {
	return c.client.rdb.Del(ctx, analysisCachePrefix+digest).Err()
}

// FlushAll removes all cached analyses
func (c *AnalysisCache) FlushAll(ctx context.Context) (int64, error) {
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, analysisCachePrefix+"*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
