package visited

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sjsage522/autoread/services/cache"
)

// CacheStore keeps the set under a single cache key
type CacheStore struct {
	cache cache.CacheService
	key   string
	ttl   time.Duration
}

// NewCacheStore stores under key; a zero ttl never expires
func NewCacheStore(c cache.CacheService, key string, ttl time.Duration) *CacheStore {
	return &CacheStore{cache: c, key: key, ttl: ttl}
}

func (c *CacheStore) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := c.cache.Get(c.key)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load visited set: %w", err)
	}
	return Decode(data), nil
}

func (c *CacheStore) Save(ctx context.Context, urls []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.cache.Set(c.key, Encode(urls), c.ttl); err != nil {
		return fmt.Errorf("save visited set: %w", err)
	}
	return nil
}
