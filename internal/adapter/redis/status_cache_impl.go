package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/pkg/utils"
)

const statusKeyPrefix = "status:"

// StatusCacheImpl shares link status results between auditor processes.
type StatusCacheImpl struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCacheImpl {
	return &StatusCacheImpl{client: client}
}

func (c *StatusCacheImpl) key(url string) string {
	return statusKeyPrefix + utils.HashURL(url)
}

// Get returns the cached result for url.
func (c *StatusCacheImpl) Get(ctx context.Context, url string) (entity.ValidationResult, bool, error) {
	raw, err := c.client.Get(ctx, c.key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.ValidationResult{}, false, nil
	}
	if err != nil {
		return entity.ValidationResult{}, false, err
	}
	var res entity.ValidationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return entity.ValidationResult{}, false, fmt.Errorf("decode cached status of %s: %w", url, err)
	}
	return res, true, nil
}

// Set stores result under its URL for ttl.
func (c *StatusCacheImpl) Set(ctx context.Context, result entity.ValidationResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(result.URL), raw, ttl).Err()
}
