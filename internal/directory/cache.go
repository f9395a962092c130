package directory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/opsdesk/callback-service/internal/domain"
)

const (
	cacheTTL      = 5 * time.Minute
	redisCacheKey = "directory:users"
)

// Cache holds the process-wide directory snapshot. Reads inside the freshness
// window never touch the network; an expired read refreshes under the lock, so
// concurrent misses coalesce into one upstream fetch. When a Redis client is
// provided the snapshot is shared across replicas through it; Redis being
// unreachable only costs the sharing, never the request.
type Cache struct {
	client Client
	redis  *redis.Client
	logger *zap.Logger

	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	snapshot  []domain.DirectoryUser
	expiresAt time.Time
}

// NewCache constructs the cache. redisClient may be nil.
func NewCache(client Client, redisClient *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		client: client,
		redis:  redisClient,
		logger: logger,
		ttl:    cacheTTL,
		now:    time.Now,
	}
}

// Users returns the cached snapshot, refreshing it first when expired.
func (c *Cache) Users(ctx context.Context) ([]domain.DirectoryUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && c.now().Before(c.expiresAt) {
		return c.snapshot, nil
	}

	if users, ttl, ok := c.loadShared(ctx); ok {
		c.snapshot = users
		c.expiresAt = c.now().Add(ttl)
		return users, nil
	}

	users, err := c.client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	c.snapshot = users
	c.expiresAt = c.now().Add(c.ttl)
	c.storeShared(ctx, users)
	return users, nil
}

// loadShared tries the Redis copy of the snapshot left by another replica.
func (c *Cache) loadShared(ctx context.Context) ([]domain.DirectoryUser, time.Duration, bool) {
	if c.redis == nil {
		return nil, 0, false
	}

	payload, err := c.redis.Get(ctx, redisCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("directory cache redis read failed", zap.Error(err))
		}
		return nil, 0, false
	}

	var users []domain.DirectoryUser
	if err := json.Unmarshal(payload, &users); err != nil {
		c.logger.Warn("directory cache redis payload malformed", zap.Error(err))
		return nil, 0, false
	}

	ttl, err := c.redis.TTL(ctx, redisCacheKey).Result()
	if err != nil || ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	return users, ttl, true
}

func (c *Cache) storeShared(ctx context.Context, users []domain.DirectoryUser) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(users)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("directory cache redis write failed", zap.Error(err))
	}
}
