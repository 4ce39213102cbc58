// ==============================================================================
// CACHED BOARD READER - internal/board/cached.go
// ==============================================================================
package board

import (
	"context"
	"fmt"
	"time"

	"driverid/internal/domain"
	"driverid/pkg/cache"
	"driverid/pkg/logger"
)

// Reader is the read side of the board plus record writes.
type Reader interface {
	ReadRecord(ctx context.Context, email, jobID string) (*domain.DriverVerificationRecord, error)
	UpdateRecord(ctx context.Context, email, jobID string, rec *domain.DriverVerificationRecord) error
}

// CachedClient puts a short-TTL redis cache in front of board reads. Only the
// stored record is cached; document validity is always recomputed from the
// boundary dates at query time, so a short TTL never hides an expiry.
type CachedClient struct {
	inner  Reader
	cache  *cache.RedisCache
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedClient(inner Reader, c *cache.RedisCache, ttl time.Duration, log logger.Logger) *CachedClient {
	return &CachedClient{inner: inner, cache: c, ttl: ttl, logger: log}
}

func cacheKey(email, jobID string) string {
	return fmt.Sprintf("board:record:%s:%s", email, jobID)
}

func (c *CachedClient) ReadRecord(ctx context.Context, email, jobID string) (*domain.DriverVerificationRecord, error) {
	key := cacheKey(email, jobID)

	var rec domain.DriverVerificationRecord
	if err := c.cache.Get(ctx, key, &rec); err == nil {
		return &rec, nil
	} else if err != cache.ErrCacheMiss {
		c.logger.Warn("Board cache read failed, falling through", map[string]interface{}{
			"error": err.Error(),
		})
	}

	fresh, err := c.inner.ReadRecord(ctx, email, jobID)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, fresh, c.ttl); err != nil {
		c.logger.Warn("Board cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return fresh, nil
}

// UpdateRecord writes through and drops the cached copy so the next read
// sees the new record immediately.
func (c *CachedClient) UpdateRecord(ctx context.Context, email, jobID string, rec *domain.DriverVerificationRecord) error {
	if err := c.inner.UpdateRecord(ctx, email, jobID, rec); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, cacheKey(email, jobID)); err != nil {
		c.logger.Warn("Board cache invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return nil
}
