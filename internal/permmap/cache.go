package permmap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra"
	"go.uber.org/zap"
)

// DocumentCache — кэш распарсенных справочников в Redis с TTL.
// Это чистая оптимизация: любой сбой Redis деградирует к повторному
// чтению файла, а не к отказу прогона.
type DocumentCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDocumentCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *DocumentCache {
	return &DocumentCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.Named("permmap-cache"),
	}
}

func (c *DocumentCache) Get(ctx context.Context, version string) ([]domain.EndpointEntry, bool) {
	raw, err := c.rdb.Get(ctx, infra.PermissionMapCacheKey(version)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed, falling back to file", zap.Error(err))
		}
		return nil, false
	}

	var entries []domain.EndpointEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Битый кэш выкидываем, источник правды — файл.
		c.logger.Warn("cache entry corrupted, dropping", zap.String("version", version), zap.Error(err))
		c.rdb.Del(ctx, infra.PermissionMapCacheKey(version))
		return nil, false
	}

	return entries, true
}

func (c *DocumentCache) Put(ctx context.Context, version string, entries []domain.EndpointEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, infra.PermissionMapCacheKey(version), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("version", version), zap.Error(err))
	}
}
