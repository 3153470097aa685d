package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/pkg/logger"
	"schoolgenius-seeder/pkg/metrics"
)

var cacheTracer = otel.Tracer("redis.cache")

// DedupCache 在内容存储前加一层存在性缓存。
// 只缓存“已存在”，记录不会被删除，所以正向结果不会过期失真；未命中一律回源。
type DedupCache struct {
	client *Client
	next   repository.ContentStore
	ttl    time.Duration
	group  singleflight.Group
}

// NewDedupCache 包装内容存储
func NewDedupCache(client *Client, next repository.ContentStore, ttl time.Duration) *DedupCache {
	return &DedupCache{client: client, next: next, ttl: ttl}
}

func (c *DedupCache) cacheKey(table, key string) string {
	return c.client.Key("dedup", table, key)
}

// Exists 先查缓存，未命中时合并并发回源
func (c *DedupCache) Exists(ctx context.Context, table, key string) (bool, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Exists",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	ck := c.cacheKey(table, key)
	err := c.client.rdb.Get(ctx, ck).Err()
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return true, nil
	}
	if !errors.Is(err, redis.Nil) {
		// 缓存故障不影响判定，直接回源
		span.RecordError(err)
		metrics.RecordStoreOp("redis", "exists", err)
		logger.Warn(ctx, "dedup cache unavailable, falling back to store", "error", err.Error())
		return c.next.Exists(ctx, table, key)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, shared := c.group.Do(ck, func() (interface{}, error) {
		exists, err := c.next.Exists(ctx, table, key)
		if err != nil {
			return false, err
		}
		if exists {
			c.remember(ctx, ck)
		}
		return exists, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return v.(bool), nil
}

// Insert 写入成功或发现重复时都标记为已存在
func (c *DedupCache) Insert(ctx context.Context, rec *entity.ContentRecord) error {
	err := c.next.Insert(ctx, rec)
	if err == nil || errors.Is(err, repository.ErrDuplicateKey) {
		c.remember(ctx, c.cacheKey(rec.TargetTable, rec.DedupKey))
	}
	return err
}

// Get 面向消费方的按键读取，直接回源
func (c *DedupCache) Get(ctx context.Context, table, key string) (*entity.ContentRecord, error) {
	rec, err := c.next.Get(ctx, table, key)
	if err == nil && rec != nil {
		c.remember(ctx, c.cacheKey(table, key))
	}
	return rec, err
}

func (c *DedupCache) Count(ctx context.Context, table string) (int64, error) {
	return c.next.Count(ctx, table)
}

func (c *DedupCache) remember(ctx context.Context, ck string) {
	err := c.client.rdb.Set(ctx, ck, "1", c.ttl).Err()
	metrics.RecordStoreOp("redis", "remember", err)
	if err != nil {
		// 缓存写入失败不影响返回结果
		logger.Debug(ctx, "dedup cache write failed", "key", ck, "error", err.Error())
	}
}
