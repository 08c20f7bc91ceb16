package cache

import (
	"context"
	"errors"
	"time"

	"chara_shop/pkg/logger"
	"chara_shop/pkg/metrics"

	"go.uber.org/zap"
)

// FallbackCache 两级缓存门面
// 写穿远程和本地两层；读以远程为准，仅当远程不可达时降级读本地。
// 对调用方而言所有方法都不抛基础设施错误：Get 只返回 ErrCacheMiss，
// 其余方法永远返回 nil，缓存故障绝不能让业务操作失败。
type FallbackCache struct {
	remote   CacheService
	local    CacheService
	metrics  *metrics.MetricsCollector
	localTTL time.Duration
}

// NewFallbackCache 创建带本地降级的缓存门面
// localTTL 限制本地副本的存活时间，远程恢复后脏数据可以很快自愈
func NewFallbackCache(remote, local CacheService, collector *metrics.MetricsCollector, localTTL time.Duration) CacheService {
	if localTTL <= 0 {
		localTTL = time.Minute * 5
	}
	return &FallbackCache{
		remote:   remote,
		local:    local,
		metrics:  collector,
		localTTL: localTTL,
	}
}

// Get 读取缓存
// 远程命中 → 返回；远程未命中 → 未命中 (远程是权威)；
// 远程不可达 → 本地副本兜底，本地也没有才算未命中
func (f *FallbackCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := f.remote.Get(ctx, key, dest)
	if err == nil {
		f.metrics.RecordCacheHit("remote")
		return nil
	}
	if errors.Is(err, ErrCacheMiss) {
		f.metrics.RecordCacheMiss("remote")
		return ErrCacheMiss
	}

	// 远程挂了，静默降级
	f.metrics.RecordCacheError("get")
	f.logDegrade("get", key, err)

	if lerr := f.local.Get(ctx, key, dest); lerr == nil {
		f.metrics.RecordCacheFallback()
		return nil
	}
	f.metrics.RecordCacheMiss("local")
	return ErrCacheMiss
}

// Set 写入缓存，同时镜像到本地
func (f *FallbackCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := f.remote.Set(ctx, key, value, expiration); err != nil {
		f.metrics.RecordCacheError("set")
		f.logDegrade("set", key, err)
	}

	localTTL := expiration
	if localTTL <= 0 || localTTL > f.localTTL {
		localTTL = f.localTTL
	}
	if err := f.local.Set(ctx, key, value, localTTL); err != nil {
		f.logDegrade("set_local", key, err)
	}

	return nil
}

// Delete 两层都删
func (f *FallbackCache) Delete(ctx context.Context, key string) error {
	if err := f.remote.Delete(ctx, key); err != nil {
		f.metrics.RecordCacheError("delete")
		f.logDegrade("delete", key, err)
	}
	if err := f.local.Delete(ctx, key); err != nil {
		f.logDegrade("delete_local", key, err)
	}
	return nil
}

// DeletePattern 两层都按模式删
func (f *FallbackCache) DeletePattern(ctx context.Context, pattern string) error {
	if err := f.remote.DeletePattern(ctx, pattern); err != nil {
		f.metrics.RecordCacheError("delete_pattern")
		f.logDegrade("delete_pattern", pattern, err)
	}
	if err := f.local.DeletePattern(ctx, pattern); err != nil {
		f.logDegrade("delete_pattern_local", pattern, err)
	}
	return nil
}

func (f *FallbackCache) logDegrade(op, key string, err error) {
	if logger.Log != nil {
		logger.Log.Warn("cache backend degraded",
			zap.String("operation", op),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
