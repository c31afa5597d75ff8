package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quantdesk/logger"
)

// ResultCache 二级求值结果缓存
// 一级缓存（进程内 map）始终存在，二级缓存可选，用于多实例共享或进程重启后保留
type ResultCache interface {
	Get(ctx context.Context, key string) ([]IndicatorValue, bool)
	Set(ctx context.Context, key string, values []IndicatorValue)
	Clear(ctx context.Context)
	Close() error
}

// CacheConfig 二级缓存配置
type CacheConfig struct {
	Enabled bool
	Type    string
	Prefix  string
	TTL     time.Duration
	Redis   RedisCacheConfig
}

// RedisCacheConfig Redis 缓存配置
type RedisCacheConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewResultCache 根据配置创建二级缓存实例
// 未启用时返回 NopCache（零开销）
func NewResultCache(config *CacheConfig) (ResultCache, error) {
	if config == nil || !config.Enabled {
		return NopCache{}, nil
	}

	switch config.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
			PoolSize: config.Redis.PoolSize,
		})
		return NewRedisCache(client, config.Prefix, config.TTL), nil

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// NopCache 空实现，所有操作均为无操作
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]IndicatorValue, bool) { return nil, false }
func (NopCache) Set(context.Context, string, []IndicatorValue)       {}
func (NopCache) Clear(context.Context)                               {}
func (NopCache) Close() error                                        { return nil }

// RedisCache Redis 二级缓存实现
// 缓存失败只记日志不上抛，求值结果以计算为准
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache 创建 Redis 结果缓存
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get 读取缓存结果
func (r *RedisCache) Get(ctx context.Context, key string) ([]IndicatorValue, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("⚠️ Redis 缓存读取失败: %v", err)
		}
		return nil, false
	}

	var values []IndicatorValue
	if err := json.Unmarshal(data, &values); err != nil {
		logger.Warn("⚠️ Redis 缓存数据损坏: %v", err)
		return nil, false
	}
	return values, true
}

// Set 写入缓存结果
func (r *RedisCache) Set(ctx context.Context, key string, values []IndicatorValue) {
	data, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		logger.Warn("⚠️ Redis 缓存写入失败: %v", err)
	}
}

// Clear 删除本前缀下全部缓存键
func (r *RedisCache) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warn("⚠️ Redis 缓存清理失败: %v", err)
		return
	}
	logger.Debug("🧹 Redis 缓存已清理: %d 个键", deleted)
}

// Close 关闭连接
func (r *RedisCache) Close() error {
	return r.client.Close()
}
