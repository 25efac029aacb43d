package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"baas-cache/common/config"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端类型别名
type Client = redis.Client

// NewRedisClient 创建Redis客户端
// go-redis 自带连接池的大小与 pool 配置保持一致，
// 这样 internal/pool 的每个槽位都能拿到一条独占连接
func NewRedisClient(cfg *config.RedisConfig, pool *config.PoolConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if pool != nil {
		if pool.Size > 0 {
			opts.PoolSize = pool.Size
		}
		if pool.AcquireTimeout > 0 {
			opts.PoolTimeout = pool.AcquireTimeout
		}
	}
	return redis.NewClient(opts)
}

// Ping 测试Redis连接
func Ping(ctx context.Context, client redis.Cmdable) error {
	return client.Ping(ctx).Err()
}

// Close 关闭Redis连接
func Close(client *redis.Client) error {
	return client.Close()
}

// UsedMemory 读取 INFO memory 中的 used_memory（字节）
func UsedMemory(ctx context.Context, client redis.Cmdable) (int64, error) {
	info, err := client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read redis info: %w", err)
	}
	return ParseUsedMemory(info)
}

// ParseUsedMemory 从 INFO 输出中解析 used_memory 字段
func ParseUsedMemory(info string) (int64, error) {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		name, value, ok := strings.Cut(line, ":")
		if !ok || name != "used_memory" {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid used_memory %q: %w", value, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("used_memory not found in redis info")
}
