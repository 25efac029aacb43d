package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"baas-cache/common/config"
	"baas-cache/internal/filestore"
)

// Config 缓存服务配置
type Config struct {
	Redis config.RedisConfig
	Pool  config.PoolConfig

	// 容量管理
	Capacity struct {
		Policy         string        // balanced | oldest
		MaxMemoryBytes int64         // 0 表示不主动淘汰
		CheckInterval  time.Duration // 检查间隔，默认 30 秒
		Batch          int           // 单轮最多淘汰条数，默认 100
		EventStream    string        // 淘汰事件流，如 "cache:evictions"
		StreamMaxLen   int64
	}

	FileStore filestore.Config

	Metrics struct {
		Addr string // 为空时不启动 /metrics
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Pool.Size = 8
	cfg.Pool.AcquireTimeout = 2 * time.Second
	cfg.Pool.LoadFromEnv("POOL")

	cfg.Capacity.Policy = getEnv("EVICTION_POLICY", "balanced")
	cfg.Capacity.EventStream = getEnv("EVICTION_STREAM", "cache:evictions")
	cfg.Capacity.StreamMaxLen = 10000
	if v := os.Getenv("CAPACITY_MAX_MEMORY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid CAPACITY_MAX_MEMORY_BYTES: %q", v)
		}
		cfg.Capacity.MaxMemoryBytes = n
	}
	cfg.Capacity.CheckInterval = 30 * time.Second
	if v := os.Getenv("CAPACITY_CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid CAPACITY_CHECK_INTERVAL: %q", v)
		}
		cfg.Capacity.CheckInterval = d
	}
	batchStr := getEnv("CAPACITY_BATCH", "100")
	if v, err := strconv.Atoi(batchStr); err == nil && v > 0 {
		cfg.Capacity.Batch = v
	} else {
		cfg.Capacity.Batch = 100
	}

	cfg.FileStore.Type = getEnv("FILESTORE_TYPE", "fs")
	cfg.FileStore.Root = getEnv("FILESTORE_ROOT", "")
	cfg.FileStore.S3.Region = "us-east-1"
	cfg.FileStore.S3.LoadFromEnv("S3")

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", ":9102")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Pool.Size <= 0 {
		return nil, fmt.Errorf("invalid POOL_SIZE: %d", cfg.Pool.Size)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
