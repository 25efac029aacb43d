package config

import (
	"fmt"
	"os"
	"time"
)

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PoolConfig 连接池配置
// Size 在启动时固定；AcquireTimeout 为获取连接的最长等待时间（0 表示只受 ctx 约束）
type PoolConfig struct {
	Size           int
	AcquireTimeout time.Duration
}

// S3Config 对象存储配置（MinIO / AWS S3）
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		fmt.Sscanf(db, "%d", &c.DB)
	}
}

// LoadFromEnv 从环境变量加载连接池配置
func (c *PoolConfig) LoadFromEnv(prefix string) {
	if size := os.Getenv(prefix + "_SIZE"); size != "" {
		fmt.Sscanf(size, "%d", &c.Size)
	}
	if timeout := os.Getenv(prefix + "_ACQUIRE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.AcquireTimeout = d
		}
	}
}

// LoadFromEnv 从环境变量加载S3配置
func (c *S3Config) LoadFromEnv(prefix string) {
	if bucket := os.Getenv(prefix + "_BUCKET"); bucket != "" {
		c.Bucket = bucket
	}
	if region := os.Getenv(prefix + "_REGION"); region != "" {
		c.Region = region
	}
	if endpoint := os.Getenv(prefix + "_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}
	if key := os.Getenv(prefix + "_ACCESS_KEY"); key != "" {
		c.AccessKey = key
	}
	if secret := os.Getenv(prefix + "_SECRET_KEY"); secret != "" {
		c.SecretKey = secret
	}
	if p := os.Getenv(prefix + "_PREFIX"); p != "" {
		c.Prefix = p
	}
}
