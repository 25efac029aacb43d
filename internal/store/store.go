// Package store 多租户记录存储：实体记录、租户成员集合与按类型的时间索引。
//
// 每个公开方法都从连接池获取独立连接，执行完毕后归还。
// 跨多个键的写入通过 Lua 脚本一次完成，记录、成员集合、时间索引不会互相脱节。
package store

import (
	"context"
	"errors"
	"time"

	commonredis "baas-cache/common/redis"
	"baas-cache/internal/metrics"
	"baas-cache/internal/pool"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Store 记录存储
type Store struct {
	pool    *pool.Pool
	logger  *zap.Logger
	now     func() time.Time
	policy  Policy
	metrics *metrics.Metrics
}

// Option 构造选项
type Option func(*Store)

// WithClock 替换时间源（测试中控制时间索引分数）
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPolicy 设置淘汰策略
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithMetrics 记录操作指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New 创建记录存储
func New(p *pool.Pool, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		pool:   p,
		logger: logger,
		now:    time.Now,
		policy: PolicyBalanced,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy 当前淘汰策略
func (s *Store) Policy() Policy {
	return s.policy
}

// UsedMemory 底层存储当前占用的内存（INFO memory 的 used_memory）
func (s *Store) UsedMemory(ctx context.Context) (int64, error) {
	var used int64
	err := s.do(ctx, "used_memory", func(conn *redis.Conn) error {
		var err error
		used, err = commonredis.UsedMemory(ctx, conn)
		return err
	})
	return used, err
}

// do 在一条池化连接上执行 fn 并记录指标；NotFound 不计为错误
func (s *Store) do(ctx context.Context, op string, fn func(conn *redis.Conn) error) error {
	err := s.pool.Do(ctx, fn)
	if errors.Is(err, ErrNotFound) {
		s.metrics.ObserveOp(op, nil)
	} else {
		s.metrics.ObserveOp(op, err)
	}
	return err
}

// score 当前时间索引分数（Unix 秒）
func (s *Store) score() int64 {
	return s.now().Unix()
}

// runScript 执行脚本并返回整数结果
func runScript(ctx context.Context, conn *redis.Conn, script *redis.Script, keys []string, args ...interface{}) (int64, error) {
	return script.Run(ctx, conn, keys, args...).Int64()
}
